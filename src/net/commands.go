package net

import (
	"encoding/json"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
)

// VoteRequest asks a validator to evaluate a proposed transaction against its
// own view of the ledger. FromID is the public key identifier of the leader,
// and Signature is the leader's signature of the request.
type VoteRequest struct {
	FromID      string
	Transaction dag.Transaction
	Signature   []byte
}

// VoteResponse carries a validator's verdict. Reason is set when the
// transaction is rejected.
type VoteResponse struct {
	FromID string
	Accept bool
	Reason string
}

// AnnounceRequest notifies a validator that a transaction was committed by the
// leader, so that it can be applied to the validator's ledger.
type AnnounceRequest struct {
	FromID      string
	Transaction dag.Transaction
	Signature   []byte
}

// AnnounceResponse indicates whether the validator applied the transaction.
type AnnounceResponse struct {
	FromID  string
	Success bool
}

// RevokeRequest tells a validator that the leader revoked a committed
// transaction.
type RevokeRequest struct {
	FromID    string
	TxID      string
	Signature []byte
}

// RevokeResponse indicates whether the validator revoked the transaction. It
// is false when the validator does not hold it.
type RevokeResponse struct {
	FromID  string
	Success bool
}

// signedEnvelope is what a leader signs: the kind of request, the leader's
// identifier, and the transaction or transaction id the request is about.
type signedEnvelope struct {
	Kind   string
	FromID string
	Body   interface{}
}

func envelopeBytes(kind, from string, body interface{}) ([]byte, error) {
	return json.Marshal(signedEnvelope{
		Kind:   kind,
		FromID: from,
		Body:   body,
	})
}

func signEnvelope(kp *keys.Keypair, kind string, body interface{}) (string, []byte, error) {
	from := kp.PublicKeyHex()
	msg, err := envelopeBytes(kind, from, body)
	if err != nil {
		return "", nil, err
	}
	sig, err := keys.Sign(kp, msg)
	if err != nil {
		return "", nil, err
	}
	return from, sig, nil
}

func verifyEnvelope(kind, from string, body interface{}, sig []byte) bool {
	pub, err := common.DecodeFromString(from)
	if err != nil {
		return false
	}
	msg, err := envelopeBytes(kind, from, body)
	if err != nil {
		return false
	}
	return keys.Verify(pub, msg, sig)
}

// Sign sets FromID and Signature using the leader's keypair.
func (r *VoteRequest) Sign(kp *keys.Keypair) error {
	from, sig, err := signEnvelope(kp, kindVote, &r.Transaction)
	if err != nil {
		return err
	}
	r.FromID, r.Signature = from, sig
	return nil
}

// Verify checks that Signature was produced by the key identified by FromID.
func (r *VoteRequest) Verify() bool {
	return verifyEnvelope(kindVote, r.FromID, &r.Transaction, r.Signature)
}

// Sign sets FromID and Signature using the leader's keypair.
func (r *AnnounceRequest) Sign(kp *keys.Keypair) error {
	from, sig, err := signEnvelope(kp, kindAnnounce, &r.Transaction)
	if err != nil {
		return err
	}
	r.FromID, r.Signature = from, sig
	return nil
}

// Verify checks that Signature was produced by the key identified by FromID.
func (r *AnnounceRequest) Verify() bool {
	return verifyEnvelope(kindAnnounce, r.FromID, &r.Transaction, r.Signature)
}

// Sign sets FromID and Signature using the leader's keypair.
func (r *RevokeRequest) Sign(kp *keys.Keypair) error {
	from, sig, err := signEnvelope(kp, kindRevoke, r.TxID)
	if err != nil {
		return err
	}
	r.FromID, r.Signature = from, sig
	return nil
}

// Verify checks that Signature was produced by the key identified by FromID.
func (r *RevokeRequest) Verify() bool {
	return verifyEnvelope(kindRevoke, r.FromID, r.TxID, r.Signature)
}
