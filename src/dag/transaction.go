package dag

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
)

// Status is the lifecycle state of a committed transaction. The only
// transition is Valid -> Revoked.
type Status uint8

const (
	// StatusValid is the status of every newly created transaction.
	StatusValid Status = iota
	// StatusRevoked is terminal.
	StatusRevoked
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusValid, StatusRevoked:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown status %d", uint8(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are
// rejected.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "valid":
		*s = StatusValid
	case "revoked":
		*s = StatusRevoked
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// ContractRef names the contract handler to run for a transaction, and the
// opaque payload handed to it.
type ContractRef struct {
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

// Transaction is a signed transfer of value from Sender to Receiver. Only
// Status and Contract change after creation.
type Transaction struct {
	ID        string       `json:"id"`
	Timestamp uint64       `json:"timestamp"`
	Sender    string       `json:"sender"`
	Receiver  string       `json:"receiver"`
	Amount    Amount       `json:"amount"`
	Signature []byte       `json:"signature"`
	Parents   []string     `json:"parents"`
	PublicKey []byte       `json:"public_key"`
	Status    Status       `json:"status"`
	Priority  uint8        `json:"priority"`
	Contract  *ContractRef `json:"contract,omitempty"`
}

// signingBody is the part of a transaction covered by its signature. Field
// order is fixed by the struct definition.
type signingBody struct {
	ID       string   `json:"id"`
	Sender   string   `json:"sender"`
	Receiver string   `json:"receiver"`
	Amount   Amount   `json:"amount"`
	Parents  []string `json:"parents"`
}

// SigningBytes returns the canonical message signed by the sender: the JSON
// encoding of id, sender, receiver, amount and parents.
func (tx *Transaction) SigningBytes() ([]byte, error) {
	parents := tx.Parents
	if parents == nil {
		parents = []string{}
	}

	return json.Marshal(signingBody{
		ID:       tx.ID,
		Sender:   tx.Sender,
		Receiver: tx.Receiver,
		Amount:   tx.Amount,
		Parents:  parents,
	})
}

// Sign sets the transaction's PublicKey, Sender and Signature from kp.
func (tx *Transaction) Sign(kp *keys.Keypair) error {
	tx.PublicKey = kp.PublicKeyBytes()
	tx.Sender = kp.PublicKeyHex()

	msg, err := tx.SigningBytes()
	if err != nil {
		return err
	}

	sig, err := keys.Sign(kp, msg)
	if err != nil {
		return err
	}

	tx.Signature = sig

	return nil
}

// VerifySignature checks that Sender is derived from PublicKey and that
// Signature covers the signing bytes.
func (tx *Transaction) VerifySignature() bool {
	if len(tx.PublicKey) == 0 || len(tx.Signature) == 0 {
		return false
	}

	if tx.Sender != keys.PublicKeyHexFromBytes(tx.PublicKey) {
		return false
	}

	msg, err := tx.SigningBytes()
	if err != nil {
		return false
	}

	return keys.Verify(tx.PublicKey, msg, tx.Signature)
}

// IsRoot reports whether the transaction has no parents.
func (tx *Transaction) IsRoot() bool {
	return len(tx.Parents) == 0
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	c := *tx
	if tx.Signature != nil {
		c.Signature = append([]byte{}, tx.Signature...)
	}
	if tx.PublicKey != nil {
		c.PublicKey = append([]byte{}, tx.PublicKey...)
	}
	if tx.Parents != nil {
		c.Parents = append([]string{}, tx.Parents...)
	}
	if tx.Contract != nil {
		ref := *tx.Contract
		c.Contract = &ref
	}
	return &c
}

// Marshal returns the JSON encoding of the transaction.
func (tx *Transaction) Marshal() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	if err := enc.Encode(tx); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes a JSON encoded transaction.
func (tx *Transaction) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	dec := json.NewDecoder(b)
	return dec.Decode(tx)
}
