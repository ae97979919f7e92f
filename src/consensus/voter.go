package consensus

import (
	"context"

	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/net"
	"github.com/mosaicnetworks/dagledger/src/peers"
)

// Voter is a validator as seen by the leader.
type Voter interface {
	ID() string
	Vote(ctx context.Context, tx *dag.Transaction) (bool, error)
}

// Announcer is implemented by voters that keep their own ledger and need to
// be told about committed transactions.
type Announcer interface {
	Announce(ctx context.Context, tx *dag.Transaction) error
}

// Revoker is implemented by voters that keep their own ledger and need to be
// told about revoked transactions.
type Revoker interface {
	Revoke(ctx context.Context, id string) error
}

// LocalVoter validates against a graph in the same process.
type LocalVoter struct {
	id    string
	graph *dag.Graph
}

// NewLocalVoter creates a LocalVoter.
func NewLocalVoter(id string, graph *dag.Graph) *LocalVoter {
	return &LocalVoter{
		id:    id,
		graph: graph,
	}
}

// ID implements Voter.
func (v *LocalVoter) ID() string {
	return v.id
}

// Vote implements Voter. Each vote uses a fresh validation cache.
func (v *LocalVoter) Vote(ctx context.Context, tx *dag.Transaction) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return v.graph.Validate(tx, dag.NewValidationCache()), nil
}

// RemoteVoter asks a validator over a Transport. Requests are signed with the
// leader's key.
type RemoteVoter struct {
	peer  *peers.Peer
	trans net.Transport
	key   *keys.Keypair
}

// NewRemoteVoter creates a RemoteVoter for peer.
func NewRemoteVoter(peer *peers.Peer, trans net.Transport, key *keys.Keypair) *RemoteVoter {
	return &RemoteVoter{
		peer:  peer,
		trans: trans,
		key:   key,
	}
}

// ID implements Voter.
func (v *RemoteVoter) ID() string {
	return v.peer.ID()
}

// Peer returns the validator this voter talks to.
func (v *RemoteVoter) Peer() *peers.Peer {
	return v.peer
}

// Vote implements Voter.
func (v *RemoteVoter) Vote(ctx context.Context, tx *dag.Transaction) (bool, error) {
	args := net.VoteRequest{Transaction: *tx}
	if err := args.Sign(v.key); err != nil {
		return false, err
	}

	var out net.VoteResponse

	if err := v.trans.Vote(ctx, v.peer.NetAddr, &args, &out); err != nil {
		return false, err
	}

	return out.Accept, nil
}

// Announce implements Announcer.
func (v *RemoteVoter) Announce(ctx context.Context, tx *dag.Transaction) error {
	args := net.AnnounceRequest{Transaction: *tx}
	if err := args.Sign(v.key); err != nil {
		return err
	}

	var out net.AnnounceResponse

	if err := v.trans.Announce(ctx, v.peer.NetAddr, &args, &out); err != nil {
		return err
	}

	if !out.Success {
		return &AnnounceError{Validator: v.ID()}
	}

	return nil
}

// Revoke implements Revoker.
func (v *RemoteVoter) Revoke(ctx context.Context, id string) error {
	args := net.RevokeRequest{TxID: id}
	if err := args.Sign(v.key); err != nil {
		return err
	}

	var out net.RevokeResponse

	if err := v.trans.Revoke(ctx, v.peer.NetAddr, &args, &out); err != nil {
		return err
	}

	if !out.Success {
		return &RevokeError{Validator: v.ID(), TxID: id}
	}

	return nil
}

// AnnounceError is returned when a validator could not apply an announced
// transaction.
type AnnounceError struct {
	Validator string
}

// Error implements the error interface.
func (e *AnnounceError) Error() string {
	return "validator " + e.Validator + " did not apply the transaction"
}

// RevokeError is returned when a validator does not hold the revoked
// transaction.
type RevokeError struct {
	Validator string
	TxID      string
}

// Error implements the error interface.
func (e *RevokeError) Error() string {
	return "validator " + e.Validator + " does not hold transaction " + e.TxID
}
