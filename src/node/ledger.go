package node

import (
	"context"
	"errors"

	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotLeader is returned when a validator is asked to propose.
	ErrNotLeader = errors.New("node is not a leader")

	// ErrNotRunning is returned by operations on a node that is shut down.
	ErrNotRunning = errors.New("node is shut down")

	// ErrNotValidator answers RPCs sent to a leader.
	ErrNotValidator = errors.New("node is not a validator")
)

// Receipt describes the outcome of a committed transaction.
type Receipt struct {
	Transaction *dag.Transaction `json:"transaction"`
	// Announced is the number of remote validators that applied the
	// transaction to their own ledger.
	Announced int `json:"announced"`
	// Result is the output of the attached contract, if any.
	Result string `json:"result,omitempty"`
	// ContractError is set when the attached contract failed. The
	// transaction stays committed.
	ContractError string `json:"contract_error,omitempty"`
}

// Propose creates a transaction signed with the node's key and submits it.
func (n *Node) Propose(ctx context.Context,
	receiver string,
	amount dag.Amount,
	parents []string,
	priority uint8,
	ref *dag.ContractRef) (*Receipt, error) {

	if n.engine == nil {
		return nil, ErrNotLeader
	}

	tx, err := dag.CreateSignedTransaction(n.conf.Key, receiver, amount, parents, priority)
	if err != nil {
		return nil, err
	}

	if ref != nil {
		c := *ref
		tx.Contract = &c
	}

	return n.Submit(ctx, tx)
}

// Submit runs the commit protocol for a signed transaction. Once a majority
// of validators accepts, the transaction is committed to the local graph,
// announced to the remote validators, and its contract is executed.
func (n *Node) Submit(ctx context.Context, tx *dag.Transaction) (*Receipt, error) {
	if n.engine == nil {
		return nil, ErrNotLeader
	}

	if n.getState() == Shutdown {
		return nil, ErrNotRunning
	}

	if err := n.engine.Propose(ctx, n.graph, tx); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Transaction: tx.Copy(),
		Announced:   n.engine.Announce(ctx, tx),
	}

	res, err := n.dispatcher.Execute(tx)
	if err != nil {
		receipt.ContractError = err.Error()
	} else {
		receipt.Result = res
	}

	n.logger.WithFields(logrus.Fields{
		"id":        tx.ID,
		"announced": receipt.Announced,
		"result":    receipt.Result,
		"error":     receipt.ContractError,
	}).Info("Committed transaction")

	return receipt, nil
}

// Revoke marks a committed transaction as revoked on the leader and on every
// remote validator. It returns how many validators revoked it.
func (n *Node) Revoke(ctx context.Context, id string) (int, error) {
	if n.engine == nil {
		return 0, ErrNotLeader
	}

	if n.getState() == Shutdown {
		return 0, ErrNotRunning
	}

	revoked, err := n.engine.Revoke(ctx, n.graph, id)
	if err != nil {
		return 0, err
	}

	n.logger.WithFields(logrus.Fields{
		"id":      id,
		"revoked": revoked,
	}).Info("Revoked transaction")

	return revoked, nil
}

// execute runs the contract of a transaction applied by the vote service.
func (n *Node) execute(tx *dag.Transaction) {
	res, err := n.dispatcher.Execute(tx)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"id":    tx.ID,
			"error": err,
		}).Warn("Contract failed")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"id":     tx.ID,
		"result": res,
	}).Debug("Applied transaction")
}

// refuseRPCs answers every request sent to a leader with ErrNotValidator.
func (n *Node) refuseRPCs() {
	netCh := n.Transport.Consumer()
	for {
		select {
		case rpc := <-netCh:
			rpc.Respond(nil, ErrNotValidator)
		case <-n.ctx.Done():
			return
		}
	}
}

