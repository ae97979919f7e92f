// Package contract dispatches transactions to named contract handlers.
//
// The ledger does not interpret contracts. A transaction may carry a
// dag.ContractRef naming a Handler; the Dispatcher looks the name up in a
// Registry and runs it. Contract modules plug in by registering handlers.
package contract

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/dagledger/src/dag"
)

// TransferContract is the name of the built-in transfer handler.
const TransferContract = "transfer"

// NoContractResult is returned for transactions that carry no contract.
const NoContractResult = "No contract logic found"

// ErrInvalidTransfer is returned by the transfer handler when the amount is
// not strictly positive.
var ErrInvalidTransfer = errors.New("invalid transfer: amount must be positive")

// UnsupportedContractError is returned when no handler is registered under the
// requested name.
type UnsupportedContractError struct {
	Name string
}

// Error implements the error interface.
func (e *UnsupportedContractError) Error() string {
	return fmt.Sprintf("unsupported contract: %s", e.Name)
}

// Handler executes the contract attached to a transaction and describes the
// outcome.
type Handler interface {
	Execute(tx *dag.Transaction) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(tx *dag.Transaction) (string, error)

// Execute calls f(tx).
func (f HandlerFunc) Execute(tx *dag.Transaction) (string, error) {
	return f(tx)
}

// Registry maps contract names to handlers. It is safe for concurrent use.
type Registry struct {
	sync.RWMutex
	handlers map[string]Handler
}

// NewEmptyRegistry returns a registry with no handlers.
func NewEmptyRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// NewRegistry returns a registry holding the built-in handlers.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	r.handlers[TransferContract] = HandlerFunc(transfer)
	return r
}

// Register adds a handler. Names are unique.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("empty contract name")
	}
	if h == nil {
		return fmt.Errorf("nil handler for contract %s", name)
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("contract %s already registered", name)
	}

	r.handlers[name] = h

	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.RLock()
	defer r.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.RLock()
	defer r.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func transfer(tx *dag.Transaction) (string, error) {
	if !tx.Amount.IsPositive() {
		return "", ErrInvalidTransfer
	}
	return fmt.Sprintf("Transfer executed: %s -> %s (amount: %s)", tx.Sender, tx.Receiver, tx.Amount), nil
}
