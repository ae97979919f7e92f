package contract

import (
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/sirupsen/logrus"
)

// Dispatcher runs the contract attached to a transaction.
type Dispatcher struct {
	registry *Registry
	logger   *logrus.Entry
}

// NewDispatcher creates a Dispatcher over registry. A nil registry means
// NewRegistry().
func NewDispatcher(registry *Registry, logger *logrus.Entry) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Execute dispatches tx to the handler named by its contract reference.
func (d *Dispatcher) Execute(tx *dag.Transaction) (string, error) {
	if tx.Contract == nil {
		return NoContractResult, nil
	}

	h, ok := d.registry.Lookup(tx.Contract.Name)
	if !ok {
		return "", &UnsupportedContractError{Name: tx.Contract.Name}
	}

	res, err := h.Execute(tx)

	d.logger.WithFields(logrus.Fields{
		"id":       tx.ID,
		"contract": tx.Contract.Name,
		"error":    err,
	}).Debug("Execute contract")

	return res, err
}

// ExecuteCommitted dispatches the committed transaction id of g. The graph is
// not modified.
func (d *Dispatcher) ExecuteCommitted(g *dag.Graph, id string) (string, error) {
	tx, err := g.Get(id)
	if err != nil {
		return "", err
	}
	return d.Execute(tx)
}
