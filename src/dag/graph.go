package dag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/sirupsen/logrus"
)

// Graph is the ledger: the set of committed transactions and their layers.
// Mutations take an exclusive lock, so a commit is never observed half-done.
type Graph struct {
	mu sync.RWMutex

	transactions map[string]*Transaction //[id] => transaction
	layers       []map[string]struct{}   //[layer] => set of ids

	logger *logrus.Entry
}

// NewGraph creates an empty Graph.
func NewGraph(logger *logrus.Entry) *Graph {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Graph{
		transactions: make(map[string]*Transaction),
		logger:       logger,
	}
}

// Commit validates tx against the current graph with a fresh cache and, if it
// passes, inserts a copy of it and assigns its layer. On error the graph is
// left unchanged.
func (g *Graph) Commit(tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("nil transaction")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.transactions[tx.ID]; ok {
		return common.NewStoreErr("Transaction", common.KeyAlreadyExists, tx.ID)
	}

	if _, err := g.check(tx, NewValidationCache()); err != nil {
		g.logger.WithFields(logrus.Fields{
			"id":    tx.ID,
			"error": err,
		}).Debug("Commit rejected")
		return err
	}

	layer := 0
	for _, p := range tx.Parents {
		pl, ok := g.layerOf(p)
		if !ok {
			// validated parents are always layered
			return fmt.Errorf("parent %s of %s has no layer", p, tx.ID)
		}
		if pl+1 > layer {
			layer = pl + 1
		}
	}

	for len(g.layers) <= layer {
		g.layers = append(g.layers, make(map[string]struct{}))
	}

	g.transactions[tx.ID] = tx.Copy()
	g.layers[layer][tx.ID] = struct{}{}
	g.compact()

	g.logger.WithFields(logrus.Fields{
		"id":      tx.ID,
		"layer":   layer,
		"parents": len(tx.Parents),
	}).Debug("Commit")

	return nil
}

// compact drops empty layers.
func (g *Graph) compact() {
	kept := g.layers[:0]
	for _, l := range g.layers {
		if len(l) > 0 {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(g.layers); i++ {
		g.layers[i] = nil
	}
	g.layers = kept
}

// Revoke marks a transaction as revoked. Revoking twice is not an error.
func (g *Graph) Revoke(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, ok := g.transactions[id]
	if !ok {
		return common.NewStoreErr("Transaction", common.KeyNotFound, id)
	}

	if tx.Status != StatusRevoked {
		tx.Status = StatusRevoked
		g.logger.WithField("id", id).Debug("Revoke")
	}

	return nil
}

// AttachContract sets, or replaces, the contract reference of a transaction.
func (g *Graph) AttachContract(id string, ref ContractRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, ok := g.transactions[id]
	if !ok {
		return common.NewStoreErr("Transaction", common.KeyNotFound, id)
	}

	tx.Contract = &ref

	return nil
}

// LayerOf returns the layer that holds id.
func (g *Graph) LayerOf(id string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.layerOf(id)
}

func (g *Graph) layerOf(id string) (int, bool) {
	for i, l := range g.layers {
		if _, ok := l[id]; ok {
			return i, true
		}
	}
	return 0, false
}

// Get returns a copy of a committed transaction.
func (g *Graph) Get(id string) (*Transaction, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tx, ok := g.transactions[id]
	if !ok {
		return nil, common.NewStoreErr("Transaction", common.KeyNotFound, id)
	}

	return tx.Copy(), nil
}

// Len returns the number of committed transactions.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.transactions)
}

// LayerCount returns the number of layers.
func (g *Graph) LayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.layers)
}

// RevokedCount returns the number of revoked transactions.
func (g *Graph) RevokedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, tx := range g.transactions {
		if tx.Status == StatusRevoked {
			n++
		}
	}
	return n
}

// Transactions returns copies of all committed transactions, sorted by id.
func (g *Graph) Transactions() []*Transaction {
	g.mu.RLock()
	defer g.mu.RUnlock()

	res := make([]*Transaction, 0, len(g.transactions))
	for _, tx := range g.transactions {
		res = append(res, tx.Copy())
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res
}

// Layers returns the ids in each layer, sorted within a layer.
func (g *Graph) Layers() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.layerIDs()
}

func (g *Graph) layerIDs() [][]string {
	res := make([][]string, len(g.layers))
	for i, l := range g.layers {
		ids := make([]string, 0, len(l))
		for id := range l {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		res[i] = ids
	}
	return res
}
