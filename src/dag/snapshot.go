package dag

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Snapshot is a self-contained copy of a Graph, suitable for persistence.
type Snapshot struct {
	Transactions map[string]*Transaction `json:"transactions"`
	Layers       [][]string              `json:"layers"`
}

// Snapshot copies the current state of the graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	txs := make(map[string]*Transaction, len(g.transactions))
	for id, tx := range g.transactions {
		txs[id] = tx.Copy()
	}

	return &Snapshot{
		Transactions: txs,
		Layers:       g.layerIDs(),
	}
}

// Len returns the number of transactions in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Transactions)
}

// Marshal returns the JSON encoding of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes a JSON encoded snapshot.
func (s *Snapshot) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	dec := json.NewDecoder(b)
	return dec.Decode(s)
}

// Restore rebuilds a Graph from a snapshot. It checks the structure of the
// snapshot (map keys match ids, each transaction sits in exactly one layer,
// each layer member exists) but does not re-validate ancestry. Empty layers
// are compacted away.
func Restore(s *Snapshot, logger *logrus.Entry) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	g := NewGraph(logger)

	for id, tx := range s.Transactions {
		if tx == nil {
			return nil, fmt.Errorf("snapshot: nil transaction under %s", id)
		}
		if tx.ID != id {
			return nil, fmt.Errorf("snapshot: transaction %s stored under %s", tx.ID, id)
		}
		g.transactions[id] = tx.Copy()
	}

	seen := make(map[string]int, len(s.Transactions))
	for i, ids := range s.Layers {
		layer := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := g.transactions[id]; !ok {
				return nil, fmt.Errorf("snapshot: layer %d references unknown transaction %s", i, id)
			}
			if prev, ok := seen[id]; ok {
				return nil, fmt.Errorf("snapshot: transaction %s in layers %d and %d", id, prev, i)
			}
			seen[id] = i
			layer[id] = struct{}{}
		}
		g.layers = append(g.layers, layer)
	}

	if len(seen) != len(g.transactions) {
		return nil, fmt.Errorf("snapshot: %d transactions but %d layered", len(g.transactions), len(seen))
	}

	if len(g.layers) > 0 {
		g.compact()
	}

	g.logger.WithFields(logrus.Fields{
		"transactions": len(g.transactions),
		"layers":       len(g.layers),
	}).Debug("Restore")

	return g, nil
}
