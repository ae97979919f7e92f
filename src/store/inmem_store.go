package store

import (
	"sync"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/dag"
)

// InmemStore keeps the last saved snapshot in memory, encoded, so callers
// never share state with it.
type InmemStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// Save implements the Store interface.
func (s *InmemStore) Save(snap *dag.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Load implements the Store interface.
func (s *InmemStore) Load() (*dag.Snapshot, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	if data == nil {
		return nil, common.NewStoreErr("InmemStore", common.Empty, "snapshot")
	}

	snap := new(dag.Snapshot)
	if err := decode(data, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
