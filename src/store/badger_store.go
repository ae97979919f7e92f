package store

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	txPrefix    = "tx"
	layerPrefix = "layer"
	headKey     = "meta_head"
)

// head names the generation of layers that makes up the last complete
// snapshot.
type head struct {
	Generation uint64
	Layers     int
}

// BadgerStore persists snapshots in a badger database. Each transaction is
// stored under its own key. Each Save writes its layers under a new
// generation and then switches the head to it, so a Save interrupted before
// the switch leaves the previous snapshot readable.
type BadgerStore struct {
	db     *badger.DB
	path   string
	logger *logrus.Entry
}

// NewBadgerStore creates a brand new Store with a new database
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}
	return openBadgerStore(path, logger)
}

// LoadBadgerStore opens an existing database
func LoadBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return openBadgerStore(path, logger)
}

// LoadOrCreateBadgerStore opens the database at path, creating it if it does
// not exist.
func LoadOrCreateBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path, logger)
	if err != nil {
		store, err = NewBadgerStore(path, logger)
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}

func openBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = logger.WithField("component", "badger")

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger store at %s", path)
	}

	return &BadgerStore{
		db:     handle,
		path:   path,
		logger: logger,
	}, nil
}

func txKey(id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", txPrefix, id))
}

func layerKey(gen uint64, index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d_%09d", layerPrefix, gen, index))
}

func layerGenPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("%s_%09d_", layerPrefix, gen))
}

// batch wraps a write transaction, committing and reopening it when badger
// reports that it has grown too big.
type batch struct {
	db  *badger.DB
	txn *badger.Txn
}

func (b *batch) set(key, val []byte) error {
	err := b.txn.Set(key, val)
	if err == badger.ErrTxnTooBig {
		if err := b.txn.Commit(); err != nil {
			return err
		}
		b.txn = b.db.NewTransaction(true)
		return b.txn.Set(key, val)
	}
	return err
}

func (b *batch) delete(key []byte) error {
	err := b.txn.Delete(key)
	if err == badger.ErrTxnTooBig {
		if err := b.txn.Commit(); err != nil {
			return err
		}
		b.txn = b.db.NewTransaction(true)
		return b.txn.Delete(key)
	}
	return err
}

// Save implements the Store interface. Transactions are never removed from a
// graph, so transaction keys are overwritten in place. Layers are written
// under the next generation, which becomes the head once they are all
// committed. Layers of older generations are then deleted.
func (s *BadgerStore) Save(snap *dag.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	current, err := s.head()
	if err != nil && !common.IsStore(err, common.Empty) {
		return err
	}

	next := head{Generation: current.Generation + 1, Layers: len(snap.Layers)}

	if err := s.writeGeneration(snap, next.Generation); err != nil {
		return err
	}

	if err := s.setHead(next); err != nil {
		return err
	}

	if err := s.dropGenerationsBefore(next.Generation); err != nil {
		s.logger.WithError(err).Warn("Failed to delete old snapshot layers")
	}

	s.logger.WithFields(logrus.Fields{
		"transactions": snap.Len(),
		"layers":       len(snap.Layers),
		"generation":   next.Generation,
	}).Debug("Saved snapshot")

	return nil
}

// writeGeneration writes the transactions and the layers of snap, the latter
// under gen. It may span several badger transactions.
func (s *BadgerStore) writeGeneration(snap *dag.Snapshot, gen uint64) error {
	b := &batch{db: s.db, txn: s.db.NewTransaction(true)}
	defer func() { b.txn.Discard() }()

	for id, tx := range snap.Transactions {
		val, err := encode(tx)
		if err != nil {
			return errors.Wrapf(err, "encoding transaction %s", id)
		}
		if err := b.set(txKey(id), val); err != nil {
			return errors.Wrapf(err, "writing transaction %s", id)
		}
	}

	for i, ids := range snap.Layers {
		val, err := encode(ids)
		if err != nil {
			return errors.Wrapf(err, "encoding layer %d", i)
		}
		if err := b.set(layerKey(gen, i), val); err != nil {
			return errors.Wrapf(err, "writing layer %d", i)
		}
	}

	if err := b.txn.Commit(); err != nil {
		return errors.Wrap(err, "committing snapshot")
	}
	return nil
}

func (s *BadgerStore) setHead(h head) error {
	val, err := encode(h)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headKey), val)
	})
	return errors.Wrap(err, "switching snapshot head")
}

// dropGenerationsBefore deletes the layers of every generation older than
// gen.
func (s *BadgerStore) dropGenerationsBefore(gen uint64) error {
	var stale [][]byte

	keep := layerGenPrefix(gen)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(layerPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if !bytes.HasPrefix(key, keep) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}

	b := &batch{db: s.db, txn: s.db.NewTransaction(true)}
	defer func() { b.txn.Discard() }()

	for _, key := range stale {
		if err := b.delete(key); err != nil {
			return err
		}
	}
	return b.txn.Commit()
}

func (s *BadgerStore) head() (head, error) {
	var h head
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(headKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decode(val, &h)
	})
	if err == badger.ErrKeyNotFound {
		return head{}, common.NewStoreErr("BadgerStore", common.Empty, headKey)
	}
	return h, err
}

// Load implements the Store interface. It returns the transactions of the
// head generation's layers. Transaction values are the latest written, so a
// Save interrupted before its head switch may surface newer statuses or
// contract references, but never transactions missing from the layers.
func (s *BadgerStore) Load() (*dag.Snapshot, error) {
	h, err := s.head()
	if err != nil {
		return nil, err
	}

	snap := &dag.Snapshot{
		Transactions: make(map[string]*dag.Transaction),
		Layers:       make([][]string, h.Layers),
	}

	err = s.db.View(func(txn *badger.Txn) error {
		for i := 0; i < h.Layers; i++ {
			var ids []string
			if err := getValue(txn, layerKey(h.Generation, i), &ids); err != nil {
				return errors.Wrapf(err, "reading layer %d", i)
			}
			snap.Layers[i] = ids

			for _, id := range ids {
				tx := new(dag.Transaction)
				if err := getValue(txn, txKey(id), tx); err != nil {
					return errors.Wrapf(err, "reading transaction %s", id)
				}
				snap.Transactions[id] = tx
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func getValue(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return decode(val, out)
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}
