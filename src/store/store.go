package store

import (
	"bytes"

	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/ugorji/go/codec"
)

// Store persists snapshots of the transaction graph. Load returns a
// common.StoreErr of type Empty when nothing has been saved yet.
type Store interface {
	Save(*dag.Snapshot) error
	Load() (*dag.Snapshot, error)
	Close() error
	StorePath() string
}

func newHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	mh.Canonical = true
	return mh
}

func encode(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, newHandle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewBuffer(data), newHandle())
	return dec.Decode(v)
}
