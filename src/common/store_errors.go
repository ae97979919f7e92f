package common

import "fmt"

// StoreErrType enumerates the lookup and insertion failures reported by the
// ledger and its stores.
type StoreErrType uint32

const (
	// KeyNotFound is returned when an identifier is not known.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists is returned when inserting an identifier twice.
	KeyAlreadyExists
	// Empty is returned when a store holds nothing to load.
	Empty
)

// StoreErr is a typed error identifying the kind of data, the key, and the
// reason of the failure.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr creates a StoreErr.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Key returns the identifier the error refers to.
func (e StoreErr) Key() string {
	return e.key
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Empty:
		m = "Empty"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErrType.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
