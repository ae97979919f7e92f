package dag

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
)

// TxIDPrefix prefixes every generated transaction id.
const TxIDPrefix = "tx-"

var now = time.Now

// NewTransactionID returns a fresh random transaction id.
func NewTransactionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return TxIDPrefix + id.String(), nil
}

// CreateSignedTransaction builds a new transaction from kp to receiver,
// stamped with the current time and signed by kp. The parents slice is copied.
func CreateSignedTransaction(kp *keys.Keypair,
	receiver string,
	amount Amount,
	parents []string,
	priority uint8) (*Transaction, error) {

	if kp == nil {
		return nil, fmt.Errorf("nil keypair")
	}

	id, err := NewTransactionID()
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		ID:        id,
		Timestamp: uint64(now().Unix()),
		Receiver:  receiver,
		Amount:    amount,
		Parents:   append([]string(nil), parents...),
		Status:    StatusValid,
		Priority:  priority,
	}

	if err := tx.Sign(kp); err != nil {
		return nil, err
	}

	return tx, nil
}
