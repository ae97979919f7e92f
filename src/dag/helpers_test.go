package dag

import (
	"testing"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
)

func newTestGraph(t testing.TB) *Graph {
	return NewGraph(common.NewTestEntry(t, common.TestLogLevel))
}

func newSignedTx(t testing.TB, kp *keys.Keypair, parents ...string) *Transaction {
	tx, err := CreateSignedTransaction(kp, "receiver", NewAmount(1), parents, 0)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func mustCommit(t testing.TB, g *Graph, tx *Transaction) {
	if err := g.Commit(tx); err != nil {
		t.Fatalf("Commit(%s): %v", tx.ID, err)
	}
}
