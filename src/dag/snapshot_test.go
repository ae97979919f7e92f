package dag

import (
	"reflect"
	"testing"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
)

func TestSnapshotRestore(t *testing.T) {
	g := newTestGraph(t)
	kp := keys.MustGenerateKeypair()

	root := newSignedTx(t, kp)
	mustCommit(t, g, root)
	a := newSignedTx(t, kp, root.ID)
	mustCommit(t, g, a)
	b := newSignedTx(t, kp, root.ID, a.ID)
	mustCommit(t, g, b)
	if err := g.Revoke(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.AttachContract(root.ID, ContractRef{Name: "transfer"}); err != nil {
		t.Fatal(err)
	}

	snap := g.Snapshot()

	raw, err := snap.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var decoded Snapshot
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(snap, &decoded) {
		t.Fatalf("snapshot round trip mismatch")
	}

	restored, err := Restore(&decoded, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(g.Transactions(), restored.Transactions()) {
		t.Fatalf("restored transactions differ")
	}
	if !reflect.DeepEqual(g.Layers(), restored.Layers()) {
		t.Fatalf("restored layers differ")
	}

	// the restored graph keeps working
	c := newSignedTx(t, kp, b.ID)
	if err := restored.Commit(c); err == nil {
		t.Fatalf("b descends from a revoked transaction")
	}
	d := newSignedTx(t, kp, root.ID)
	mustCommit(t, restored, d)
	if l, _ := restored.LayerOf(d.ID); l != 1 {
		t.Fatalf("LayerOf(d) = %d, want 1", l)
	}
}

func TestRestoreRejectsMalformed(t *testing.T) {
	kp := keys.MustGenerateKeypair()
	x := newSignedTx(t, kp)
	y := newSignedTx(t, kp)

	cases := map[string]*Snapshot{
		"unlayered": {
			Transactions: map[string]*Transaction{x.ID: x, y.ID: y},
			Layers:       [][]string{{x.ID}},
		},
		"unknown member": {
			Transactions: map[string]*Transaction{x.ID: x},
			Layers:       [][]string{{x.ID, "tx-ghost"}},
		},
		"two layers": {
			Transactions: map[string]*Transaction{x.ID: x},
			Layers:       [][]string{{x.ID}, {x.ID}},
		},
		"wrong key": {
			Transactions: map[string]*Transaction{"tx-other": x},
			Layers:       [][]string{{"tx-other"}},
		},
	}

	for name, snap := range cases {
		if _, err := Restore(snap, common.NewTestEntry(t, common.TestLogLevel)); err == nil {
			t.Fatalf("%s: Restore should fail", name)
		}
	}

	if _, err := Restore(nil, nil); err == nil {
		t.Fatalf("nil snapshot should fail")
	}
}

func TestRestoreCompactsEmptyLayers(t *testing.T) {
	kp := keys.MustGenerateKeypair()
	x := newSignedTx(t, kp)
	y := newSignedTx(t, kp)

	snap := &Snapshot{
		Transactions: map[string]*Transaction{x.ID: x, y.ID: y},
		Layers:       [][]string{{x.ID}, {}, {y.ID}, {}},
	}

	g, err := Restore(snap, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	if g.LayerCount() != 2 {
		t.Fatalf("LayerCount() = %d, want 2", g.LayerCount())
	}
	if l, ok := g.LayerOf(y.ID); !ok || l != 1 {
		t.Fatalf("LayerOf(y) = %d, %v", l, ok)
	}
}

// Commit cannot produce a cycle, so the cyclic ancestry is loaded through a
// snapshot.
func cyclicGraph(t *testing.T) (*Graph, *Transaction, *Transaction) {
	kp := keys.MustGenerateKeypair()

	a := &Transaction{ID: "tx-a", Receiver: "r", Amount: 1, Parents: []string{"tx-b"}}
	b := &Transaction{ID: "tx-b", Receiver: "r", Amount: 1, Parents: []string{"tx-a"}}
	for _, tx := range []*Transaction{a, b} {
		if err := tx.Sign(kp); err != nil {
			t.Fatal(err)
		}
	}

	g, err := Restore(&Snapshot{
		Transactions: map[string]*Transaction{a.ID: a, b.ID: b},
		Layers:       [][]string{{a.ID}, {b.ID}},
	}, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	return g, a, b
}

func TestCycleSafety(t *testing.T) {
	g, a, b := cyclicGraph(t)

	done := make(chan bool)
	go func() {
		done <- g.Validate(a, NewValidationCache())
	}()

	if <-done {
		t.Fatalf("cyclic transaction should not validate")
	}

	cache := NewValidationCache()
	v, err := g.Check(b, cache)
	if v != Cyclic {
		t.Fatalf("verdict = %v, want Cyclic", v)
	}
	if !IsValidation(err, CyclicAncestry) {
		t.Fatalf("expected CyclicAncestry, got %v", err)
	}
	if cache.Verdict(a.ID) != Cyclic || cache.Verdict(b.ID) != Cyclic {
		t.Fatalf("cycle members should be cached as Cyclic: %v", cache.entries)
	}

	kp := keys.MustGenerateKeypair()
	child := newSignedTx(t, kp, a.ID)
	if err := g.Commit(child); !IsValidation(err, CyclicAncestry) {
		t.Fatalf("expected CyclicAncestry, got %v", err)
	}
}

func TestDeepAncestry(t *testing.T) {
	kp := keys.MustGenerateKeypair()

	const depth = 1000

	txs := make(map[string]*Transaction, depth)
	layers := make([][]string, 0, depth)

	prev := ""
	for i := 0; i < depth; i++ {
		var tx *Transaction
		if prev == "" {
			tx = newSignedTx(t, kp)
		} else {
			tx = newSignedTx(t, kp, prev)
		}
		txs[tx.ID] = tx
		layers = append(layers, []string{tx.ID})
		prev = tx.ID
	}

	g, err := Restore(&Snapshot{Transactions: txs, Layers: layers}, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	tip := newSignedTx(t, kp, prev)
	if !g.Validate(tip, NewValidationCache()) {
		t.Fatalf("deep chain should validate")
	}

	mustCommit(t, g, tip)
	if l, _ := g.LayerOf(tip.ID); l != depth {
		t.Fatalf("LayerOf(tip) = %d, want %d", l, depth)
	}
}
