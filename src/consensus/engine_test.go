package consensus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
)

type stubVoter struct {
	id     string
	accept bool
	err    error
	block  bool
}

func (v *stubVoter) ID() string {
	return v.id
}

func (v *stubVoter) Vote(ctx context.Context, tx *dag.Transaction) (bool, error) {
	if v.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return v.accept, v.err
}

func stubVoters(accepting, rejecting int) []Voter {
	var voters []Voter
	for i := 0; i < accepting; i++ {
		voters = append(voters, &stubVoter{id: fmt.Sprintf("yes%d", i), accept: true})
	}
	for i := 0; i < rejecting; i++ {
		voters = append(voters, &stubVoter{id: fmt.Sprintf("no%d", i)})
	}
	return voters
}

func newTestEngine(t *testing.T, voters []Voter, timeout time.Duration) *Engine {
	kp := keys.MustGenerateKeypair()
	return NewEngine(kp.PublicKeyHex(), kp, voters, timeout, common.NewTestEntry(t, common.TestLogLevel))
}

func newTestGraph(t *testing.T) *dag.Graph {
	return dag.NewGraph(common.NewTestEntry(t, common.TestLogLevel))
}

func newRoot(t *testing.T) *dag.Transaction {
	tx, err := dag.CreateSignedTransaction(keys.MustGenerateKeypair(), "bob", dag.NewAmount(1), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestQuorumThreshold(t *testing.T) {
	g := newTestGraph(t)

	// 3 > 4/2
	e := newTestEngine(t, stubVoters(3, 1), time.Second)
	tx := newRoot(t)
	if err := e.Propose(context.Background(), g, tx); err != nil {
		t.Fatalf("3 of 4 should commit: %v", err)
	}
	if _, err := g.Get(tx.ID); err != nil {
		t.Fatalf("transaction should be committed")
	}

	// 2 is not > 4/2
	e = newTestEngine(t, stubVoters(2, 2), time.Second)
	tx = newRoot(t)
	err := e.Propose(context.Background(), g, tx)

	var rerr *RejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("2 of 4 should be rejected, got %v", err)
	}
	if rerr.Votes != 2 || rerr.Required != 3 {
		t.Fatalf("RejectedError = %+v", *rerr)
	}
	if g.Len() != 1 {
		t.Fatalf("rejected proposal should leave the graph untouched")
	}
}

func TestProposeSyncQuorum(t *testing.T) {
	g := newTestGraph(t)

	var voters []Voter
	for i := 0; i < 4; i++ {
		voters = append(voters, NewLocalVoter(fmt.Sprintf("v%d", i), g))
	}
	e := newTestEngine(t, voters, time.Second)

	root := newRoot(t)
	if err := e.ProposeSync(g, root); err != nil {
		t.Fatal(err)
	}

	orphan, _ := dag.CreateSignedTransaction(keys.MustGenerateKeypair(), "bob", dag.NewAmount(1), []string{"tx-missing"}, 0)
	err := e.ProposeSync(g, orphan)
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if err.(*RejectedError).Votes != 0 {
		t.Fatalf("no validator should accept an orphan")
	}

	if e.Stats() != (Stats{Proposals: 2, Commits: 1, Rejections: 1}) {
		t.Fatalf("Stats() = %+v", e.Stats())
	}
}

func TestLocalVotersAsync(t *testing.T) {
	g := newTestGraph(t)

	var voters []Voter
	for i := 0; i < 3; i++ {
		voters = append(voters, NewLocalVoter(fmt.Sprintf("v%d", i), g))
	}
	e := newTestEngine(t, voters, time.Second)

	root := newRoot(t)
	if err := e.Propose(context.Background(), g, root); err != nil {
		t.Fatal(err)
	}

	bad := newRoot(t)
	bad.Signature[len(bad.Signature)-1] ^= 0x01
	if err := e.Propose(context.Background(), g, bad); !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVoterErrorsCountAsRejections(t *testing.T) {
	g := newTestGraph(t)

	voters := []Voter{
		&stubVoter{id: "a", accept: true},
		&stubVoter{id: "b", accept: true, err: errors.New("connection reset")},
		&stubVoter{id: "c", err: errors.New("timeout")},
	}
	e := newTestEngine(t, voters, time.Second)

	err := e.Propose(context.Background(), g, newRoot(t))
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("graph should be untouched")
	}
}

func TestProposeTimeout(t *testing.T) {
	g := newTestGraph(t)

	voters := []Voter{
		&stubVoter{id: "a", accept: true},
		&stubVoter{id: "b", block: true},
		&stubVoter{id: "c", block: true},
	}
	e := newTestEngine(t, voters, 50*time.Millisecond)

	start := time.Now()
	err := e.Propose(context.Background(), g, newRoot(t))

	var rerr *RejectedError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rerr.Votes != 1 || rerr.Required != 2 {
		t.Fatalf("RejectedError = %+v", *rerr)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout was not honoured")
	}
	if g.Len() != 0 {
		t.Fatalf("graph should be untouched after a timeout")
	}
}

func TestProposeCancelled(t *testing.T) {
	g := newTestGraph(t)

	voters := []Voter{
		&stubVoter{id: "a", block: true},
		&stubVoter{id: "b", block: true},
	}
	e := newTestEngine(t, voters, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := e.Propose(ctx, g, newRoot(t)); !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("graph should be untouched after cancellation")
	}
}

func TestProposeStopsAtMajority(t *testing.T) {
	g := newTestGraph(t)

	voters := []Voter{
		&stubVoter{id: "a", accept: true},
		&stubVoter{id: "b", accept: true},
		&stubVoter{id: "c", block: true},
	}
	e := newTestEngine(t, voters, time.Minute)

	start := time.Now()
	if err := e.Propose(context.Background(), g, newRoot(t)); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("proposal should not wait for the slow voter")
	}
}

func TestProposeLeaderDisagrees(t *testing.T) {
	g := newTestGraph(t)
	e := newTestEngine(t, stubVoters(3, 0), time.Second)

	orphan, _ := dag.CreateSignedTransaction(keys.MustGenerateKeypair(), "bob", dag.NewAmount(1), []string{"tx-missing"}, 0)

	err := e.Propose(context.Background(), g, orphan)
	if !dag.IsValidation(err, dag.MissingParent) {
		t.Fatalf("commit should still validate, got %v", err)
	}
}

func TestNoVoters(t *testing.T) {
	g := newTestGraph(t)
	e := newTestEngine(t, nil, time.Second)

	if err := e.Propose(context.Background(), g, newRoot(t)); !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestLoadAndRebalance(t *testing.T) {
	g := newTestGraph(t)
	e := newTestEngine(t, stubVoters(3, 0), time.Second)

	for i := 0; i < 2; i++ {
		if err := e.ProposeSync(g, newRoot(t)); err != nil {
			t.Fatal(err)
		}
	}

	want := map[string]uint64{"yes0": 2, "yes1": 2, "yes2": 2}
	if !reflect.DeepEqual(e.Load(), want) {
		t.Fatalf("Load() = %v", e.Load())
	}

	e.Rebalance()

	want = map[string]uint64{"yes0": 0, "yes1": 0, "yes2": 0}
	if !reflect.DeepEqual(e.Load(), want) {
		t.Fatalf("Load() after Rebalance = %v", e.Load())
	}
}
