package consensus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/net"
	"github.com/mosaicnetworks/dagledger/src/peers"
	"github.com/mosaicnetworks/dagledger/src/ratelimit"
)

type testValidator struct {
	key     *keys.Keypair
	graph   *dag.Graph
	trans   *net.InmemTransport
	service *VoteService
}

type testNetwork struct {
	leader      *keys.Keypair
	leaderGraph *dag.Graph
	trans       *net.InmemTransport
	validators  []*testValidator
	engine      *Engine
}

func newTestNetwork(t *testing.T, n int, limiter *ratelimit.KeyLimiter) *testNetwork {
	leader := keys.MustGenerateKeypair()
	_, leaderTrans := net.NewInmemTransport("")

	leaders := peers.NewPeerSet([]*peers.Peer{peers.NewPeer(leader.PublicKeyHex(), leaderTrans.LocalAddr(), "leader")})

	tn := &testNetwork{
		leader:      leader,
		leaderGraph: newTestGraph(t),
		trans:       leaderTrans,
	}

	var voters []Voter
	for i := 0; i < n; i++ {
		kp := keys.MustGenerateKeypair()
		addr, trans := net.NewInmemTransport("")
		leaderTrans.Connect(addr, trans)

		g := newTestGraph(t)
		svc := NewVoteService(kp.PublicKeyHex(), g, trans, leaders, limiter, common.NewTestEntry(t, common.TestLogLevel))
		svc.RunAsync()

		tn.validators = append(tn.validators, &testValidator{key: kp, graph: g, trans: trans, service: svc})
		voters = append(voters, NewRemoteVoter(peers.NewPeer(kp.PublicKeyHex(), addr, fmt.Sprintf("v%d", i)), leaderTrans, leader))
	}

	tn.engine = NewEngine(leader.PublicKeyHex(), leader, voters, time.Second, common.NewTestEntry(t, common.TestLogLevel))

	t.Cleanup(func() {
		for _, v := range tn.validators {
			v.service.Shutdown()
			v.trans.Close()
		}
		leaderTrans.Close()
	})

	return tn
}

func TestRemoteProposeAndAnnounce(t *testing.T) {
	tn := newTestNetwork(t, 3, nil)
	ctx := context.Background()

	root := newRoot(t)
	if err := tn.engine.Propose(ctx, tn.leaderGraph, root); err != nil {
		t.Fatal(err)
	}

	if applied := tn.engine.Announce(ctx, root); applied != 3 {
		t.Fatalf("Announce applied to %d validators, want 3", applied)
	}

	for i, v := range tn.validators {
		if _, err := v.graph.Get(root.ID); err != nil {
			t.Fatalf("validator %d should hold the announced transaction", i)
		}
	}

	// announcing twice is harmless
	if applied := tn.engine.Announce(ctx, root); applied != 3 {
		t.Fatalf("second Announce applied to %d validators, want 3", applied)
	}

	// validators now know the parent, so they accept the child
	kp := keys.MustGenerateKeypair()
	child, err := dag.CreateSignedTransaction(kp, "carol", dag.NewAmount(2), []string{root.ID}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.engine.Propose(ctx, tn.leaderGraph, child); err != nil {
		t.Fatal(err)
	}

	votes, accepted, announced := tn.validators[0].service.Stats()
	if votes == 0 || accepted == 0 || announced != 1 {
		t.Fatalf("Stats() = %d, %d, %d", votes, accepted, announced)
	}
}

func TestRemoteValidatorsWithoutParent(t *testing.T) {
	tn := newTestNetwork(t, 3, nil)
	ctx := context.Background()

	root := newRoot(t)
	if err := tn.engine.Propose(ctx, tn.leaderGraph, root); err != nil {
		t.Fatal(err)
	}

	// not announced: validators reject the child for a missing parent
	child, _ := dag.CreateSignedTransaction(keys.MustGenerateKeypair(), "carol", dag.NewAmount(2), []string{root.ID}, 0)

	err := tn.engine.Propose(ctx, tn.leaderGraph, child)
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if tn.leaderGraph.Len() != 1 {
		t.Fatalf("leader graph should be untouched")
	}
}

func TestVoteServiceRejectsUnknownLeader(t *testing.T) {
	tn := newTestNetwork(t, 1, nil)

	impostor := keys.MustGenerateKeypair()
	voter := NewRemoteVoter(peers.NewPeer(tn.validators[0].key.PublicKeyHex(), tn.validators[0].trans.LocalAddr(), ""), tn.trans, impostor)

	_, err := voter.Vote(context.Background(), newRoot(t))
	if err == nil || err.Error() != ErrUnknownLeader.Error() {
		t.Fatalf("expected %v, got %v", ErrUnknownLeader, err)
	}
}

func TestVoteServiceRejectsBadSignature(t *testing.T) {
	tn := newTestNetwork(t, 1, nil)

	args := net.VoteRequest{Transaction: *newRoot(t)}
	if err := args.Sign(tn.leader); err != nil {
		t.Fatal(err)
	}
	args.Transaction.Receiver = "mallory"

	var out net.VoteResponse
	err := tn.trans.Vote(context.Background(), tn.validators[0].trans.LocalAddr(), &args, &out)
	if err == nil || err.Error() != ErrBadRequestSignature.Error() {
		t.Fatalf("expected %v, got %v", ErrBadRequestSignature, err)
	}
}

func TestVoteServiceRateLimit(t *testing.T) {
	tn := newTestNetwork(t, 1, ratelimit.New(0.001, 2, 0))
	ctx := context.Background()

	voter := tn.engine.Voters()[0]
	for i := 0; i < 2; i++ {
		if _, err := voter.Vote(ctx, newRoot(t)); err != nil {
			t.Fatalf("request %d should be served: %v", i, err)
		}
	}

	_, err := voter.Vote(ctx, newRoot(t))
	if err == nil || err.Error() != ErrRateLimited.Error() {
		t.Fatalf("expected %v, got %v", ErrRateLimited, err)
	}
}

func TestVoteServiceUnexpectedCommand(t *testing.T) {
	_, trans := net.NewInmemTransport("")
	svc := NewVoteService("v", newTestGraph(t), trans, nil, nil, common.NewTestEntry(t, common.TestLogLevel))

	respCh := make(chan net.RPCResponse, 1)
	svc.processRPC(net.RPC{Command: "hello", RespChan: respCh})

	resp := <-respCh
	if resp.Error == nil {
		t.Fatalf("unexpected command should fail")
	}

}

func TestVoteServiceCommitHandler(t *testing.T) {
	leader := keys.MustGenerateKeypair()
	_, leaderTrans := net.NewInmemTransport("")
	defer leaderTrans.Close()

	kp := keys.MustGenerateKeypair()
	addr, trans := net.NewInmemTransport("")
	defer trans.Close()
	leaderTrans.Connect(addr, trans)

	svc := NewVoteService(kp.PublicKeyHex(), newTestGraph(t), trans, nil, nil, common.NewTestEntry(t, common.TestLogLevel))
	applied := make(chan string, 2)
	svc.SetCommitHandler(func(tx *dag.Transaction) {
		applied <- tx.ID
	})
	svc.RunAsync()
	defer svc.Shutdown()

	voter := NewRemoteVoter(peers.NewPeer(kp.PublicKeyHex(), addr, "v"), leaderTrans, leader)

	root := newRoot(t)
	for i := 0; i < 2; i++ {
		if err := voter.Announce(context.Background(), root); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case id := <-applied:
		if id != root.ID {
			t.Fatalf("handler got %s, want %s", id, root.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("commit handler not called")
	}

	// duplicates are not handed to the handler
	select {
	case id := <-applied:
		t.Fatalf("unexpected second call with %s", id)
	default:
	}
}

func TestVoteServiceForgedRequestsDoNotSpendLeaderTokens(t *testing.T) {
	tn := newTestNetwork(t, 1, ratelimit.New(0.001, 2, 0))
	ctx := context.Background()
	target := tn.validators[0].trans.LocalAddr()

	attacker := keys.MustGenerateKeypair()
	for i := 0; i < 5; i++ {
		args := net.VoteRequest{Transaction: *newRoot(t)}
		if err := args.Sign(attacker); err != nil {
			t.Fatal(err)
		}
		args.FromID = tn.leader.PublicKeyHex()

		var out net.VoteResponse
		err := tn.trans.Vote(ctx, target, &args, &out)
		if err == nil || err.Error() != ErrBadRequestSignature.Error() {
			t.Fatalf("forged request %d: expected %v, got %v", i, ErrBadRequestSignature, err)
		}
	}

	voter := tn.engine.Voters()[0]
	for i := 0; i < 2; i++ {
		if _, err := voter.Vote(ctx, newRoot(t)); err != nil {
			t.Fatalf("leader request %d refused after forged requests: %v", i, err)
		}
	}
}

func TestVoteServiceUnknownLeaderDoesNotSpendTokens(t *testing.T) {
	tn := newTestNetwork(t, 1, ratelimit.New(0.001, 1, 0))
	ctx := context.Background()

	impostor := keys.MustGenerateKeypair()
	voter := NewRemoteVoter(peers.NewPeer(tn.validators[0].key.PublicKeyHex(), tn.validators[0].trans.LocalAddr(), ""), tn.trans, impostor)
	for i := 0; i < 3; i++ {
		if _, err := voter.Vote(ctx, newRoot(t)); err == nil || err.Error() != ErrUnknownLeader.Error() {
			t.Fatalf("expected %v, got %v", ErrUnknownLeader, err)
		}
	}

	if _, err := tn.engine.Voters()[0].Vote(ctx, newRoot(t)); err != nil {
		t.Fatalf("leader refused: %v", err)
	}
}

func TestRemoteRevoke(t *testing.T) {
	tn := newTestNetwork(t, 3, nil)
	ctx := context.Background()

	root := newRoot(t)
	if err := tn.engine.Propose(ctx, tn.leaderGraph, root); err != nil {
		t.Fatal(err)
	}

	// only two validators hold the transaction
	for _, v := range tn.validators[:2] {
		if err := v.graph.Commit(root.Copy()); err != nil {
			t.Fatal(err)
		}
	}

	revoked, err := tn.engine.Revoke(ctx, tn.leaderGraph, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if revoked != 2 {
		t.Fatalf("Revoke applied to %d validators, want 2", revoked)
	}

	for i, v := range tn.validators[:2] {
		tx, err := v.graph.Get(root.ID)
		if err != nil {
			t.Fatal(err)
		}
		if tx.Status != dag.StatusRevoked {
			t.Fatalf("validator %d should have revoked the transaction", i)
		}
	}

	if _, err := tn.engine.Revoke(ctx, tn.leaderGraph, "tx-unknown"); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestRemoteRevokeUnknownLeader(t *testing.T) {
	tn := newTestNetwork(t, 1, nil)

	root := newRoot(t)
	if err := tn.validators[0].graph.Commit(root.Copy()); err != nil {
		t.Fatal(err)
	}

	impostor := keys.MustGenerateKeypair()
	voter := NewRemoteVoter(peers.NewPeer(tn.validators[0].key.PublicKeyHex(), tn.validators[0].trans.LocalAddr(), ""), tn.trans, impostor)

	err := voter.Revoke(context.Background(), root.ID)
	if err == nil || err.Error() != ErrUnknownLeader.Error() {
		t.Fatalf("expected %v, got %v", ErrUnknownLeader, err)
	}

	tx, err := tn.validators[0].graph.Get(root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status == dag.StatusRevoked {
		t.Fatalf("impostor should not revoke transactions")
	}
}
