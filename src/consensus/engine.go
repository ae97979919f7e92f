package consensus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/peers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultProposeTimeout bounds a proposal when the engine is created without
// a timeout.
const DefaultProposeTimeout = 5 * time.Second

// Stats counts proposal outcomes since the engine was created.
type Stats struct {
	Proposals  uint64
	Commits    uint64
	Rejections uint64
}

// Engine is the leader side of the commit protocol.
type Engine struct {
	// accessed atomically, kept first for alignment
	proposals  uint64
	commits    uint64
	rejections uint64

	leaderID string
	key      *keys.Keypair
	voters   []Voter
	timeout  time.Duration

	loadLock sync.Mutex
	load     map[string]uint64 //[voter id] => answered vote requests

	logger *logrus.Entry
}

// NewEngine creates an Engine for a static set of voters. A timeout of zero
// means DefaultProposeTimeout.
func NewEngine(leaderID string,
	key *keys.Keypair,
	voters []Voter,
	timeout time.Duration,
	logger *logrus.Entry) *Engine {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if timeout <= 0 {
		timeout = DefaultProposeTimeout
	}

	load := make(map[string]uint64, len(voters))
	for _, v := range voters {
		load[v.ID()] = 0
	}

	return &Engine{
		leaderID: leaderID,
		key:      key,
		voters:   voters,
		timeout:  timeout,
		load:     load,
		logger:   logger.WithField("leader", leaderID),
	}
}

// LeaderID returns the identifier of the leader.
func (e *Engine) LeaderID() string {
	return e.leaderID
}

// Key returns the leader's keypair.
func (e *Engine) Key() *keys.Keypair {
	return e.key
}

// Voters returns the validator set.
func (e *Engine) Voters() []Voter {
	return e.voters
}

// Required returns the number of accepting votes needed to commit.
func (e *Engine) Required() int {
	return peers.MajorityOf(len(e.voters))
}

type ballot struct {
	voter  string
	accept bool
	err    error
}

// Propose asks every voter to validate tx and commits it to g once a strict
// majority accepts. Votes are collected concurrently. Collection stops early
// when the outcome is decided, and when the timeout or ctx expires, in which
// case the proposal is rejected. A voter error counts as a rejection. The
// graph is only touched after the threshold is met.
func (e *Engine) Propose(ctx context.Context, g *dag.Graph, tx *dag.Transaction) error {
	atomic.AddUint64(&e.proposals, 1)

	n := len(e.voters)
	required := e.Required()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results := make(chan ballot, n)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, v := range e.voters {
		v := v
		eg.Go(func() error {
			accept, err := v.Vote(egCtx, tx.Copy())
			results <- ballot{voter: v.ID(), accept: accept, err: err}
			return nil
		})
	}

	accepts, rejects := 0, 0

collect:
	for accepts+rejects < n {
		select {
		case b := <-results:
			e.recordLoad(b.voter)
			if b.err != nil {
				e.logger.WithFields(logrus.Fields{
					"id":    tx.ID,
					"voter": b.voter,
					"error": b.err,
				}).Debug("Vote failed")
			}
			if b.accept && b.err == nil {
				accepts++
			} else {
				rejects++
			}
			if accepts >= required || rejects > n-required {
				break collect
			}
		case <-ctx.Done():
			break collect
		}
	}

	expired := ctx.Err() != nil

	// Stop outstanding requests and wait for them to return
	cancel()
	eg.Wait()

	if accepts < required {
		atomic.AddUint64(&e.rejections, 1)

		e.logger.WithFields(logrus.Fields{
			"id":       tx.ID,
			"votes":    accepts,
			"required": required,
			"expired":  expired,
		}).Debug("Proposal rejected")

		return &RejectedError{Votes: accepts, Required: required}
	}

	if err := g.Commit(tx); err != nil {
		atomic.AddUint64(&e.rejections, 1)
		return err
	}

	atomic.AddUint64(&e.commits, 1)

	e.logger.WithFields(logrus.Fields{
		"id":       tx.ID,
		"votes":    accepts,
		"required": required,
	}).Debug("Proposal committed")

	return nil
}

// ProposeSync evaluates the proposal in process: each validator slot checks tx
// against g with its own fresh cache, one after the other.
func (e *Engine) ProposeSync(g *dag.Graph, tx *dag.Transaction) error {
	atomic.AddUint64(&e.proposals, 1)

	required := e.Required()

	accepts := 0
	for _, v := range e.voters {
		e.recordLoad(v.ID())
		if g.Validate(tx, dag.NewValidationCache()) {
			accepts++
		}
	}

	if accepts < required {
		atomic.AddUint64(&e.rejections, 1)
		return &RejectedError{Votes: accepts, Required: required}
	}

	if err := g.Commit(tx); err != nil {
		atomic.AddUint64(&e.rejections, 1)
		return err
	}

	atomic.AddUint64(&e.commits, 1)

	return nil
}

// Announce sends a committed transaction to every voter that keeps its own
// ledger and returns how many of them applied it. Failures are logged.
func (e *Engine) Announce(ctx context.Context, tx *dag.Transaction) int {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var applied int64

	var eg errgroup.Group
	for _, v := range e.voters {
		a, ok := v.(Announcer)
		if !ok {
			continue
		}
		id := v.ID()
		eg.Go(func() error {
			if err := a.Announce(ctx, tx.Copy()); err != nil {
				e.logger.WithFields(logrus.Fields{
					"id":    tx.ID,
					"voter": id,
					"error": err,
				}).Warn("Announce failed")
				return nil
			}
			atomic.AddInt64(&applied, 1)
			return nil
		})
	}
	eg.Wait()

	return int(applied)
}

// Revoke marks a committed transaction as revoked in g, then tells every voter
// that keeps its own ledger. It returns how many of them revoked it. An
// unknown id is an error and nothing is sent.
func (e *Engine) Revoke(ctx context.Context, g *dag.Graph, id string) (int, error) {
	if err := g.Revoke(id); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var revoked int64

	var eg errgroup.Group
	for _, v := range e.voters {
		r, ok := v.(Revoker)
		if !ok {
			continue
		}
		voter := v.ID()
		eg.Go(func() error {
			if err := r.Revoke(ctx, id); err != nil {
				e.logger.WithFields(logrus.Fields{
					"id":    id,
					"voter": voter,
					"error": err,
				}).Warn("Revoke failed")
				return nil
			}
			atomic.AddInt64(&revoked, 1)
			return nil
		})
	}
	eg.Wait()

	return int(revoked), nil
}

func (e *Engine) recordLoad(voter string) {
	e.loadLock.Lock()
	defer e.loadLock.Unlock()
	e.load[voter]++
}

// Load returns the number of vote requests each voter has answered.
func (e *Engine) Load() map[string]uint64 {
	e.loadLock.Lock()
	defer e.loadLock.Unlock()

	res := make(map[string]uint64, len(e.load))
	for k, v := range e.load {
		res[k] = v
	}
	return res
}

// Rebalance resets every load counter to zero.
func (e *Engine) Rebalance() {
	e.loadLock.Lock()
	defer e.loadLock.Unlock()

	for k := range e.load {
		e.load[k] = 0
	}

	e.logger.Debug("Load counters reset")
}

// Stats returns the proposal counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Proposals:  atomic.LoadUint64(&e.proposals),
		Commits:    atomic.LoadUint64(&e.commits),
		Rejections: atomic.LoadUint64(&e.rejections),
	}
}
