package consensus

import (
	"fmt"
	"sync"
	"time"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/net"
	"github.com/mosaicnetworks/dagledger/src/peers"
	"github.com/mosaicnetworks/dagledger/src/ratelimit"
	"github.com/sirupsen/logrus"
)

// VoteService is the validator side of the commit protocol. It consumes the
// RPCs of a Transport, one at a time.
type VoteService struct {
	id      string
	graph   *dag.Graph
	trans   net.Transport
	leaders *peers.PeerSet
	limiter *ratelimit.KeyLimiter

	onCommit func(*dag.Transaction)

	votes     uint64
	accepted  uint64
	announced uint64
	statsLock sync.Mutex

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	done         chan struct{}

	logger *logrus.Entry
}

// NewVoteService creates a VoteService for the validator id. If leaders is
// non-empty, only requests signed by one of its keys are served. A nil limiter
// disables rate limiting.
func NewVoteService(id string,
	graph *dag.Graph,
	trans net.Transport,
	leaders *peers.PeerSet,
	limiter *ratelimit.KeyLimiter,
	logger *logrus.Entry) *VoteService {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &VoteService{
		id:         id,
		graph:      graph,
		trans:      trans,
		leaders:    leaders,
		limiter:    limiter,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.WithField("validator", id),
	}
}

// RunAsync calls Run in a separate goroutine.
func (s *VoteService) RunAsync() {
	go s.Run()
}

// Run processes incoming RPCs until Shutdown is called.
func (s *VoteService) Run() {
	defer close(s.done)

	netCh := s.trans.Consumer()

	for {
		select {
		case rpc := <-netCh:
			s.processRPC(rpc)
		case <-s.shutdownCh:
			return
		}
	}
}

// Shutdown stops Run and waits for it to return. It does not close the
// transport.
func (s *VoteService) Shutdown() {
	s.shutdownLock.Lock()
	if s.shutdown {
		s.shutdownLock.Unlock()
		return
	}
	s.shutdown = true
	close(s.shutdownCh)
	s.shutdownLock.Unlock()

	<-s.done
}

// SetCommitHandler registers f to be called, from the service goroutine, with
// every announced transaction applied to the graph. It must be called before
// Run.
func (s *VoteService) SetCommitHandler(f func(*dag.Transaction)) {
	s.onCommit = f
}

// Stats returns the number of vote requests served, how many were accepted,
// and how many announced transactions were applied.
func (s *VoteService) Stats() (votes, accepted, announced uint64) {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	return s.votes, s.accepted, s.announced
}

func (s *VoteService) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.VoteRequest:
		s.processVoteRequest(rpc, cmd)
	case *net.AnnounceRequest:
		s.processAnnounceRequest(rpc, cmd)
	case *net.RevokeRequest:
		s.processRevokeRequest(rpc, cmd)
	default:
		s.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// authorize checks the request signature and the leader set, then spends a
// rate-limit token for the leader. Only authenticated requests reach the
// limiter, so forged requests cannot drain a leader's bucket.
func (s *VoteService) authorize(from string, verified bool) error {
	if !verified {
		return ErrBadRequestSignature
	}
	if s.leaders != nil && s.leaders.Len() > 0 && !s.leaders.Contains(from) {
		return ErrUnknownLeader
	}
	if !s.limiter.Allow(from, time.Now()) {
		return ErrRateLimited
	}
	return nil
}

func (s *VoteService) processVoteRequest(rpc net.RPC, cmd *net.VoteRequest) {
	resp := &net.VoteResponse{
		FromID: s.id,
	}

	if err := s.authorize(cmd.FromID, cmd.Verify()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"from_id": cmd.FromID,
			"error":   err,
		}).Debug("Refusing VoteRequest")
		rpc.Respond(resp, err)
		return
	}

	_, err := s.graph.Check(&cmd.Transaction, dag.NewValidationCache())
	resp.Accept = err == nil
	if err != nil {
		resp.Reason = err.Error()
	}

	s.statsLock.Lock()
	s.votes++
	if resp.Accept {
		s.accepted++
	}
	s.statsLock.Unlock()

	s.logger.WithFields(logrus.Fields{
		"id":     cmd.Transaction.ID,
		"accept": resp.Accept,
		"reason": resp.Reason,
	}).Debug("process VoteRequest")

	rpc.Respond(resp, nil)
}

func (s *VoteService) processAnnounceRequest(rpc net.RPC, cmd *net.AnnounceRequest) {
	resp := &net.AnnounceResponse{
		FromID: s.id,
	}

	if err := s.authorize(cmd.FromID, cmd.Verify()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"from_id": cmd.FromID,
			"error":   err,
		}).Debug("Refusing AnnounceRequest")
		rpc.Respond(resp, err)
		return
	}

	err := s.graph.Commit(&cmd.Transaction)
	switch {
	case err == nil:
		resp.Success = true
		s.statsLock.Lock()
		s.announced++
		s.statsLock.Unlock()
		if s.onCommit != nil {
			s.onCommit(cmd.Transaction.Copy())
		}
	case common.IsStore(err, common.KeyAlreadyExists):
		// already applied
		resp.Success = true
	default:
		s.logger.WithFields(logrus.Fields{
			"id":    cmd.Transaction.ID,
			"error": err,
		}).Warn("Failed to apply announced transaction")
	}

	rpc.Respond(resp, nil)
}

func (s *VoteService) processRevokeRequest(rpc net.RPC, cmd *net.RevokeRequest) {
	resp := &net.RevokeResponse{
		FromID: s.id,
	}

	if err := s.authorize(cmd.FromID, cmd.Verify()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"from_id": cmd.FromID,
			"error":   err,
		}).Debug("Refusing RevokeRequest")
		rpc.Respond(resp, err)
		return
	}

	err := s.graph.Revoke(cmd.TxID)
	switch {
	case err == nil:
		resp.Success = true
	case common.IsStore(err, common.KeyNotFound):
		s.logger.WithField("id", cmd.TxID).Debug("Revoked transaction is unknown")
	default:
		s.logger.WithFields(logrus.Fields{
			"id":    cmd.TxID,
			"error": err,
		}).Warn("Failed to revoke transaction")
	}

	rpc.Respond(resp, nil)
}
