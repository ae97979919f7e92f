package node

import (
	"context"
	"io"
	"sync"

	"github.com/mosaicnetworks/dagledger/src/bundle"
	"github.com/mosaicnetworks/dagledger/src/config"
	"github.com/mosaicnetworks/dagledger/src/consensus"
	"github.com/mosaicnetworks/dagledger/src/contract"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/metrics"
	"github.com/mosaicnetworks/dagledger/src/net"
	"github.com/mosaicnetworks/dagledger/src/peers"
	"github.com/mosaicnetworks/dagledger/src/ratelimit"
	"github.com/mosaicnetworks/dagledger/src/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Node assembles the ledger components of a leader or a validator process.
//
// Transport, Peers, Leaders, Store and Sink may be set before Init. Those left
// nil are built from the configuration.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	Transport net.Transport
	Peers     *peers.PeerSet
	Leaders   *peers.PeerSet
	Store     store.Store
	Sink      bundle.Sink

	graph      *dag.Graph
	dispatcher *contract.Dispatcher
	engine     *consensus.Engine
	service    *consensus.VoteService
	limiter    *ratelimit.KeyLimiter
	processor  *bundle.Processor
	registry   *prometheus.Registry
	metrics    *metrics.Server

	ctx    context.Context
	cancel context.CancelFunc

	lock sync.Mutex
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config) *Node {
	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		conf:   conf,
		logger: conf.Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init builds every component of the node. It must be called once, before
// Run.
func (n *Node) Init() error {
	if err := n.initKey(); err != nil {
		return err
	}

	n.logger = n.conf.Logger().WithField("this_id", n.ID())

	if err := n.initPeers(); err != nil {
		return err
	}

	if err := n.initStore(); err != nil {
		return err
	}

	if err := n.initTransport(); err != nil {
		return err
	}

	if err := n.initRole(); err != nil {
		return err
	}

	n.initBundles()

	return n.initMetrics()
}

// RunAsync starts the node and returns immediately.
func (n *Node) RunAsync() {
	n.start()
}

// Run starts the node and blocks until Shutdown.
func (n *Node) Run() {
	n.start()
	<-n.ctx.Done()
}

func (n *Node) start() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if _, ok := n.advance(Running); !ok {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"leader": n.IsLeader(),
		"addr":   n.Transport.AdvertiseAddr(),
	}).Debug("RUN")

	n.goFunc(n.Transport.Listen)

	if n.service != nil {
		n.goFunc(n.service.Run)
	} else {
		n.goFunc(n.refuseRPCs)
	}

	if n.conf.SnapshotInterval > 0 {
		n.goFunc(n.snapshotLoop)
	}

	if n.processor != nil {
		n.goFunc(func() {
			n.processor.Loop(n.ctx, n.graph, n.conf.BundleInterval)
		})
	}

	if n.conf.MetricsAddr != "" {
		srv, err := metrics.Serve(n.conf.MetricsAddr, n.registry, n.logger.WithField("component", "metrics"))
		if err != nil {
			n.logger.WithError(err).Error("Cannot start metrics server")
		} else {
			n.metrics = srv
		}
	}
}

// Shutdown stops the background routines, closes the transport, saves a
// last snapshot and closes the store. It is safe to call more than once.
func (n *Node) Shutdown() {
	n.lock.Lock()
	defer n.lock.Unlock()

	prev, ok := n.advance(Shutdown)
	if !ok {
		return
	}

	n.logger.WithField("from", prev).Debug("SHUTDOWN")

	n.cancel()

	if prev == Running && n.service != nil {
		n.service.Shutdown()
	}

	if n.Transport != nil {
		n.Transport.Close()
	}

	n.waitRoutines()

	if n.metrics != nil {
		if err := n.metrics.Close(); err != nil {
			n.logger.WithError(err).Error("Closing metrics server")
		}
	}

	if n.Store != nil {
		if n.graph != nil {
			n.saveSnapshot()
		}
		if err := n.Store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	}

	if c, ok := n.Sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			n.logger.WithError(err).Error("Closing bundle sink")
		}
	}
}

// ID returns the public key of the node, in hex.
func (n *Node) ID() string {
	return n.conf.Key.PublicKeyHex()
}

// IsLeader reports whether the node proposes transactions.
func (n *Node) IsLeader() bool {
	return n.conf.Leader
}

// GetState returns the state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

// Graph returns the ledger graph.
func (n *Node) Graph() *dag.Graph {
	return n.graph
}

// Engine returns the consensus engine of a leader, nil otherwise.
func (n *Node) Engine() *consensus.Engine {
	return n.engine
}

// Service returns the vote service of a validator, nil otherwise.
func (n *Node) Service() *consensus.VoteService {
	return n.service
}

// Dispatcher returns the contract dispatcher.
func (n *Node) Dispatcher() *contract.Dispatcher {
	return n.dispatcher
}

// Registry returns the Prometheus registry holding the node's collectors.
func (n *Node) Registry() *prometheus.Registry {
	return n.registry
}
