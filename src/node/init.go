package node

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/dagledger/src/bundle"
	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/config"
	"github.com/mosaicnetworks/dagledger/src/consensus"
	"github.com/mosaicnetworks/dagledger/src/contract"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/metrics"
	"github.com/mosaicnetworks/dagledger/src/net"
	"github.com/mosaicnetworks/dagledger/src/peers"
	"github.com/mosaicnetworks/dagledger/src/ratelimit"
	"github.com/mosaicnetworks/dagledger/src/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func (n *Node) initKey() error {
	if n.conf.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(n.conf.Keyfile())

	kp, err := keyfile.ReadKey()
	if err != nil {
		if !os.IsNotExist(err) {
			n.logger.WithError(err).Error("Cannot read private key from file")
			return err
		}

		n.logger.WithField("keyfile", n.conf.Keyfile()).Info("No private key found")

		kp, err = Keygen(n.conf.DataDir)
		if err != nil {
			n.logger.WithError(err).Error("Cannot generate a new private key")
			return err
		}

		n.logger.WithField("pub", kp.PublicKeyHex()).Info("Created a new key")
	}

	n.conf.Key = kp

	return nil
}

func (n *Node) initPeers() error {
	if n.IsLeader() {
		if n.Peers != nil {
			return nil
		}

		peerSet, err := peers.NewJSONPeerSet(n.conf.DataDir).PeerSet()
		if err != nil {
			return err
		}

		n.Peers = peerSet

		n.logger.WithFields(logrus.Fields{
			"validators": peerSet.Len(),
			"hash":       peerSet.Hex(),
		}).Debug("Loaded validator set")

		return nil
	}

	if n.Leaders != nil {
		return nil
	}

	leaderStore := peers.NewJSONLeaderSet(n.conf.DataDir)

	leaders, err := leaderStore.PeerSet()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		n.logger.WithField("path", leaderStore.Path()).Warn("No leader set, accepting any signed request")
		leaders = peers.NewPeerSet(nil)
	}

	n.Leaders = leaders

	n.logger.WithFields(logrus.Fields{
		"leaders": leaders.Len(),
		"hash":    leaders.Hex(),
	}).Debug("Loaded leader set")

	return nil
}

func (n *Node) initStore() error {
	logger := n.logger.WithField("component", "store")

	if n.Store == nil {
		if n.conf.Store {
			logger.WithField("path", n.conf.DatabaseDir).Debug("Attempting to load or create database")

			badgerStore, err := store.LoadOrCreateBadgerStore(n.conf.DatabaseDir, logger)
			if err != nil {
				return err
			}

			n.Store = badgerStore
		} else {
			n.Store = store.NewInmemStore()

			logger.Debug("created new in-mem store")
		}
	}

	graphLogger := n.logger.WithField("component", "graph")

	snap, err := n.Store.Load()
	switch {
	case err == nil:
		g, err := dag.Restore(snap, graphLogger)
		if err != nil {
			return err
		}
		n.graph = g

		logger.WithField("transactions", g.Len()).Debug("Restored graph from store")
	case common.IsStore(err, common.Empty):
		n.graph = dag.NewGraph(graphLogger)
	default:
		return err
	}

	return nil
}

func (n *Node) initTransport() error {
	if n.Transport != nil {
		return nil
	}

	trans, err := net.NewTCPTransport(
		n.conf.BindAddr,
		n.conf.AdvertiseAddr,
		n.conf.MaxPool,
		n.conf.TCPTimeout,
		n.logger.WithField("component", "transport"),
	)
	if err != nil {
		return err
	}

	n.Transport = trans

	return nil
}

func (n *Node) initRole() error {
	n.dispatcher = contract.NewDispatcher(nil, n.logger.WithField("component", "contract"))

	self := n.ID()

	if !n.IsLeader() {
		n.limiter = ratelimit.New(n.conf.RateLimit, n.conf.RateBurst, config.DefaultRateLimitTTL)
		n.service = consensus.NewVoteService(self,
			n.graph,
			n.Transport,
			n.Leaders,
			n.limiter,
			n.logger.WithField("component", "validator"))
		n.service.SetCommitHandler(n.execute)
		return nil
	}

	voters := make([]consensus.Voter, 0, n.Peers.Len())
	for _, p := range n.Peers.Peers {
		if p.PubKeyHex == self {
			voters = append(voters, consensus.NewLocalVoter(self, n.graph))
			continue
		}
		voters = append(voters, consensus.NewRemoteVoter(p, n.Transport, n.conf.Key))
	}

	if len(voters) == 0 {
		return fmt.Errorf("peers.json should define at least one validator")
	}

	n.engine = consensus.NewEngine(self,
		n.conf.Key,
		voters,
		n.conf.ProposeTimeout,
		n.logger.WithField("component", "consensus"))

	return nil
}

func (n *Node) initBundles() {
	if n.conf.BundleInterval <= 0 {
		return
	}

	logger := n.logger.WithField("component", "bundle")

	if n.Sink == nil {
		if len(n.conf.KafkaBrokers) > 0 {
			n.Sink = bundle.NewKafkaSink(bundle.NewKafkaWriter(n.conf.KafkaBrokers, n.conf.KafkaTopic), logger)
		} else {
			n.Sink = bundle.NewLogSink(logger)
		}
	}

	n.processor = bundle.NewProcessor(n.Sink, logger)
}

func (n *Node) initMetrics() error {
	collectors := []prometheus.Collector{metrics.NewGraphCollector(n.graph)}

	if n.engine != nil {
		collectors = append(collectors, metrics.NewEngineCollector(n.engine))
	}

	if n.service != nil {
		collectors = append(collectors, metrics.NewServiceCollector(n.service, n.limiter))
	}

	reg, err := metrics.NewRegistry(collectors...)
	if err != nil {
		return err
	}

	n.registry = reg

	return nil
}

// Keygen creates a new keypair and writes it to the keyfile of datadir. It
// fails if a key already lives there.
func Keygen(datadir string) (*keys.Keypair, error) {
	keyfile := keys.NewSimpleKeyfile((&config.Config{DataDir: datadir}).Keyfile())

	if _, err := os.Stat(keyfile.Path()); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", datadir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	kp, err := keys.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(kp); err != nil {
		return nil, err
	}

	return kp, nil
}
