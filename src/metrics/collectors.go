package metrics

import (
	"github.com/mosaicnetworks/dagledger/src/consensus"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dagledger"

// GraphSource is the read side of a ledger graph.
type GraphSource interface {
	Len() int
	LayerCount() int
	RevokedCount() int
}

// GraphCollector reports the size of a ledger graph.
type GraphCollector struct {
	graph        GraphSource
	transactions *prometheus.Desc
	layers       *prometheus.Desc
	revoked      *prometheus.Desc
}

// NewGraphCollector ...
func NewGraphCollector(graph GraphSource) *GraphCollector {
	return &GraphCollector{
		graph: graph,
		transactions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "graph", "transactions"),
			"Number of committed transactions",
			nil, nil,
		),
		layers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "graph", "layers"),
			"Number of layers in the graph",
			nil, nil,
		),
		revoked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "graph", "revoked_transactions"),
			"Number of revoked transactions",
			nil, nil,
		),
	}
}

func (c *GraphCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.transactions
	ch <- c.layers
	ch <- c.revoked
}

func (c *GraphCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.transactions, prometheus.GaugeValue, float64(c.graph.Len()))
	ch <- prometheus.MustNewConstMetric(c.layers, prometheus.GaugeValue, float64(c.graph.LayerCount()))
	ch <- prometheus.MustNewConstMetric(c.revoked, prometheus.GaugeValue, float64(c.graph.RevokedCount()))
}

// EngineSource is implemented by consensus.Engine.
type EngineSource interface {
	Stats() consensus.Stats
	Load() map[string]uint64
}

// EngineCollector reports proposal outcomes and per-voter load of a leader.
type EngineCollector struct {
	engine     EngineSource
	proposals  *prometheus.Desc
	commits    *prometheus.Desc
	rejections *prometheus.Desc
	load       *prometheus.Desc
}

// NewEngineCollector ...
func NewEngineCollector(engine EngineSource) *EngineCollector {
	return &EngineCollector{
		engine: engine,
		proposals: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consensus", "proposals_total"),
			"Transactions proposed to the validator set",
			nil, nil,
		),
		commits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consensus", "commits_total"),
			"Proposals accepted by a majority and committed",
			nil, nil,
		),
		rejections: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consensus", "rejections_total"),
			"Proposals that failed to reach a majority",
			nil, nil,
		),
		load: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consensus", "voter_load"),
			"Vote requests answered per validator",
			[]string{"voter"}, nil,
		),
	}
}

func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.proposals
	ch <- c.commits
	ch <- c.rejections
	ch <- c.load
}

func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(c.proposals, prometheus.CounterValue, float64(stats.Proposals))
	ch <- prometheus.MustNewConstMetric(c.commits, prometheus.CounterValue, float64(stats.Commits))
	ch <- prometheus.MustNewConstMetric(c.rejections, prometheus.CounterValue, float64(stats.Rejections))
	for voter, n := range c.engine.Load() {
		ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, float64(n), voter)
	}
}

// ServiceSource is implemented by consensus.VoteService.
type ServiceSource interface {
	Stats() (votes, accepted, announced uint64)
}

// DenialSource counts requests refused by a rate limiter.
type DenialSource interface {
	Denied() uint64
}

// ServiceCollector reports the validator side of the protocol.
type ServiceCollector struct {
	service   ServiceSource
	limiter   DenialSource
	votes     *prometheus.Desc
	accepted  *prometheus.Desc
	announced *prometheus.Desc
	denied    *prometheus.Desc
}

// NewServiceCollector ... limiter may be nil.
func NewServiceCollector(service ServiceSource, limiter DenialSource) *ServiceCollector {
	return &ServiceCollector{
		service: service,
		limiter: limiter,
		votes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "validator", "votes_total"),
			"Vote requests served",
			nil, nil,
		),
		accepted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "validator", "votes_accepted_total"),
			"Vote requests answered with accept",
			nil, nil,
		),
		announced: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "validator", "announced_total"),
			"Announced transactions applied to the local graph",
			nil, nil,
		),
		denied: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "validator", "rate_limited_total"),
			"Requests refused by the rate limiter",
			nil, nil,
		),
	}
}

func (c *ServiceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.votes
	ch <- c.accepted
	ch <- c.announced
	ch <- c.denied
}

func (c *ServiceCollector) Collect(ch chan<- prometheus.Metric) {
	votes, accepted, announced := c.service.Stats()
	ch <- prometheus.MustNewConstMetric(c.votes, prometheus.CounterValue, float64(votes))
	ch <- prometheus.MustNewConstMetric(c.accepted, prometheus.CounterValue, float64(accepted))
	ch <- prometheus.MustNewConstMetric(c.announced, prometheus.CounterValue, float64(announced))

	var denied uint64
	if c.limiter != nil {
		denied = c.limiter.Denied()
	}
	ch <- prometheus.MustNewConstMetric(c.denied, prometheus.CounterValue, float64(denied))
}
