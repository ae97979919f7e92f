package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/consensus"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct{}

func (fakeEngine) Stats() consensus.Stats {
	return consensus.Stats{Proposals: 5, Commits: 3, Rejections: 2}
}

func (fakeEngine) Load() map[string]uint64 {
	return map[string]uint64{"a": 4, "b": 1}
}

type fakeService struct{}

func (fakeService) Stats() (uint64, uint64, uint64) {
	return 7, 6, 2
}

type fakeLimiter uint64

func (f fakeLimiter) Denied() uint64 {
	return uint64(f)
}

func gather(t *testing.T, reg *prometheus.Registry) map[string][]float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)

	res := make(map[string][]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			if m.GetGauge() != nil {
				v = m.GetGauge().GetValue()
			} else {
				v = m.GetCounter().GetValue()
			}
			res[mf.GetName()] = append(res[mf.GetName()], v)
		}
	}
	return res
}

func TestGraphCollector(t *testing.T) {
	g := dag.NewGraph(common.NewTestEntry(t, common.TestLogLevel))
	kp := keys.MustGenerateKeypair()

	root, err := dag.CreateSignedTransaction(kp, "bob", dag.NewAmount(1), nil, 0)
	require.NoError(t, err)
	require.NoError(t, g.Commit(root))
	child, err := dag.CreateSignedTransaction(kp, "bob", dag.NewAmount(1), []string{root.ID}, 0)
	require.NoError(t, err)
	require.NoError(t, g.Commit(child))
	require.NoError(t, g.Revoke(child.ID))

	reg, err := NewRegistry(NewGraphCollector(g))
	require.NoError(t, err)

	got := gather(t, reg)
	require.Equal(t, []float64{2}, got["dagledger_graph_transactions"])
	require.Equal(t, []float64{2}, got["dagledger_graph_layers"])
	require.Equal(t, []float64{1}, got["dagledger_graph_revoked_transactions"])
}

func TestEngineAndServiceCollectors(t *testing.T) {
	reg, err := NewRegistry(
		NewEngineCollector(fakeEngine{}),
		NewServiceCollector(fakeService{}, fakeLimiter(9)),
	)
	require.NoError(t, err)

	got := gather(t, reg)
	require.Equal(t, []float64{5}, got["dagledger_consensus_proposals_total"])
	require.Equal(t, []float64{3}, got["dagledger_consensus_commits_total"])
	require.Equal(t, []float64{2}, got["dagledger_consensus_rejections_total"])
	require.ElementsMatch(t, []float64{4, 1}, got["dagledger_consensus_voter_load"])
	require.Equal(t, []float64{7}, got["dagledger_validator_votes_total"])
	require.Equal(t, []float64{6}, got["dagledger_validator_votes_accepted_total"])
	require.Equal(t, []float64{2}, got["dagledger_validator_announced_total"])
	require.Equal(t, []float64{9}, got["dagledger_validator_rate_limited_total"])
}

func TestServiceCollectorWithoutLimiter(t *testing.T) {
	reg, err := NewRegistry(NewServiceCollector(fakeService{}, nil))
	require.NoError(t, err)

	got := gather(t, reg)
	require.Equal(t, []float64{0}, got["dagledger_validator_rate_limited_total"])
}

func TestDuplicateRegistration(t *testing.T) {
	g := dag.NewGraph(common.NewTestEntry(t, common.TestLogLevel))
	_, err := NewRegistry(NewGraphCollector(g), NewGraphCollector(g))
	require.Error(t, err)
}

func TestServe(t *testing.T) {
	g := dag.NewGraph(common.NewTestEntry(t, common.TestLogLevel))
	reg, err := NewRegistry(NewGraphCollector(g))
	require.NoError(t, err)

	srv, err := Serve("127.0.0.1:0", reg, common.NewTestEntry(t, common.TestLogLevel))
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "dagledger_graph_transactions 0"))

	require.NoError(t, srv.Close())
	for range srv.Err() {
	}
}
