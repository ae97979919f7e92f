// Package bundle batches committed transactions for downstream consumers.
package bundle

import (
	"sort"

	"github.com/mosaicnetworks/dagledger/src/dag"
)

// SmallGraphThreshold is the transaction count below which every transaction
// gets its own bundle.
const SmallGraphThreshold = 10

// BundleDivisor is the target number of bundles for graphs at or above
// SmallGraphThreshold.
const BundleDivisor = 5

// Bundle is an ordered batch of transactions.
type Bundle struct {
	Index        int                `json:"index"`
	Transactions []*dag.Transaction `json:"transactions"`
}

// ProcessAdaptiveBundles returns the committed transactions of g sorted by
// timestamp and cut into bundles. The graph is not modified.
func ProcessAdaptiveBundles(g *dag.Graph) []Bundle {
	return Partition(g.Transactions())
}

// Partition sorts txs by timestamp, then id, and cuts them into bundles of
// BundleSize(len(txs)). The last bundle may be smaller.
func Partition(txs []*dag.Transaction) []Bundle {
	if len(txs) == 0 {
		return nil
	}

	sorted := make([]*dag.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].ID < sorted[j].ID
	})

	size := BundleSize(len(sorted))

	bundles := make([]Bundle, 0, (len(sorted)+size-1)/size)
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		bundles = append(bundles, Bundle{
			Index:        len(bundles),
			Transactions: sorted[start:end:end],
		})
	}

	return bundles
}

// BundleSize returns the bundle size used for count transactions.
func BundleSize(count int) int {
	if count < SmallGraphThreshold {
		return 1
	}
	return count / BundleDivisor
}
