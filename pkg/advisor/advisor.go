// Package advisor recommends which history views are worth prefetching,
// based on the usage and latency samples collected by the performance
// recorder.
package advisor

import (
	"sort"

	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/perf"
)

// DefaultLatencyWeight converts milliseconds of remote latency into score
// points: a view costing 100ms remotely ranks like one opened once more.
const DefaultLatencyWeight = 0.01

// Advisor ranks filter types for speculative pre-warming. Recommendations
// are hints; consumers may ignore them.
type Advisor struct {
	recorder      *perf.Recorder
	latencyWeight float64
}

// New creates an advisor reading from the given recorder.
func New(recorder *perf.Recorder) *Advisor {
	return &Advisor{recorder: recorder, latencyWeight: DefaultLatencyWeight}
}

// Recommend returns the other known filter types ordered by expected
// prefetch benefit. Views opened more often, or whose remote fetch is
// slower, rank first. The currently viewed type is excluded; custom windows
// are never recommended since their bounds cannot be predicted.
func (a *Advisor) Recommend(current filter.Type) []filter.Type {
	sums := a.recorder.Summaries()

	type candidate struct {
		t     filter.Type
		score float64
		order int // position in KnownTypes, the deterministic tie-break
	}

	var candidates []candidate
	for i, t := range filter.KnownTypes {
		if t == current {
			continue
		}
		score := 0.0
		if s, ok := sums[string(t)]; ok {
			score = float64(s.Count) + a.latencyWeight*float64(s.RemoteAvg.Milliseconds())
		}
		candidates = append(candidates, candidate{t: t, score: score, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	out := make([]filter.Type, len(candidates))
	for i, c := range candidates {
		out[i] = c.t
	}
	return out
}
