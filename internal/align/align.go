// Package align reconciles two independently sampled, gap-prone station
// series onto a shared time index before differencing.
package align

import (
	"sort"
	"time"

	"calderaflow/internal/series"
)

// CleanResult is a deduplicated, time-ordered series plus the data-quality
// counters describing what had to be repaired.
type CleanResult struct {
	Series     *series.Series
	Duplicates int
	OutOfOrder int
}

// Clean sorts a series by timestamp and removes exact duplicate timestamps,
// keeping the first-observed value. Sensor logging order is not guaranteed,
// so out-of-order records are reordered rather than rejected; the count is
// surfaced as a data-quality signal for the caller to log.
func Clean(s *series.Series) CleanResult {
	res := CleanResult{}

	n := s.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 1; i < n; i++ {
		if s.Times[i].Before(s.Times[i-1]) {
			res.OutOfOrder++
		}
	}
	// Stable sort keeps input order among equal timestamps, which is what
	// makes keep-first deterministic.
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Times[idx[a]].Before(s.Times[idx[b]])
	})

	out := series.New(n)
	var prev time.Time
	for k, i := range idx {
		if k > 0 && s.Times[i].Equal(prev) {
			res.Duplicates++
			continue
		}
		out.Append(s.Times[i], s.Values[i])
		prev = s.Times[i]
	}
	res.Series = out
	return res
}

// Pair joins two cleaned series on their shared timestamps. Both columns
// carry an identical index by construction.
type Pair struct {
	Times     []time.Time
	Reference []float64
	Target    []float64
}

func (p *Pair) Len() int {
	return len(p.Times)
}

// ReferenceSeries returns the reference column as a standalone series
// sharing the pair's index.
func (p *Pair) ReferenceSeries() *series.Series {
	return &series.Series{Times: p.Times, Values: p.Reference}
}

// TargetSeries returns the target column as a standalone series sharing the
// pair's index.
func (p *Pair) TargetSeries() *series.Series {
	return &series.Series{Times: p.Times, Values: p.Target}
}

// Join intersects two cleaned series on timestamp. Only instants present in
// both survive: the differential is never computed where one side is absent,
// at the cost of dropping instants unique to one station. Disjoint inputs
// yield an empty pair, not an error. Both inputs must be sorted and free of
// duplicate timestamps.
func Join(reference, target *series.Series) *Pair {
	pair := &Pair{}
	i, j := 0, 0
	for i < reference.Len() && j < target.Len() {
		ti, tj := reference.Times[i], target.Times[j]
		switch {
		case ti.Before(tj):
			i++
		case tj.Before(ti):
			j++
		default:
			pair.Times = append(pair.Times, ti)
			pair.Reference = append(pair.Reference, reference.Values[i])
			pair.Target = append(pair.Target, target.Values[j])
			i++
			j++
		}
	}
	return pair
}

// Coverage summarises how much of a station's record survived each stage, so
// data-quality regressions are detectable from the run summary alone.
type Coverage struct {
	RawSamples int           `json:"raw_samples"`
	AfterDedup int           `json:"after_dedup"`
	AfterJoin  int           `json:"after_join"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	LargestGap time.Duration `json:"largest_gap_ns"`
}
