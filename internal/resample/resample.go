// Package resample aggregates a series into fixed-width, non-overlapping
// UTC calendar-aligned buckets.
package resample

import (
	"math"
	"time"

	"calderaflow/internal/series"
)

// Mean reduces a time-sorted series to one arithmetic-mean sample per
// bucket. The output is a continuous grid from the first to the last bucket
// the input touches; a bucket with no contributing valid samples yields a
// missing value, never zero or a carried-forward value, so "no data" stays
// distinguishable from a true zero.
func Mean(s *series.Series, bucket time.Duration) *series.Series {
	if s.Len() == 0 {
		return series.New(0)
	}

	start := s.Times[0].UTC().Truncate(bucket)
	end := s.Times[s.Len()-1].UTC().Truncate(bucket)
	n := int(end.Sub(start)/bucket) + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for i, v := range s.Values {
		if series.Missing(v) {
			continue
		}
		idx := int(s.Times[i].UTC().Truncate(bucket).Sub(start) / bucket)
		sums[idx] += v
		counts[idx]++
	}

	out := series.New(n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * bucket)
		if counts[i] == 0 {
			out.Append(t, math.NaN())
			continue
		}
		out.Append(t, sums[i]/float64(counts[i]))
	}
	return out
}
