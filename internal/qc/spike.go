package qc

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"calderaflow/internal/series"
)

var missing = math.NaN()

// madScale makes the MAD a consistent estimator of the standard deviation
// under a normal distribution.
const madScale = 1.4826

// SpikeFilter flags samples that deviate too far from a centered rolling
// median, measured in scaled MAD units. The centered window needs lookahead,
// which is fine here: the filter runs on a complete batch, never a live
// stream.
//
// A window with fewer than MinPoints valid samples cannot support a reliable
// local statistic, so the point is left unflagged (insufficient evidence)
// and the condition is counted.
type SpikeFilter struct {
	Window    time.Duration
	Threshold float64
	MinPoints int
}

// SpikeResult carries the filtered series plus the data-quality counters the
// run summary reports.
type SpikeResult struct {
	Series       *series.Series
	Flagged      int
	Insufficient int
}

// Filter returns a copy of s with spikes replaced by missing values. Flagged
// points are never deleted, so downstream indexing stays stable, and they
// are never imputed. The input must be sorted by time.
//
// Both rolling windows are computed from the original valid samples before
// any flag is applied, so flags cannot compound within one pass.
func (f SpikeFilter) Filter(s *series.Series) SpikeResult {
	out := s.Clone()
	n := s.Len()
	if n == 0 {
		return SpikeResult{Series: out}
	}

	half := f.Window / 2

	// Pass 1: centered rolling median of the values, then each point's
	// absolute deviation from it.
	medians, medCounts := rollingMedian(s.Times, s.Values, half)
	deviations := make([]float64, n)
	for i, v := range s.Values {
		if series.Missing(v) || series.Missing(medians[i]) {
			deviations[i] = missing
			continue
		}
		deviations[i] = math.Abs(v - medians[i])
	}

	// Pass 2: rolling median of the deviations over the same window gives
	// the MAD.
	mads, madCounts := rollingMedian(s.Times, deviations, half)

	result := SpikeResult{Series: out}
	for i, v := range s.Values {
		if series.Missing(v) {
			continue
		}
		if medCounts[i] < f.MinPoints || madCounts[i] < f.MinPoints {
			result.Insufficient++
			continue
		}
		sigma := madScale * mads[i]
		// Comparison form: no division, so a zero MAD on a constant
		// stretch flags nothing.
		if deviations[i] > f.Threshold*sigma {
			out.Values[i] = missing
			result.Flagged++
		}
	}
	return result
}

// rollingMedian computes, for every index, the median of the valid values
// whose timestamps fall within [t-half, t+half]. Missing values are excluded
// from every window. Returns the medians (NaN where the window is empty) and
// the valid-sample count per window.
func rollingMedian(times []time.Time, values []float64, half time.Duration) ([]float64, []int) {
	n := len(values)
	medians := make([]float64, n)
	counts := make([]int, n)

	lo, hi := 0, 0
	window := make([]float64, 0, 64)
	for i := 0; i < n; i++ {
		start := times[i].Add(-half)
		end := times[i].Add(half)
		for lo < n && times[lo].Before(start) {
			lo++
		}
		if hi < lo {
			hi = lo
		}
		for hi < n && !times[hi].After(end) {
			hi++
		}

		window = window[:0]
		for j := lo; j < hi; j++ {
			if !series.Missing(values[j]) {
				window = append(window, values[j])
			}
		}
		counts[i] = len(window)
		if len(window) == 0 {
			medians[i] = missing
			continue
		}
		med, err := stats.Median(window)
		if err != nil {
			medians[i] = missing
			counts[i] = 0
			continue
		}
		medians[i] = med
	}
	return medians, counts
}
