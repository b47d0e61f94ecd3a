// Package series holds the time-indexed depth records every pipeline stage
// exchanges. A missing observation is NaN in Values; the timestamp slot is
// kept so indexing stays stable across QC stages.
package series

import (
	"math"
	"time"
)

// Series is an ordered-by-time sequence of observations for one station or
// one derived signal. Times and Values are parallel slices.
type Series struct {
	Times  []time.Time
	Values []float64
}

// New returns an empty series with capacity for n samples.
func New(n int) *Series {
	return &Series{
		Times:  make([]time.Time, 0, n),
		Values: make([]float64, 0, n),
	}
}

func (s *Series) Len() int {
	return len(s.Values)
}

func (s *Series) Append(t time.Time, v float64) {
	s.Times = append(s.Times, t.UTC())
	s.Values = append(s.Values, v)
}

// Clone creates a deep copy of the series.
func (s *Series) Clone() *Series {
	out := &Series{
		Times:  make([]time.Time, len(s.Times)),
		Values: make([]float64, len(s.Values)),
	}
	copy(out.Times, s.Times)
	copy(out.Values, s.Values)
	return out
}

// Missing reports whether v marks an absent observation.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

// ValidCount returns the number of non-missing samples.
func (s *Series) ValidCount() int {
	n := 0
	for _, v := range s.Values {
		if !Missing(v) {
			n++
		}
	}
	return n
}

// Span returns the time covered by the series. ok is false for an empty
// series.
func (s *Series) Span() (start, end time.Time, ok bool) {
	if len(s.Times) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.Times[0], s.Times[len(s.Times)-1], true
}

// LargestGap returns the widest interval between consecutive non-missing
// samples. Requires the series to be sorted by time.
func (s *Series) LargestGap() time.Duration {
	var largest time.Duration
	var prev time.Time
	seen := false
	for i, v := range s.Values {
		if Missing(v) {
			continue
		}
		if seen {
			if gap := s.Times[i].Sub(prev); gap > largest {
				largest = gap
			}
		}
		prev = s.Times[i]
		seen = true
	}
	return largest
}

// Sorted reports whether timestamps are in non-decreasing order.
func (s *Series) Sorted() bool {
	for i := 1; i < len(s.Times); i++ {
		if s.Times[i].Before(s.Times[i-1]) {
			return false
		}
	}
	return true
}
