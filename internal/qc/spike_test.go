package qc

import (
	"math"
	"testing"
	"time"

	"calderaflow/internal/series"
)

func hourlySeries(values []float64) *series.Series {
	s := series.New(len(values))
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		s.Append(base.Add(time.Duration(i)*time.Hour), v)
	}
	return s
}

func defaultFilter(threshold float64) SpikeFilter {
	return SpikeFilter{Window: 24 * time.Hour, Threshold: threshold, MinPoints: 4}
}

func TestSpikeIsFlaggedAndBecomesMissing(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		// Mild noise so the local MAD is non-zero.
		values[i] = 1500.0 + 0.01*float64(i%3)
	}
	values[24] = 1600.0

	res := defaultFilter(5.0).Filter(hourlySeries(values))
	if res.Flagged != 1 {
		t.Fatalf("flagged = %d, want 1", res.Flagged)
	}
	if !series.Missing(res.Series.Values[24]) {
		t.Errorf("spike value should be missing in the output")
	}
	if res.Series.Len() != 48 {
		t.Errorf("timestamp slot for the spike must be retained")
	}
	for i, v := range res.Series.Values {
		if i != 24 && series.Missing(v) {
			t.Errorf("non-spike sample %d became missing", i)
		}
	}
}

func TestSpikeOnFlatSeries(t *testing.T) {
	// Zero local variance: the MAD is exactly 0, and the comparison form
	// must still flag the outlier without dividing by it.
	values := make([]float64, 48)
	for i := range values {
		values[i] = 1500.0
	}
	values[24] = 1600.0

	res := defaultFilter(5.0).Filter(hourlySeries(values))
	if res.Flagged != 1 {
		t.Fatalf("flagged = %d, want 1", res.Flagged)
	}
	if !series.Missing(res.Series.Values[24]) {
		t.Errorf("spike value should be missing in the output")
	}
}

func TestConstantSeriesFlagsNothing(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		values[i] = 1500.0
	}

	res := defaultFilter(5.0).Filter(hourlySeries(values))
	if res.Flagged != 0 {
		t.Fatalf("constant series flagged %d points, want 0", res.Flagged)
	}
	for i, v := range res.Series.Values {
		if series.Missing(v) {
			t.Errorf("constant sample %d became missing", i)
		}
	}
}

func TestInsufficientWindowLeavesPointUnflagged(t *testing.T) {
	// Two isolated points cannot support a 4-point window statistic even
	// though they deviate wildly from each other.
	s := series.New(2)
	s.Append(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), 1500.0)
	s.Append(time.Date(2015, 1, 1, 1, 0, 0, 0, time.UTC), 1600.0)

	res := defaultFilter(3.5).Filter(s)
	if res.Flagged != 0 {
		t.Fatalf("flagged = %d, want 0 with insufficient evidence", res.Flagged)
	}
	if res.Insufficient != 2 {
		t.Errorf("insufficient = %d, want 2", res.Insufficient)
	}
}

func TestMissingPointsExcludedFromWindows(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		values[i] = 1500.0 + 0.01*float64(i%3)
	}
	s := hourlySeries(values)
	s.Values[10] = math.NaN()

	res := defaultFilter(5.0).Filter(s)
	if res.Flagged != 0 {
		t.Fatalf("flagged = %d, want 0", res.Flagged)
	}
	if !series.Missing(res.Series.Values[10]) {
		t.Errorf("pre-existing missing sample should stay missing")
	}
}

func TestEmptySeries(t *testing.T) {
	res := defaultFilter(5.0).Filter(series.New(0))
	if res.Flagged != 0 || res.Series.Len() != 0 {
		t.Fatalf("unexpected result for empty series: %+v", res)
	}
}
