package qc

import (
	"testing"
	"time"

	"calderaflow/internal/series"
)

func TestDepthRangeClosedInterval(t *testing.T) {
	r := DepthRange{MinM: 1500, MaxM: 1600}

	cases := []struct {
		depth float64
		want  bool
	}{
		{1550, true},
		{1499.999, false},
		{1600.001, false},
		{1500, true},
		{1600, true},
	}
	for _, c := range cases {
		if got := r.Contains(c.depth); got != c.want {
			t.Errorf("Contains(%v) = %v, want %v", c.depth, got, c.want)
		}
	}
}

func TestScreenFlagsAndCounts(t *testing.T) {
	r := DepthRange{MinM: 1500, MaxM: 1600}
	s := series.New(3)
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Append(base, 1550)
	s.Append(base.Add(time.Hour), 1700)
	s.Append(base.Add(2*time.Hour), 1499)

	out, flagged := r.Screen(s)
	if flagged != 2 {
		t.Fatalf("flagged = %d, want 2", flagged)
	}
	if series.Missing(out.Values[0]) {
		t.Errorf("in-range sample became missing")
	}
	if !series.Missing(out.Values[1]) || !series.Missing(out.Values[2]) {
		t.Errorf("out-of-range samples not made missing")
	}
	if out.Len() != 3 {
		t.Errorf("timestamp slots must be retained, got %d", out.Len())
	}
}
