package differential

import (
	"math"
	"testing"
	"time"

	"calderaflow/internal/align"
	"calderaflow/internal/series"
)

func pairOf(ref, tgt []float64) *align.Pair {
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &align.Pair{Reference: ref, Target: tgt}
	for i := range ref {
		p.Times = append(p.Times, base.Add(time.Duration(i)*time.Hour))
	}
	return p
}

func TestComputeSignConvention(t *testing.T) {
	c := Computer{ReferenceID: "MJ03E", TargetID: "MJ03F"}
	res, err := c.Compute(pairOf([]float64{1500.0}, []float64{1500.3}))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := res.Differential[0]; math.Abs(got-(-0.3)) > 1e-12 {
		t.Errorf("differential = %v, want -0.3", got)
	}
}

func TestSwappingStationsNegates(t *testing.T) {
	ref := []float64{1550.12, 1550.08, 1549.97}
	tgt := []float64{1540.02, 1540.11, 1540.25}

	fwd, err := Computer{}.Compute(pairOf(ref, tgt))
	if err != nil {
		t.Fatalf("forward Compute failed: %v", err)
	}
	rev, err := Computer{}.Compute(pairOf(tgt, ref))
	if err != nil {
		t.Fatalf("reverse Compute failed: %v", err)
	}
	for i := range fwd.Differential {
		if fwd.Differential[i] != -rev.Differential[i] {
			t.Errorf("row %d: %v is not the negation of %v", i, fwd.Differential[i], rev.Differential[i])
		}
	}
}

func TestMissingSidePropagates(t *testing.T) {
	res, err := Computer{}.Compute(pairOf(
		[]float64{1550.0, math.NaN(), 1550.0},
		[]float64{1540.0, 1540.0, math.NaN()},
	))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if series.Missing(res.Differential[0]) {
		t.Errorf("fully populated row became missing")
	}
	if !series.Missing(res.Differential[1]) || !series.Missing(res.Differential[2]) {
		t.Errorf("rows with a missing side must be missing")
	}
}

func TestComputeRejectsMisalignedPair(t *testing.T) {
	p := pairOf([]float64{1.0, 2.0}, []float64{1.0, 2.0})
	p.Target = p.Target[:1]
	if _, err := (Computer{}).Compute(p); err == nil {
		t.Fatalf("expected error for misaligned pair")
	}
}

func TestComputeRejectsUnsortedIndex(t *testing.T) {
	p := pairOf([]float64{1.0, 2.0}, []float64{1.0, 2.0})
	p.Times[0], p.Times[1] = p.Times[1], p.Times[0]
	if _, err := (Computer{}).Compute(p); err == nil {
		t.Fatalf("expected error for non-increasing index")
	}
}

func TestComputeRejectsNil(t *testing.T) {
	if _, err := (Computer{}).Compute(nil); err == nil {
		t.Fatalf("expected error for nil pair")
	}
}
