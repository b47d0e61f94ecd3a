// Package differential applies the run's fixed sign convention to an aligned
// station pair.
//
// Sign convention: differential = reference_depth - target_depth. The BPR
// measures depth, and depth decreases when the seafloor uplifts, so with a
// stable reference an uplifting target drives the differential positive:
// positive = inflation at the target site, negative = deflation. Swapping
// the reference/target assignment negates the signal exactly.
package differential

import (
	"fmt"
	"math"
	"time"

	"calderaflow/internal/align"
	"calderaflow/internal/series"
)

// Computer fixes which station is the subtrahend-free baseline (reference)
// and which is being watched (target). The assignment is explicit run
// configuration, exposed on the struct so it is inspectable, never inferred.
type Computer struct {
	ReferenceID string
	TargetID    string
}

// Result is the differential uplift signal alongside the two depth columns
// it was derived from. All three columns share one index.
type Result struct {
	Times        []time.Time
	Reference    []float64
	Target       []float64
	Differential []float64
}

func (r *Result) Len() int {
	return len(r.Times)
}

// DifferentialSeries returns the differential column as a standalone series
// sharing the result's index.
func (r *Result) DifferentialSeries() *series.Series {
	return &series.Series{Times: r.Times, Values: r.Differential}
}

// Compute derives the differential from an aligned pair. The differential is
// defined only where both depths are present; elsewhere the slot is missing.
//
// A pair whose columns do not share an identical index signals a bug in the
// aligner and is a fatal precondition violation, not a condition to absorb.
func (c Computer) Compute(pair *align.Pair) (*Result, error) {
	if pair == nil {
		return nil, fmt.Errorf("differential: nil aligned pair")
	}
	if len(pair.Reference) != len(pair.Times) || len(pair.Target) != len(pair.Times) {
		return nil, fmt.Errorf("differential: misaligned pair: %d timestamps, %d reference, %d target",
			len(pair.Times), len(pair.Reference), len(pair.Target))
	}
	for i := 1; i < len(pair.Times); i++ {
		if !pair.Times[i].After(pair.Times[i-1]) {
			return nil, fmt.Errorf("differential: pair index not strictly increasing at %s", pair.Times[i])
		}
	}

	res := &Result{
		Times:        pair.Times,
		Reference:    pair.Reference,
		Target:       pair.Target,
		Differential: make([]float64, len(pair.Times)),
	}
	for i := range pair.Times {
		ref, tgt := pair.Reference[i], pair.Target[i]
		if series.Missing(ref) || series.Missing(tgt) {
			res.Differential[i] = math.NaN()
			continue
		}
		res.Differential[i] = ref - tgt
	}
	return res, nil
}
