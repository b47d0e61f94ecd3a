package qc

import "calderaflow/internal/series"

// DepthRange is the physically expected depth envelope for the deployment
// site, checked as a closed interval before any local statistic is computed.
type DepthRange struct {
	MinM float64
	MaxM float64
}

// Contains reports whether d lies inside the closed interval [MinM, MaxM].
func (r DepthRange) Contains(d float64) bool {
	return d >= r.MinM && d <= r.MaxM
}

// Screen replaces out-of-range depths with missing values and returns the
// count of samples flagged. Flagged samples never reach the spike filter's
// rolling windows, so they cannot bias the median or MAD.
func (r DepthRange) Screen(s *series.Series) (*series.Series, int) {
	out := s.Clone()
	flagged := 0
	for i, v := range out.Values {
		if series.Missing(v) {
			continue
		}
		if !r.Contains(v) {
			out.Values[i] = missing
			flagged++
		}
	}
	return out, flagged
}
