package qc

import "calderaflow/internal/series"

// Converter maps raw sensor pressure to depth using the fixed calibration
// constants for the sensor family: depth = (pressure - offset) * scale.
// It never clamps or rejects, so downstream QC sees the true converted
// magnitude of any anomaly.
type Converter struct {
	OffsetPSIA   float64
	ScaleMPerPSI float64
}

// Depth converts a single pressure reading in psia to depth in meters.
func (c Converter) Depth(pressurePSIA float64) float64 {
	return (pressurePSIA - c.OffsetPSIA) * c.ScaleMPerPSI
}

// Pressure is the inverse of Depth.
func (c Converter) Pressure(depthM float64) float64 {
	return depthM/c.ScaleMPerPSI + c.OffsetPSIA
}

// Apply converts every sample of a pressure series into a new depth series.
// Missing samples stay missing.
func (c Converter) Apply(s *series.Series) *series.Series {
	out := s.Clone()
	for i, v := range out.Values {
		if series.Missing(v) {
			continue
		}
		out.Values[i] = c.Depth(v)
	}
	return out
}
