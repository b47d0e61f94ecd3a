package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const validConfig = `calderaflow:
  name: "calderaflow"
  version: "1.0"
stations:
  reference:
    id: "MJ03E"
    path: "data/mj03e"
  target:
    id: "MJ03F"
    path: "data/mj03f"
time_range:
  start: "2015-01-01"
  end: "2026-01-16"
reader:
  filename_pattern: "_15s_(\\d{4})\\d{4}T\\d{6}-(\\d{4})\\d{4}T"
  time_layout: "2006-01-02T15:04:05Z"
calibration:
  offset_psia: 14.7
  scale_m_per_psia: 0.670
qc:
  depth_min_m: 1500
  depth_max_m: 1600
  spike_window: 24h
  station_threshold: 5.0
  differential_threshold: 3.5
  min_window_points: 4
resample:
  station_cadence: 1h
  hourly_bucket: 1h
  daily_bucket: 24h
analysis:
  event_date: "2015-04-24"
  pre_window_start: "2015-01-01"
  post_window_end: "2015-06-01"
storage:
  output_dir: "outputs/data"
  s3:
    enabled: false
logging:
  level: info
  format: json
  output: stdout
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stations.Reference.ID != "MJ03E" {
		t.Errorf("unexpected reference station: %s", cfg.Stations.Reference.ID)
	}
	if cfg.QC.SpikeWindow.Std() != 24*time.Hour {
		t.Errorf("unexpected spike window: %v", cfg.QC.SpikeWindow.Std())
	}
	if cfg.QC.StationThreshold != 5.0 || cfg.QC.DifferentialThreshold != 3.5 {
		t.Errorf("unexpected thresholds: %v %v", cfg.QC.StationThreshold, cfg.QC.DifferentialThreshold)
	}
	if !cfg.TimeRange.StartTime.Equal(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start time: %v", cfg.TimeRange.StartTime)
	}
	if !cfg.Analysis.EventsEnabled {
		t.Errorf("expected event analysis to be enabled")
	}
}

func TestLoadConfigRejectsSameStation(t *testing.T) {
	content := strings.Replace(validConfig, `id: "MJ03F"`, `id: "MJ03E"`, 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for identical reference and target stations")
	}
}

func TestLoadConfigRejectsInvertedDepthRange(t *testing.T) {
	content := strings.Replace(validConfig, "depth_max_m: 1600", "depth_max_m: 1400", 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for inverted depth range")
	}
}

func TestLoadConfigRejectsZeroScale(t *testing.T) {
	content := strings.Replace(validConfig, "scale_m_per_psia: 0.670", "scale_m_per_psia: 0", 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for zero calibration scale")
	}
}

func TestLoadConfigRejectsBadPattern(t *testing.T) {
	content := strings.Replace(validConfig,
		`filename_pattern: "_15s_(\\d{4})\\d{4}T\\d{6}-(\\d{4})\\d{4}T"`,
		`filename_pattern: "(\\d{4})"`, 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for pattern without two year groups")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	content := strings.Replace(validConfig, "spike_window: 24h", "spike_window: banana", 1)
	path := writeTempConfig(t, content)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}
