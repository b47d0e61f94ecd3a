package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "calderaflow/config"
)

const filenamePattern = `_15s_(\d{4})\d{4}T\d{6}-(\d{4})\d{4}T`

func testConfig(t *testing.T, dir string) *appconfig.Config {
	t.Helper()
	cfg := &appconfig.Config{}
	cfg.Stations.Reference = appconfig.StationConfig{ID: "MJ03E", Path: dir}
	cfg.TimeRange.StartTime = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.TimeRange.EndTime = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Reader.FilenamePattern = filenamePattern
	cfg.Reader.TimeLayout = "2006-01-02T15:04:05Z"
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadStationReadsAndConcatenates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BOTPTA302_15s_20150101T000000-20150301T000000.csv",
		"timestamp,pressure_psia\n"+
			"2015-01-01T00:00:00Z,2250.10\n"+
			"2015-01-01T00:00:15Z,2250.12\n")
	writeFile(t, dir, "BOTPTA302_15s_20150301T000000-20150601T000000.csv",
		"2015-03-01T00:00:00Z,2250.20\n")

	cfg := testConfig(t, dir)
	s, stats, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference)
	if err != nil {
		t.Fatalf("LoadStation failed: %v", err)
	}
	if stats.FilesDiscovered != 2 || stats.FilesRead != 2 {
		t.Errorf("stats = %+v, want 2 files discovered and read", stats)
	}
	if s.Len() != 3 {
		t.Fatalf("samples = %d, want 3", s.Len())
	}
	if s.Values[2] != 2250.20 {
		t.Errorf("last sample = %v, want 2250.20", s.Values[2])
	}
}

func TestLoadStationFiltersByFilenameYears(t *testing.T) {
	dir := t.TempDir()
	// Out of range by filename year span; contents would be a parse error
	// if the file were opened.
	writeFile(t, dir, "BOTPTA302_15s_20200101T000000-20200601T000000.csv",
		"garbage\n")
	writeFile(t, dir, "BOTPTA302_15s_20150101T000000-20150301T000000.csv",
		"2015-01-01T00:00:00Z,2250.10\n")

	cfg := testConfig(t, dir)
	s, stats, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference)
	if err != nil {
		t.Fatalf("LoadStation failed: %v", err)
	}
	if stats.FilesRead != 1 {
		t.Errorf("files read = %d, want 1", stats.FilesRead)
	}
	if s.Len() != 1 {
		t.Errorf("samples = %d, want 1", s.Len())
	}
}

func TestLoadStationFiltersByTimeRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BOTPTA302_15s_20140101T000000-20150301T000000.csv",
		"2014-12-31T23:59:45Z,2250.00\n"+
			"2015-01-01T00:00:00Z,2250.10\n")

	cfg := testConfig(t, dir)
	s, _, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference)
	if err != nil {
		t.Fatalf("LoadStation failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("samples = %d, want only the in-range row", s.Len())
	}
	if !s.Times[0].Equal(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("kept timestamp = %v", s.Times[0])
	}
}

func TestLoadStationFailsOnMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BOTPTA302_15s_20150101T000000-20150301T000000.csv",
		"2015-01-01T00:00:00Z,not-a-number\n")

	cfg := testConfig(t, dir)
	if _, _, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference); err == nil {
		t.Fatalf("expected error for malformed pressure value")
	}
}

func TestLoadStationFailsOnNonFinitePressure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BOTPTA302_15s_20150101T000000-20150301T000000.csv",
		"2015-01-01T00:00:00Z,NaN\n")

	cfg := testConfig(t, dir)
	if _, _, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference); err == nil {
		t.Fatalf("expected error for non-finite pressure")
	}
}

func TestLoadStationFailsOnEmptyRecord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BOTPTA302_15s_20150101T000000-20150301T000000.csv",
		"timestamp,pressure_psia\n")

	cfg := testConfig(t, dir)
	if _, _, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference); err == nil {
		t.Fatalf("expected error when no samples survive")
	}
}

func TestLoadStationFailsOnMissingDirectory(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))
	if _, _, err := New(cfg).LoadStation(context.Background(), cfg.Stations.Reference); err == nil {
		t.Fatalf("expected error for directory without csv files")
	}
}
