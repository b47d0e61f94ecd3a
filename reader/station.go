// Package reader ingests raw station records from the data-acquisition
// collaborator: one directory per station, CSV files of decoded
// (timestamp, pressure_psia) rows.
package reader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	appconfig "calderaflow/config"
	"calderaflow/internal/series"
	"calderaflow/logger"
)

// Reader loads raw pressure samples for one station at a time.
type Reader struct {
	cfg     *appconfig.Config
	pattern *regexp.Regexp
	log     *logger.Log
}

// LoadStats reports how much input the reader touched for one station.
type LoadStats struct {
	FilesDiscovered int `json:"files_discovered"`
	FilesRead       int `json:"files_read"`
	Samples         int `json:"samples"`
}

// New builds a Reader from the run configuration. The filename pattern has
// been validated at config load time.
func New(cfg *appconfig.Config) *Reader {
	var pattern *regexp.Regexp
	if cfg.Reader.FilenamePattern != "" {
		pattern = regexp.MustCompile(cfg.Reader.FilenamePattern)
	}
	return &Reader{
		cfg:     cfg,
		pattern: pattern,
		log:     logger.GetLogger(),
	}
}

// LoadStation reads every in-range CSV file under the station's directory
// and returns the concatenated raw pressure series. Malformed rows and
// non-finite pressure values are input errors: the run fails fast before
// any statistic is computed, rather than coercing or silently dropping.
// An empty station record is likewise an input error.
func (r *Reader) LoadStation(ctx context.Context, st appconfig.StationConfig) (*series.Series, LoadStats, error) {
	stats := LoadStats{}
	log := r.log.WithComponent("reader").WithFields(logger.Fields{"station": st.ID})

	files, err := r.discover(st.Path)
	if err != nil {
		return nil, stats, err
	}
	stats.FilesDiscovered = len(files)
	log.WithFields(logger.Fields{"files": len(files)}).Info("loading station files")

	out := series.New(0)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		n, err := r.readFile(f, out)
		if err != nil {
			return nil, stats, err
		}
		stats.FilesRead++
		stats.Samples += n
		log.WithFields(logger.Fields{"file": filepath.Base(f), "samples": n}).Debug("file loaded")
	}

	if out.Len() == 0 {
		return nil, stats, fmt.Errorf("station %s: no samples in configured time range under %s", st.ID, st.Path)
	}

	log.WithFields(logger.Fields{"samples": out.Len()}).Info("station loaded")
	return out, stats, nil
}

// discover lists the station's CSV files, skipping by filename year span
// when a pattern is configured so out-of-range files are never opened.
func (r *Reader) discover(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list station files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no csv files under %s", dir)
	}
	sort.Strings(matches)

	if r.pattern == nil {
		return matches, nil
	}

	startYear := r.cfg.TimeRange.StartTime.Year()
	endYear := r.cfg.TimeRange.EndTime.Year()
	filtered := make([]string, 0, len(matches))
	for _, f := range matches {
		m := r.pattern.FindStringSubmatch(filepath.Base(f))
		if m == nil {
			continue
		}
		fileStart, err1 := strconv.Atoi(m[1])
		fileEnd, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		// Keep the file when its year span overlaps the configured range.
		if fileStart <= endYear && fileEnd >= startYear {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// readFile appends a file's in-range samples to dst and returns the number
// appended.
func (r *Reader) readFile(path string, dst *series.Series) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 2

	appended := 0
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return appended, fmt.Errorf("%s row %d: %w", path, row+1, err)
		}
		row++

		// Tolerate a single header row.
		if row == 1 && record[0] == "timestamp" {
			continue
		}

		ts, err := time.Parse(r.cfg.Reader.TimeLayout, record[0])
		if err != nil {
			return appended, fmt.Errorf("%s row %d: bad timestamp %q: %w", path, row, record[0], err)
		}
		pressure, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return appended, fmt.Errorf("%s row %d: bad pressure %q: %w", path, row, record[1], err)
		}
		if math.IsNaN(pressure) || math.IsInf(pressure, 0) {
			return appended, fmt.Errorf("%s row %d: non-finite pressure %v", path, row, pressure)
		}

		ts = ts.UTC()
		if ts.Before(r.cfg.TimeRange.StartTime) || !ts.Before(r.cfg.TimeRange.EndTime) {
			continue
		}
		dst.Append(ts, pressure)
		appended++
	}
	return appended, nil
}
