// Package writer persists run artifacts: Parquet tables for the hourly and
// daily differential products, per-station checkpoint tables, a JSON run
// summary, and optional S3 upload of all of them.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"calderaflow/internal/series"
)

// TableRow is one row of the hourly or daily output table. Missing cells
// are explicit nulls, never sentinel zeros.
type TableRow struct {
	Timestamp       int64    `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	ReferenceDepthM *float64 `parquet:"name=reference_depth_m, type=DOUBLE, repetitiontype=OPTIONAL"`
	TargetDepthM    *float64 `parquet:"name=target_depth_m, type=DOUBLE, repetitiontype=OPTIONAL"`
	DifferentialM   *float64 `parquet:"name=differential_m, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// StationRow is one row of a per-station checkpoint table.
type StationRow struct {
	Timestamp int64    `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DepthM    *float64 `parquet:"name=depth_m, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// TableRows assembles output rows from three columns sharing one index.
func TableRows(times []time.Time, reference, target, differential []float64) []TableRow {
	rows := make([]TableRow, 0, len(times))
	for i, t := range times {
		rows = append(rows, TableRow{
			Timestamp:       t.UTC().UnixMilli(),
			ReferenceDepthM: optional(reference[i]),
			TargetDepthM:    optional(target[i]),
			DifferentialM:   optional(differential[i]),
		})
	}
	return rows
}

// StationRows assembles checkpoint rows from a station series.
func StationRows(s *series.Series) []StationRow {
	rows := make([]StationRow, 0, s.Len())
	for i, t := range s.Times {
		rows = append(rows, StationRow{
			Timestamp: t.UTC().UnixMilli(),
			DepthM:    optional(s.Values[i]),
		})
	}
	return rows
}

func optional(v float64) *float64 {
	if series.Missing(v) {
		return nil
	}
	return &v
}

// WriteTable writes an output table to a local SNAPPY-compressed Parquet
// file, creating parent directories as needed.
func WriteTable(path string, rows []TableRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(TableRow), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Close()
}

// WriteStationTable writes a per-station checkpoint table.
func WriteStationTable(path string, rows []StationRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(StationRow), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Close()
}
