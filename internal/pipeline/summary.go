package pipeline

import (
	"time"

	"calderaflow/internal/align"
	"calderaflow/reader"
)

// StationSummary reports per-station, per-stage sample accounting for one
// run. Data-quality conditions are counters here, never errors.
type StationSummary struct {
	StationID           string           `json:"station_id"`
	Load                reader.LoadStats `json:"load"`
	Coverage            align.Coverage   `json:"coverage"`
	Duplicates          int              `json:"duplicates"`
	OutOfOrder          int              `json:"out_of_order"`
	OutOfRange          int              `json:"out_of_range"`
	Spikes              int              `json:"spikes"`
	InsufficientWindows int              `json:"insufficient_windows"`
	CadenceSamples      int              `json:"cadence_samples"`
}

// EventSummary holds the descriptive pre/post event statistics of the daily
// differential: the pre-event high, the post-event low, and the deflation
// magnitude between them.
type EventSummary struct {
	EventDate      time.Time `json:"event_date"`
	PreEventHighM  float64   `json:"pre_event_high_m"`
	PostEventLowM  float64   `json:"post_event_low_m"`
	DeflationM     float64   `json:"deflation_m"`
	PreWindowRows  int       `json:"pre_window_rows"`
	PostWindowRows int       `json:"post_window_rows"`
}

// Summary is the complete QC report for one run, persisted alongside the
// output tables.
type Summary struct {
	RunID            string    `json:"run_id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	GeneratedAt      time.Time `json:"generated_at"`
	ReferenceStation string    `json:"reference_station"`
	TargetStation    string    `json:"target_station"`

	Reference StationSummary `json:"reference"`
	Target    StationSummary `json:"target"`

	JoinedSamples            int `json:"joined_samples"`
	DifferentialSpikes       int `json:"differential_spikes"`
	DifferentialInsufficient int `json:"differential_insufficient_windows"`

	HourlyRows int `json:"hourly_rows"`
	DailyRows  int `json:"daily_rows"`

	Event *EventSummary `json:"event,omitempty"`

	Artifacts []string `json:"artifacts"`
}
