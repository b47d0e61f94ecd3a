package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const dateLayout = "2006-01-02"

type Config struct {
	Calderaflow AppConfig         `yaml:"calderaflow"`
	Stations    StationsConfig    `yaml:"stations"`
	TimeRange   TimeRangeConfig   `yaml:"time_range"`
	Reader      ReaderConfig      `yaml:"reader"`
	Calibration CalibrationConfig `yaml:"calibration"`
	QC          QCConfig          `yaml:"qc"`
	Resample    ResampleConfig    `yaml:"resample"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Checkpoints CheckpointConfig  `yaml:"checkpoints"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// StationsConfig fixes which station is the differencing baseline and which
// is the site being watched. The assignment is explicit configuration, never
// inferred from the data.
type StationsConfig struct {
	Reference StationConfig `yaml:"reference"`
	Target    StationConfig `yaml:"target"`
}

type StationConfig struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

type TimeRangeConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	StartTime time.Time `yaml:"-"`
	EndTime   time.Time `yaml:"-"`
}

type ReaderConfig struct {
	// FilenamePattern is a regexp with two capture groups (start year, end
	// year) used to skip files outside the configured time range without
	// opening them. Empty means every file is read.
	FilenamePattern string `yaml:"filename_pattern"`
	TimeLayout      string `yaml:"time_layout"`
}

type CalibrationConfig struct {
	OffsetPSIA   float64 `yaml:"offset_psia"`
	ScaleMPerPSI float64 `yaml:"scale_m_per_psia"`
}

type QCConfig struct {
	DepthMinM             float64  `yaml:"depth_min_m"`
	DepthMaxM             float64  `yaml:"depth_max_m"`
	SpikeWindow           Duration `yaml:"spike_window"`
	StationThreshold      float64  `yaml:"station_threshold"`
	DifferentialThreshold float64  `yaml:"differential_threshold"`
	MinWindowPoints       int      `yaml:"min_window_points"`
}

type ResampleConfig struct {
	StationCadence Duration `yaml:"station_cadence"`
	HourlyBucket   Duration `yaml:"hourly_bucket"`
	DailyBucket    Duration `yaml:"daily_bucket"`
}

// AnalysisConfig bounds the descriptive pre/post event statistics reported
// with each run. EventDate empty disables them.
type AnalysisConfig struct {
	EventDate      string `yaml:"event_date"`
	PreWindowStart string `yaml:"pre_window_start"`
	PostWindowEnd  string `yaml:"post_window_end"`

	EventTime     time.Time `yaml:"-"`
	PreStartTime  time.Time `yaml:"-"`
	PostEndTime   time.Time `yaml:"-"`
	EventsEnabled bool      `yaml:"-"`
}

type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type StorageConfig struct {
	OutputDir string   `yaml:"output_dir"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled           bool   `yaml:"enabled"`
	Bucket            string `yaml:"bucket"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	PathStyle         bool   `yaml:"path_style"`
	Prefix            string `yaml:"prefix"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch     bool     `yaml:"cloudwatch"`
	Namespace      string   `yaml:"namespace"`
	ReportInterval Duration `yaml:"report_interval"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := parseDates(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func parseDates(cfg *Config) error {
	var err error
	if cfg.TimeRange.StartTime, err = time.ParseInLocation(dateLayout, cfg.TimeRange.Start, time.UTC); err != nil {
		return fmt.Errorf("time_range.start: %w", err)
	}
	if cfg.TimeRange.EndTime, err = time.ParseInLocation(dateLayout, cfg.TimeRange.End, time.UTC); err != nil {
		return fmt.Errorf("time_range.end: %w", err)
	}

	if cfg.Analysis.EventDate == "" {
		return nil
	}
	cfg.Analysis.EventsEnabled = true
	if cfg.Analysis.EventTime, err = time.ParseInLocation(dateLayout, cfg.Analysis.EventDate, time.UTC); err != nil {
		return fmt.Errorf("analysis.event_date: %w", err)
	}
	if cfg.Analysis.PreStartTime, err = time.ParseInLocation(dateLayout, cfg.Analysis.PreWindowStart, time.UTC); err != nil {
		return fmt.Errorf("analysis.pre_window_start: %w", err)
	}
	if cfg.Analysis.PostEndTime, err = time.ParseInLocation(dateLayout, cfg.Analysis.PostWindowEnd, time.UTC); err != nil {
		return fmt.Errorf("analysis.post_window_end: %w", err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Calderaflow.Name == "" {
		return fmt.Errorf("calderaflow.name is required")
	}
	if cfg.Calderaflow.Version == "" {
		return fmt.Errorf("calderaflow.version is required")
	}

	if cfg.Stations.Reference.ID == "" || cfg.Stations.Target.ID == "" {
		return fmt.Errorf("stations.reference.id and stations.target.id are required")
	}
	if cfg.Stations.Reference.ID == cfg.Stations.Target.ID {
		return fmt.Errorf("stations.reference.id and stations.target.id must differ")
	}
	if cfg.Stations.Reference.Path == "" || cfg.Stations.Target.Path == "" {
		return fmt.Errorf("stations.reference.path and stations.target.path are required")
	}

	if !cfg.TimeRange.StartTime.Before(cfg.TimeRange.EndTime) {
		return fmt.Errorf("time_range.start must be before time_range.end")
	}

	if cfg.Reader.TimeLayout == "" {
		return fmt.Errorf("reader.time_layout is required")
	}
	if cfg.Reader.FilenamePattern != "" {
		re, err := regexp.Compile(cfg.Reader.FilenamePattern)
		if err != nil {
			return fmt.Errorf("reader.filename_pattern is not a valid regexp: %w", err)
		}
		if re.NumSubexp() != 2 {
			return fmt.Errorf("reader.filename_pattern must have exactly two year capture groups")
		}
	}

	if cfg.Calibration.ScaleMPerPSI == 0 {
		return fmt.Errorf("calibration.scale_m_per_psia must be non-zero")
	}

	if cfg.QC.DepthMinM >= cfg.QC.DepthMaxM {
		return fmt.Errorf("qc.depth_min_m must be less than qc.depth_max_m")
	}
	if cfg.QC.SpikeWindow <= 0 {
		return fmt.Errorf("qc.spike_window must be greater than 0")
	}
	if cfg.QC.StationThreshold <= 0 {
		return fmt.Errorf("qc.station_threshold must be greater than 0")
	}
	if cfg.QC.DifferentialThreshold <= 0 {
		return fmt.Errorf("qc.differential_threshold must be greater than 0")
	}
	if cfg.QC.MinWindowPoints < 1 {
		return fmt.Errorf("qc.min_window_points must be at least 1")
	}

	if cfg.Resample.StationCadence <= 0 {
		return fmt.Errorf("resample.station_cadence must be greater than 0")
	}
	if cfg.Resample.HourlyBucket <= 0 {
		return fmt.Errorf("resample.hourly_bucket must be greater than 0")
	}
	if cfg.Resample.DailyBucket <= 0 {
		return fmt.Errorf("resample.daily_bucket must be greater than 0")
	}

	if cfg.Analysis.EventsEnabled {
		if cfg.Analysis.PreStartTime.After(cfg.Analysis.EventTime) {
			return fmt.Errorf("analysis.pre_window_start must not be after analysis.event_date")
		}
		if !cfg.Analysis.EventTime.Before(cfg.Analysis.PostEndTime) {
			return fmt.Errorf("analysis.post_window_end must be after analysis.event_date")
		}
	}

	if cfg.Checkpoints.Enabled && cfg.Checkpoints.Dir == "" {
		return fmt.Errorf("checkpoints.dir is required when checkpoints are enabled")
	}

	if cfg.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if cfg.Storage.S3.RequestsPerSecond <= 0 {
			return fmt.Errorf("storage.s3.requests_per_second must be greater than 0 when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
