// Package pipeline composes the differential uplift computation end to end:
// load raw pressure, convert to depth, quality-control each station, align,
// difference, re-filter, resample, persist.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	appconfig "calderaflow/config"
	"calderaflow/internal/align"
	"calderaflow/internal/differential"
	"calderaflow/internal/qc"
	"calderaflow/internal/resample"
	"calderaflow/internal/series"
	"calderaflow/logger"
	"calderaflow/reader"
	"calderaflow/writer"
)

// Pipeline is a single-pass batch computation over a bounded dataset. Every
// stage is a pure transformation over immutable inputs; the only
// parallelism is the two independent station pipelines ahead of the join
// point, which cannot change the result.
type Pipeline struct {
	cfg    *appconfig.Config
	reader *reader.Reader
	log    *logger.Log
}

func New(cfg *appconfig.Config) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		reader: reader.New(cfg),
		log:    logger.GetLogger(),
	}
}

type stationOutput struct {
	series  *series.Series
	summary StationSummary
	err     error
}

// Run executes the full pipeline and returns the run summary. Input and
// precondition errors abort the run; nothing partial is published.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.New().String()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": runID})
	log.WithFields(logger.Fields{
		"reference": p.cfg.Stations.Reference.ID,
		"target":    p.cfg.Stations.Target.ID,
		"start":     p.cfg.TimeRange.Start,
		"end":       p.cfg.TimeRange.End,
	}).Info("starting differential uplift run")

	started := time.Now()

	// The two station pipelines are independent until the join point.
	stations := []appconfig.StationConfig{p.cfg.Stations.Reference, p.cfg.Stations.Target}
	outputs := make([]stationOutput, len(stations))
	var wg sync.WaitGroup
	for i, st := range stations {
		wg.Add(1)
		go func(i int, st appconfig.StationConfig) {
			defer wg.Done()
			outputs[i] = p.processStation(ctx, st)
		}(i, st)
	}
	wg.Wait()

	for _, out := range outputs {
		if out.err != nil {
			return nil, out.err
		}
	}
	refOut, tgtOut := outputs[0], outputs[1]

	if p.cfg.Checkpoints.Enabled {
		if err := p.writeCheckpoints(refOut, tgtOut); err != nil {
			return nil, err
		}
	}

	pair := align.Join(refOut.series, tgtOut.series)
	refOut.summary.Coverage.AfterJoin = pair.Len()
	tgtOut.summary.Coverage.AfterJoin = pair.Len()
	log.WithFields(logger.Fields{
		"reference_samples": refOut.series.Len(),
		"target_samples":    tgtOut.series.Len(),
		"joined_samples":    pair.Len(),
	}).Info("station series aligned")

	computer := differential.Computer{
		ReferenceID: p.cfg.Stations.Reference.ID,
		TargetID:    p.cfg.Stations.Target.ID,
	}
	result, err := computer.Compute(pair)
	if err != nil {
		return nil, err
	}

	// Second spike pass, on the differential itself. A spike that appears
	// in the difference while only one sensor glitches is a strong
	// artifact signal, so the threshold is tighter than per-station.
	diffFilter := qc.SpikeFilter{
		Window:    p.cfg.QC.SpikeWindow.Std(),
		Threshold: p.cfg.QC.DifferentialThreshold,
		MinPoints: p.cfg.QC.MinWindowPoints,
	}
	diffRes := diffFilter.Filter(result.DifferentialSeries())
	result.Differential = diffRes.Series.Values
	logRemoval(log, "differential", diffRes.Flagged, result.Len())

	hourly := p.resampleResult(result, p.cfg.Resample.HourlyBucket.Std())
	daily := p.resampleResult(result, p.cfg.Resample.DailyBucket.Std())

	summary := &Summary{
		RunID:                    runID,
		Name:                     p.cfg.Calderaflow.Name,
		Version:                  p.cfg.Calderaflow.Version,
		GeneratedAt:              time.Now().UTC(),
		ReferenceStation:         computer.ReferenceID,
		TargetStation:            computer.TargetID,
		Reference:                refOut.summary,
		Target:                   tgtOut.summary,
		JoinedSamples:            pair.Len(),
		DifferentialSpikes:       diffRes.Flagged,
		DifferentialInsufficient: diffRes.Insufficient,
		HourlyRows:               len(hourly.times),
		DailyRows:                len(daily.times),
	}

	if p.cfg.Analysis.EventsEnabled {
		summary.Event = p.eventStatistics(daily)
	}

	artifacts, err := p.persist(ctx, runID, hourly, daily, summary)
	if err != nil {
		return nil, err
	}
	summary.Artifacts = artifacts

	p.reportMetrics(summary)
	logger.LogPerformanceEntry(log, "pipeline", "run", time.Since(started), logger.Fields{
		"hourly_rows": summary.HourlyRows,
		"daily_rows":  summary.DailyRows,
	})
	log.Info("differential uplift run completed")
	return summary, nil
}

// processStation runs the per-station half of the pipeline: load, order,
// convert, range-screen, reduce to the station cadence, spike-filter.
func (p *Pipeline) processStation(ctx context.Context, st appconfig.StationConfig) stationOutput {
	out := stationOutput{summary: StationSummary{StationID: st.ID}}
	log := p.log.WithComponent("station").WithFields(logger.Fields{"station": st.ID})

	raw, loadStats, err := p.reader.LoadStation(ctx, st)
	if err != nil {
		out.err = err
		return out
	}
	out.summary.Load = loadStats
	out.summary.Coverage.RawSamples = raw.Len()

	cleaned := align.Clean(raw)
	out.summary.Coverage.AfterDedup = cleaned.Series.Len()
	out.summary.Duplicates = cleaned.Duplicates
	out.summary.OutOfOrder = cleaned.OutOfOrder
	if cleaned.Duplicates > 0 {
		log.WithFields(logger.Fields{"duplicates": cleaned.Duplicates}).Warn("removed duplicate timestamps")
	}
	if cleaned.OutOfOrder > 0 {
		log.WithFields(logger.Fields{"out_of_order": cleaned.OutOfOrder}).Warn("reordered non-monotonic timestamps")
	}

	converter := qc.Converter{
		OffsetPSIA:   p.cfg.Calibration.OffsetPSIA,
		ScaleMPerPSI: p.cfg.Calibration.ScaleMPerPSI,
	}
	depths := converter.Apply(cleaned.Series)

	depthRange := qc.DepthRange{MinM: p.cfg.QC.DepthMinM, MaxM: p.cfg.QC.DepthMaxM}
	screened, outOfRange := depthRange.Screen(depths)
	out.summary.OutOfRange = outOfRange
	if outOfRange > 0 {
		log.WithFields(logger.Fields{"out_of_range": outOfRange}).Warn("depths outside expected envelope")
	}

	// Reduce tens of millions of raw points to the station cadence before
	// the windowed statistics; the spike window then spans cadence
	// buckets, matching how the record is interpreted downstream.
	cadence := resample.Mean(screened, p.cfg.Resample.StationCadence.Std())

	stationFilter := qc.SpikeFilter{
		Window:    p.cfg.QC.SpikeWindow.Std(),
		Threshold: p.cfg.QC.StationThreshold,
		MinPoints: p.cfg.QC.MinWindowPoints,
	}
	filtered := stationFilter.Filter(cadence)
	out.summary.Spikes = filtered.Flagged
	out.summary.InsufficientWindows = filtered.Insufficient
	logRemoval(log, st.ID, filtered.Flagged, cadence.Len())

	out.series = filtered.Series
	out.summary.CadenceSamples = filtered.Series.ValidCount()
	out.summary.Coverage.LargestGap = filtered.Series.LargestGap()
	if start, end, ok := filtered.Series.Span(); ok {
		out.summary.Coverage.Start = start
		out.summary.Coverage.End = end
	}

	log.WithFields(logger.Fields{
		"raw_samples":     out.summary.Coverage.RawSamples,
		"cadence_samples": out.summary.CadenceSamples,
	}).Info("station pipeline finished")
	return out
}

// table is one output cadence: three resampled columns on a shared grid.
type table struct {
	times        []time.Time
	reference    []float64
	target       []float64
	differential []float64
}

func (p *Pipeline) resampleResult(res *differential.Result, bucket time.Duration) table {
	ref := resample.Mean(&series.Series{Times: res.Times, Values: res.Reference}, bucket)
	tgt := resample.Mean(&series.Series{Times: res.Times, Values: res.Target}, bucket)
	diff := resample.Mean(&series.Series{Times: res.Times, Values: res.Differential}, bucket)
	return table{
		times:        ref.Times,
		reference:    ref.Values,
		target:       tgt.Values,
		differential: diff.Values,
	}
}

// eventStatistics derives the pre-event high, post-event low and deflation
// magnitude of the daily differential. Empty windows disable the report
// with a warning rather than failing the run.
func (p *Pipeline) eventStatistics(daily table) *EventSummary {
	log := p.log.WithComponent("analysis")

	var pre, post []float64
	for i, t := range daily.times {
		v := daily.differential[i]
		if series.Missing(v) {
			continue
		}
		if !t.Before(p.cfg.Analysis.PreStartTime) && t.Before(p.cfg.Analysis.EventTime) {
			pre = append(pre, v)
		}
		if !t.Before(p.cfg.Analysis.EventTime) && t.Before(p.cfg.Analysis.PostEndTime) {
			post = append(post, v)
		}
	}
	if len(pre) == 0 || len(post) == 0 {
		log.WithFields(logger.Fields{
			"pre_rows":  len(pre),
			"post_rows": len(post),
		}).Warn("event windows contain no valid daily samples; skipping event statistics")
		return nil
	}

	high, _ := stats.Max(pre)
	low, _ := stats.Min(post)
	ev := &EventSummary{
		EventDate:      p.cfg.Analysis.EventTime,
		PreEventHighM:  high,
		PostEventLowM:  low,
		DeflationM:     high - low,
		PreWindowRows:  len(pre),
		PostWindowRows: len(post),
	}
	log.WithFields(logger.Fields{
		"pre_event_high_m": ev.PreEventHighM,
		"post_event_low_m": ev.PostEventLowM,
		"deflation_m":      ev.DeflationM,
	}).Info("event statistics computed")
	return ev
}

func (p *Pipeline) writeCheckpoints(refOut, tgtOut stationOutput) error {
	for _, out := range []stationOutput{refOut, tgtOut} {
		name := fmt.Sprintf("%s_cadence.parquet", strings.ToLower(out.summary.StationID))
		path := filepath.Join(p.cfg.Checkpoints.Dir, name)
		if err := writer.WriteStationTable(path, writer.StationRows(out.series)); err != nil {
			return fmt.Errorf("checkpoint %s: %w", out.summary.StationID, err)
		}
		p.log.WithComponent("pipeline").WithFields(logger.Fields{
			"station":    out.summary.StationID,
			"checkpoint": path,
		}).Info("station checkpoint written")
	}
	return nil
}

// persist writes the output tables and summary, then optionally uploads
// them. Each run regenerates its artifacts from scratch; published products
// are never updated in place.
func (p *Pipeline) persist(ctx context.Context, runID string, hourly, daily table, summary *Summary) ([]string, error) {
	outDir := p.cfg.Storage.OutputDir
	hourlyPath := filepath.Join(outDir, "differential_uplift_hourly.parquet")
	dailyPath := filepath.Join(outDir, "differential_uplift_daily.parquet")
	summaryPath := filepath.Join(outDir, "run_summary.json")

	if err := writer.WriteTable(hourlyPath, writer.TableRows(hourly.times, hourly.reference, hourly.target, hourly.differential)); err != nil {
		return nil, err
	}
	if err := writer.WriteTable(dailyPath, writer.TableRows(daily.times, daily.reference, daily.target, daily.differential)); err != nil {
		return nil, err
	}

	artifacts := []string{hourlyPath, dailyPath, summaryPath}
	summary.Artifacts = artifacts
	if err := writer.WriteSummary(summaryPath, summary); err != nil {
		return nil, err
	}

	if p.cfg.Storage.S3.Enabled {
		uploader, err := writer.NewUploader(p.cfg)
		if err != nil {
			return nil, err
		}
		if err := uploader.UploadRun(ctx, runID, artifacts); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

func (p *Pipeline) reportMetrics(summary *Summary) {
	for _, st := range []StationSummary{summary.Reference, summary.Target} {
		fields := logger.Fields{"station": st.StationID}
		p.log.LogMetric("pipeline", "raw_samples", st.Coverage.RawSamples, fields)
		p.log.LogMetric("pipeline", "duplicates", st.Duplicates, fields)
		p.log.LogMetric("pipeline", "out_of_range", st.OutOfRange, fields)
		p.log.LogMetric("pipeline", "spikes", st.Spikes, fields)
		p.log.LogMetric("pipeline", "insufficient_windows", st.InsufficientWindows, fields)
	}
	p.log.LogMetric("pipeline", "joined_samples", summary.JoinedSamples, nil)
	p.log.LogMetric("pipeline", "differential_spikes", summary.DifferentialSpikes, nil)
	p.log.LogMetric("pipeline", "hourly_rows", summary.HourlyRows, nil)
	p.log.LogMetric("pipeline", "daily_rows", summary.DailyRows, nil)
}

func logRemoval(log *logger.Entry, name string, flagged, total int) {
	if flagged == 0 || total == 0 {
		return
	}
	log.WithFields(logger.Fields{
		"series":  name,
		"spikes":  flagged,
		"percent": 100 * float64(flagged) / float64(total),
	}).Info("spikes removed")
}
