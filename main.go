package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"calderaflow/config"
	"calderaflow/internal/pipeline"
	"calderaflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Calderaflow.Name,
		"version": cfg.Calderaflow.Version,
	}).Info("starting calderaflow")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace)
		if cfg.Metrics.ReportInterval > 0 {
			logger.StartReport(ctx, log, cfg.Metrics.ReportInterval.Std())
		}
	}

	summary, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		log.WithError(err).Error("run failed; no artifacts published")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"run_id":      summary.RunID,
		"hourly_rows": summary.HourlyRows,
		"daily_rows":  summary.DailyRows,
		"artifacts":   summary.Artifacts,
	}).Info("calderaflow finished")
}
