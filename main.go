package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"ibovflow/config"
	"ibovflow/logger"
	"ibovflow/pipeline"
	"ibovflow/reader/b3"
	"ibovflow/writer"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	operation := "extract"
	if flag.NArg() > 0 {
		operation = strings.ToLower(flag.Arg(0))
	}
	switch operation {
	case "extract", "transform", "pipeline":
	default:
		log.WithFields(logger.Fields{"operation": operation}).Error("invalid operation; valid operations: extract, transform, pipeline")
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	log.WithFields(logger.Fields{
		"service":   cfg.Ibovflow.Name,
		"version":   cfg.Ibovflow.Version,
		"operation": operation,
		"index":     cfg.Source.B3.Index,
		"page_size": cfg.Source.B3.PageSize,
		"all_pages": cfg.Source.B3.AllPages,
		"backend":   cfg.Storage.Backend,
	}).Info("starting ibovflow")

	if cfg.Metrics.Enabled {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithFields(logger.Fields{"signal": sig.String()}).Warn("shutdown signal received")
		cancel()
	}()

	var objects writer.ObjectStore
	switch cfg.Storage.Backend {
	case "s3":
		objects, err = writer.NewS3ObjectStore(ctx, cfg)
		if err != nil {
			log.WithError(err).WithEnv("AWS_REGION", "S3_BUCKET").Error("failed to create S3 store")
			return 1
		}
	case "local":
		objects = writer.NewLocalObjectStore(cfg.Storage.Local.Root)
	}

	store := writer.NewStore(objects)
	fetcher := b3.NewReader(cfg)
	p := pipeline.New(cfg, fetcher, store)

	switch operation {
	case "extract":
		err = p.Extract(ctx)
	case "transform":
		err = p.Transform(ctx)
	case "pipeline":
		err = p.Run(ctx)
	}

	if err != nil {
		log.WithError(err).Error("run failed")
	}
	logger.LogRunSummary(log, operation, err == nil, logger.Fields{
		"service": cfg.Ibovflow.Name,
		"version": cfg.Ibovflow.Version,
	})

	if err != nil {
		return 1
	}
	return 0
}
