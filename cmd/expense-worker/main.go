package main

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"expense-svc/internal/amqp"
	"expense-svc/internal/cache"
	"expense-svc/internal/cli"
	applog "expense-svc/internal/log"
	"expense-svc/internal/sheets"
	gsheet "expense-svc/internal/sheets/google"
	"expense-svc/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting expense-worker")

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var writer sheets.ActivityWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets activity log enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = sheets.NewLogWriter(logger)
		logger.Info("Google Sheets disabled - writing activity to the log")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	seen := cache.NewLRUCache[bool](cfg.WorkerDedupSize, cfg.WorkerDedupTTL)
	caches := cache.NewManager(logger)
	caches.Register(seen)

	activity := worker.NewActivityWorker(writer, seen, logger)

	// Don't exit - redeliveries are still caught by ids seen from now on.
	logger.Info("Performing startup check...")
	if err := activity.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup check", applog.FieldError, err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, activity.HandleEvent)
	})
	g.Go(func() error {
		return caches.Run(gctx, cli.CacheSweepInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
