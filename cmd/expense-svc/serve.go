package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"expense-svc/internal/cache"
	"expense-svc/internal/cli"
	apphttp "expense-svc/internal/http"
	applog "expense-svc/internal/log"
	"expense-svc/internal/middleware/ratelimit"
	"expense-svc/internal/services"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the expense HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if flagPort != "" {
		cfg.Port = flagPort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open expense store", applog.FieldError, err.Error())
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close expense store", applog.FieldError, err.Error())
		}
	}()

	opts := []services.Option{services.WithLogger(logger)}
	if publisher := cli.ConnectAMQP(cfg, logger); publisher != nil {
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
	}
	svc := services.NewExpenseService(res.Backend, opts...)

	caches := cache.NewManager(logger)
	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           cfg.Addr(),
		Expenses:       svc,
		Authenticator:  cli.NewAuthenticator(cfg, caches, logger),
		Readiness:      res.Backend,
		Logger:         logger,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting expense-svc",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"events", cfg.EventsEnabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return caches.Run(gctx, cli.CacheSweepInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", applog.FieldError, err.Error())
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
