// Package cli provides common CLI initialization utilities shared by
// cmd/expense-svc and cmd/expense-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expense-svc/internal/amqp"
	"expense-svc/internal/auth"
	"expense-svc/internal/backend"
	"expense-svc/internal/cache"
	"expense-svc/internal/config"
	applog "expense-svc/internal/log"
)

// CacheSweepInterval is how often expired cache entries are dropped.
const CacheSweepInterval = time.Minute

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Format = cfg.LogFormat
	lc.Component = component
	if level, err := applog.ParseLevel(cfg.LogLevel); err == nil {
		lc.Level = level
	}

	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewAuthenticator builds the identity service client. With a positive
// AUTH_CACHE_TTL accepted verdicts are cached and the cache is registered
// with manager for sweeping.
func NewAuthenticator(cfg *config.Config, manager *cache.Manager, logger *applog.Logger) auth.Authenticator {
	var a auth.Authenticator = auth.NewHTTPAuthenticator(cfg.AuthServiceURL, cfg.AuthTimeout, auth.WithLogger(logger))
	if cfg.AuthCacheTTL <= 0 {
		return a
	}

	verdicts := cache.NewLRUCache[bool](cfg.AuthCacheSize, cfg.AuthCacheTTL)
	manager.Register(verdicts)
	logger.WithComponent(applog.ComponentAuth).Info("Caching identity verdicts",
		"ttl", cfg.AuthCacheTTL.String(),
		"size", cfg.AuthCacheSize)
	return auth.NewCachingAuthenticator(a, verdicts)
}

// OpenBackend creates the configured expense store.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bc.Type, err)
	}
	return res, nil
}

// ConnectAMQP returns a broker client, or nil when events are disabled or the
// broker cannot be reached. The API keeps serving without events.
func ConnectAMQP(cfg *config.Config, logger *applog.Logger) *amqp.Client {
	if !cfg.EventsEnabled() {
		logger.Info("AMQP not configured, expense events disabled")
		return nil
	}

	amqpLogger := logger.WithComponent(applog.ComponentAMQP)
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		amqpLogger.Warn("Failed to initialize AMQP client, continuing without events",
			applog.FieldError, err.Error())
		return nil
	}

	amqpLogger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}
