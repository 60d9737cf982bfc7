package backend

import (
	"context"
	"fmt"

	applog "expense-svc/internal/log"
	"expense-svc/internal/store/memory"
	"expense-svc/internal/store/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend, PostgresBackend:
		return f.createSQLBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dialect, dsn, err := config.Dialect()
	if err != nil {
		return nil, err
	}

	st, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", dialect, err)
	}

	f.logger.Info("Initialized SQL backend",
		applog.FieldBackend, config.Type.String(),
		applog.FieldOperation, applog.OpStartup)

	return &BackendResult{
		Backend: st,
		Cleanup: st.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	st := memory.New()
	if config.SeedFixtures {
		st = memory.NewFromFixtures()
	}

	f.logger.Info("Initialized memory backend",
		applog.FieldBackend, config.Type.String(),
		"fixtures", config.SeedFixtures,
		applog.FieldCount, st.Len())

	return &BackendResult{Backend: st}, nil
}

// Migrate applies the schema of a persistent backend without serving.
func Migrate(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if !config.Type.Persistent() {
		return fmt.Errorf("backend %s has no migrations", config.Type)
	}
	dialect, dsn, err := config.Dialect()
	if err != nil {
		return err
	}
	return sqlstore.Migrate(dialect, dsn)
}
