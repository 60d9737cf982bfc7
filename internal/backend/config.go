package backend

import (
	"fmt"
	"strings"

	"expense-svc/internal/config"
	"expense-svc/internal/store/sqlstore"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (valid: %s)",
			appConfig.DataBackend, strings.Join(GetBackendTypeStrings(), ", "))
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
		SeedFixtures: appConfig.SeedFixtures,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (valid: %s)", c.Type, strings.Join(GetBackendTypeStrings(), ", "))
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	if c.SeedFixtures && c.Type != MemoryBackend {
		return fmt.Errorf("fixtures can only be seeded into the memory backend")
	}
	return nil
}

// Dialect returns the SQL dialect and DSN of a persistent backend.
func (c Config) Dialect() (sqlstore.Dialect, string, error) {
	switch c.Type {
	case SQLiteBackend:
		return sqlstore.SQLite, c.SQLiteDBPath, nil
	case PostgresBackend:
		return sqlstore.Postgres, c.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("backend %s has no SQL dialect", c.Type)
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
