package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config selects and configures a SQL backend.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver
	// URL is the Postgres connection string.
	URL string
	// SQLitePath defaults to ~/.nestly/nestly.db.
	SQLitePath string
	// MaxConns applies to Postgres only.
	MaxConns int
}

// ResolvedDriver applies detection to cfg.
func (c Config) ResolvedDriver() Driver {
	if c.Driver == "" || c.Driver == "auto" {
		return DetectDriver(c.URL)
	}
	return c.Driver
}

// NewConnection opens a connection for cfg. The driver packages register
// themselves on import.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	switch driver := cfg.ResolvedDriver(); driver {
	case DriverPostgres:
		if newPostgresConnection == nil {
			return nil, fmt.Errorf("postgres driver not registered")
		}
		return newPostgresConnection(ctx, cfg)
	case DriverSQLite:
		if newSQLiteConnection == nil {
			return nil, fmt.Errorf("sqlite driver not registered")
		}
		return newSQLiteConnection(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DefaultSQLitePath is the per-user database file.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".nestly", "nestly.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

type connector func(ctx context.Context, cfg Config) (Connection, error)

var (
	newPostgresConnection connector
	newSQLiteConnection   connector
)

// RegisterPostgresDriver is called from the postgres package init.
func RegisterPostgresDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newPostgresConnection = fn
}

// RegisterSQLiteDriver is called from the sqlite package init.
func RegisterSQLiteDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newSQLiteConnection = fn
}
