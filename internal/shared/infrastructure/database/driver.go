package database

import "strings"

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	// DriverMemory keeps everything in process. Nothing survives a restart.
	DriverMemory Driver = "memory"
)

func (d Driver) String() string { return string(d) }

// DetectDriver infers the backend from a connection string. An empty string
// selects SQLite so the CLI works without any setup.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case url == "memory" || strings.HasPrefix(url, "memory://"):
		return DriverMemory
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite
	default:
		return DriverPostgres
	}
}

// IsValid reports whether d is a known backend.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverSQLite, DriverMemory:
		return true
	default:
		return false
	}
}

// IsSQL reports whether d is served by a Connection.
func (d Driver) IsSQL() bool {
	return d == DriverPostgres || d == DriverSQLite
}
