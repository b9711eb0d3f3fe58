// Package migrations applies the embedded schema for each SQL driver.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

const createVersions = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Run applies every .up.sql file for the connection's driver that has not
// been recorded yet, in name order, each in its own transaction.
func Run(ctx context.Context, conn database.Connection) ([]string, error) {
	driver := conn.Driver()
	names, err := Pending(driver)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, createVersions); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, name := range names {
		done, err := isApplied(ctx, conn, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		body, err := files.ReadFile(string(driver) + "/" + name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := apply(ctx, conn, name, string(body)); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// Pending lists the migration files shipped for driver.
func Pending(driver database.Driver) ([]string, error) {
	if !driver.IsSQL() {
		return nil, fmt.Errorf("no migrations for driver %s", driver)
	}
	entries, err := fs.ReadDir(files, string(driver))
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func isApplied(ctx context.Context, conn database.Connection, name string) (bool, error) {
	var n int
	query := database.Rebind(conn.Driver(), `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`)
	if err := conn.QueryRow(ctx, query, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return n > 0, nil
}

func apply(ctx context.Context, conn database.Connection, name, body string) error {
	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	record := database.Rebind(conn.Driver(), `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`)
	if _, err := tx.Exec(ctx, record, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit(ctx)
}
