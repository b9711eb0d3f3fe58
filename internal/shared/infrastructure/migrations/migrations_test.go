package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "nestly.db")})
	require.NoError(t, err)
	defer conn.Close()

	applied, err := migrations.Run(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_scheduling.up.sql"}, applied)

	again, err := migrations.Run(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, again)

	for _, table := range []string{"bookings", "booking_participants", "availability_blocks", "provider_locks", "outbox", "calendar_sync_failures"} {
		var n int
		err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestPending(t *testing.T) {
	names, err := migrations.Pending(database.DriverPostgres)
	require.NoError(t, err)
	assert.Contains(t, names, "001_scheduling.up.sql")

	_, err = migrations.Pending(database.DriverMemory)
	assert.Error(t, err)
}
