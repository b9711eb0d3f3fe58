package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()
	conn, err := NewConnection(context.Background(), database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "nested", "nestly.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return conn
}

func countNotes(t *testing.T, conn database.Connection) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM notes`).Scan(&n))
	return n
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	assert.Equal(t, database.DriverSQLite, conn.Driver())
	require.NoError(t, conn.Ping(ctx))

	result, err := conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?), (?, ?)`, "a", "nap at 1pm", "b", "no nuts")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err := conn.Query(ctx, `SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		require.NoError(t, rows.Scan(&body))
		bodies = append(bodies, body)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"nap at 1pm", "no nuts"}, bodies)

	var missing string
	err = conn.QueryRow(ctx, `SELECT body FROM notes WHERE id = ?`, "zzz").Scan(&missing)
	assert.True(t, database.IsNoRows(err))
}

func TestUnitOfWork(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	t.Run("commit", func(t *testing.T) {
		txCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "c1", "x")
		require.NoError(t, err)
		require.NoError(t, uow.Commit(txCtx))
		assert.Equal(t, 1, countNotes(t, conn))
	})

	t.Run("nested begin joins the outer transaction", func(t *testing.T) {
		outer, err := uow.Begin(ctx)
		require.NoError(t, err)
		inner, err := uow.Begin(outer)
		require.NoError(t, err)

		_, err = database.ExecutorFromContext(inner, conn).Exec(inner, `INSERT INTO notes (id, body) VALUES (?, ?)`, "n1", "x")
		require.NoError(t, err)
		require.NoError(t, uow.Commit(inner), "inner commit is a no-op")
		require.NoError(t, uow.Rollback(outer))

		assert.Equal(t, 1, countNotes(t, conn))
	})

	t.Run("outside a transaction", func(t *testing.T) {
		assert.True(t, errors.Is(uow.Commit(ctx), database.ErrNoTransaction))
		assert.False(t, database.InTx(ctx))
	})
}

func TestIsConstraintViolation_Trigger(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	_, err := conn.Exec(ctx, `CREATE TRIGGER notes_no_empty BEFORE INSERT ON notes
WHEN NEW.body = '' BEGIN SELECT RAISE(ABORT, 'notes_no_empty'); END`)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "e", "")

	require.Error(t, err)
	assert.True(t, database.IsConstraintViolation(err, "notes_no_empty"))
	assert.False(t, database.IsConstraintViolation(err, "something_else"))
}
