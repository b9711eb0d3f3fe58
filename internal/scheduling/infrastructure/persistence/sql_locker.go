package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLLocker serializes writers per provider for the rest of the current
// transaction. Postgres takes a transaction-scoped advisory lock. SQLite
// upserts a row in provider_locks, which takes the database write lock.
// Outside a transaction it does nothing.
type SQLLocker struct {
	sqlStore
}

var _ domain.ProviderLocker = (*SQLLocker)(nil)

// NewSQLLocker creates a locker on conn.
func NewSQLLocker(conn database.Connection) *SQLLocker {
	return &SQLLocker{sqlStore{conn: conn}}
}

func (l *SQLLocker) LockProvider(ctx context.Context, providerID uuid.UUID) error {
	info, ok := database.TxInfoFromContext(ctx)
	if !ok {
		return nil
	}

	var err error
	switch l.conn.Driver() {
	case database.DriverPostgres:
		_, err = info.Tx.Exec(ctx, l.q(`SELECT pg_advisory_xact_lock(hashtextextended(?, 0))`), providerID.String())
	default:
		_, err = info.Tx.Exec(ctx, l.q(`
			INSERT INTO provider_locks (provider_id, locked_at) VALUES (?, ?)
			ON CONFLICT (provider_id) DO UPDATE SET locked_at = excluded.locked_at`),
			providerID.String(), l.t(time.Now()))
	}
	if err != nil {
		return fmt.Errorf("lock provider %s: %w", providerID, err)
	}
	return nil
}
