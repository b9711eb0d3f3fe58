package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const failureColumns = `id, event_id, routing_key, operation, subject_id, provider_id, payload,
	external_ref, attempts, last_error, next_attempt_at, created_at, resolved_at, abandoned_at`

// SQLFailureRepository stores calendar failures in calendar_sync_failures on
// PostgreSQL or SQLite.
type SQLFailureRepository struct {
	conn database.Connection
}

var _ domain.SyncFailureRepository = (*SQLFailureRepository)(nil)

// NewSQLFailureRepository creates a failure repository on conn.
func NewSQLFailureRepository(conn database.Connection) *SQLFailureRepository {
	return &SQLFailureRepository{conn: conn}
}

func (r *SQLFailureRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *SQLFailureRepository) q(query string) string { return database.Rebind(r.conn.Driver(), query) }

func (r *SQLFailureRepository) t(t time.Time) any { return database.TimeArg(r.conn.Driver(), t) }

func (r *SQLFailureRepository) nt(t *time.Time) any { return database.NullTimeArg(r.conn.Driver(), t) }

// Save upserts by id; only the retry bookkeeping changes after insert.
func (r *SQLFailureRepository) Save(ctx context.Context, f *domain.SyncFailure) error {
	payload, err := f.MarshalEntry()
	if err != nil {
		return fmt.Errorf("encode calendar entry: %w", err)
	}

	_, err = r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO calendar_sync_failures (`+failureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			external_ref = excluded.external_ref,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			next_attempt_at = excluded.next_attempt_at,
			resolved_at = excluded.resolved_at,
			abandoned_at = excluded.abandoned_at`),
		f.ID.String(),
		f.EventID.String(),
		f.RoutingKey,
		string(f.Operation),
		f.Entry.UID.String(),
		f.Entry.ProviderID.String(),
		string(payload),
		f.Entry.Ref,
		f.Attempts,
		f.LastError,
		r.t(f.NextAttemptAt),
		r.t(f.CreatedAt),
		r.nt(f.ResolvedAt),
		r.nt(f.AbandonedAt),
	)
	if err != nil {
		return fmt.Errorf("save calendar failure %s: %w", f.ID, err)
	}
	return nil
}

func (r *SQLFailureRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.SyncFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT `+failureColumns+`
		FROM calendar_sync_failures
		WHERE resolved_at IS NULL
		  AND abandoned_at IS NULL
		  AND next_attempt_at <= ?
		ORDER BY next_attempt_at
		LIMIT ?`), r.t(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*domain.SyncFailure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, f)
	}
	return due, rows.Err()
}

func (r *SQLFailureRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM calendar_sync_failures WHERE resolved_at IS NULL AND abandoned_at IS NULL`,
	).Scan(&n)
	return n, err
}

func scanFailure(row database.Row) (*domain.SyncFailure, error) {
	var (
		f                       domain.SyncFailure
		subjectID, providerID   uuid.UUID
		operation               string
		payload                 []byte
		nextAttempt, createdAt  database.Timestamp
		resolvedAt, abandonedAt database.NullTimestamp
	)
	err := row.Scan(
		&f.ID, &f.EventID, &f.RoutingKey, &operation, &subjectID, &providerID, &payload,
		&f.Entry.Ref, &f.Attempts, &f.LastError, &nextAttempt, &createdAt, &resolvedAt, &abandonedAt,
	)
	if err != nil {
		return nil, err
	}

	ref := f.Entry.Ref
	if err := json.Unmarshal(payload, &f.Entry); err != nil {
		return nil, fmt.Errorf("decode calendar entry %s: %w", f.ID, err)
	}
	f.Entry.UID = subjectID
	f.Entry.ProviderID = providerID
	f.Entry.Ref = ref
	f.Operation = domain.Operation(operation)
	f.NextAttemptAt = nextAttempt.Time
	f.CreatedAt = createdAt.Time
	f.ResolvedAt = resolvedAt.Ptr()
	f.AbandonedAt = abandonedAt.Ptr()
	return &f, nil
}
