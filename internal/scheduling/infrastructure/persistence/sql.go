package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// Constraint names shared by the Postgres exclusion constraints and the
// SQLite trigger messages.
const (
	constraintBookingOverlap      = "bookings_no_overlap"
	constraintAvailabilityOverlap = "availability_no_overlap"
)

// sqlStore is the driver-aware plumbing shared by the SQL repositories.
type sqlStore struct {
	conn database.Connection
}

func (s sqlStore) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

func (s sqlStore) q(query string) string { return database.Rebind(s.conn.Driver(), query) }

func (s sqlStore) t(t time.Time) any { return database.TimeArg(s.conn.Driver(), t) }

func (s sqlStore) nt(t *time.Time) any { return database.NullTimeArg(s.conn.Driver(), t) }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}

func encodeRecurrence(rule *domain.RecurrenceRule) (any, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeRecurrence(data []byte) (*domain.RecurrenceRule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rule domain.RecurrenceRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}
