package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const blockColumns = `id, provider_id, block_date, start_time, end_time, kind, recurrence,
	series_id, external_calendar_ref, version, created_at, updated_at`

// SQLAvailabilityRepository implements domain.AvailabilityRepository.
// Block dates are stored as YYYY-MM-DD and read back as midnight in loc.
type SQLAvailabilityRepository struct {
	sqlStore
	loc *time.Location
}

var _ domain.AvailabilityRepository = (*SQLAvailabilityRepository)(nil)

// NewSQLAvailabilityRepository creates an availability repository on conn.
func NewSQLAvailabilityRepository(conn database.Connection, loc *time.Location) *SQLAvailabilityRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLAvailabilityRepository{sqlStore: sqlStore{conn: conn}, loc: loc}
}

func (r *SQLAvailabilityRepository) Save(ctx context.Context, block *domain.AvailabilityBlock) error {
	s := blockState(block)

	var err error
	if s.Version == 0 {
		err = r.insert(ctx, s)
	} else {
		err = r.update(ctx, s)
	}
	if err != nil {
		if database.IsConstraintViolation(err, constraintAvailabilityOverlap) {
			return &domain.ConflictError{Reason: domain.ReasonOverlappingAvailability}
		}
		return err
	}

	block.SetVersion(s.Version + 1)
	return nil
}

func (r *SQLAvailabilityRepository) insert(ctx context.Context, s domain.AvailabilityBlockState) error {
	recurrence, err := encodeRecurrence(s.Recurrence)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO availability_blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID.String(), s.ProviderID.String(), s.Date.Format(time.DateOnly),
		r.t(s.Start), r.t(s.End), string(s.Kind), recurrence,
		nullUUID(s.SeriesID), s.ExternalCalendarRef, 1, r.t(s.CreatedAt), r.t(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert availability block %s: %w", s.ID, err)
	}
	return nil
}

func (r *SQLAvailabilityRepository) update(ctx context.Context, s domain.AvailabilityBlockState) error {
	result, err := r.exec(ctx).Exec(ctx, r.q(`
		UPDATE availability_blocks
		SET external_calendar_ref = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		s.ExternalCalendarRef, r.t(s.UpdatedAt), s.ID.String(), s.Version,
	)
	if err != nil {
		return fmt.Errorf("update availability block %s: %w", s.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleWrite
	}
	return nil
}

func (r *SQLAvailabilityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AvailabilityBlock, error) {
	blocks, err := r.list(ctx, `SELECT `+blockColumns+` FROM availability_blocks WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return blocks[0], nil
}

// Delete removes the block. Deleting a missing block is not an error.
func (r *SQLAvailabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.exec(ctx).Exec(ctx, r.q(`DELETE FROM availability_blocks WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete availability block %s: %w", id, err)
	}
	return nil
}

func (r *SQLAvailabilityRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, kinds ...domain.AvailabilityKind) ([]*domain.AvailabilityBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks
		WHERE provider_id = ? AND start_time < ? AND end_time > ?`
	args := []any{providerID.String(), r.t(rng.End()), r.t(rng.Start())}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	return r.list(ctx, query+` ORDER BY start_time`, args...)
}

func (r *SQLAvailabilityRepository) list(ctx context.Context, query string, args ...any) ([]*domain.AvailabilityBlock, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*domain.AvailabilityBlock
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, domain.RehydrateAvailabilityBlock(s))
	}
	return blocks, rows.Err()
}

func (r *SQLAvailabilityRepository) scan(row database.Row) (domain.AvailabilityBlockState, error) {
	var (
		s                    domain.AvailabilityBlockState
		date, kind           string
		recurrence           []byte
		seriesID             uuid.NullUUID
		start, end           database.Timestamp
		createdAt, updatedAt database.Timestamp
	)
	err := row.Scan(
		&s.ID, &s.ProviderID, &date, &start, &end, &kind, &recurrence,
		&seriesID, &s.ExternalCalendarRef, &s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return s, err
	}

	if s.Date, err = time.ParseInLocation(time.DateOnly, date, r.loc); err != nil {
		return s, fmt.Errorf("availability block %s: stored date %q: %w", s.ID, date, err)
	}
	if s.Kind, err = domain.ParseAvailabilityKind(kind); err != nil {
		return s, err
	}
	if s.Recurrence, err = decodeRecurrence(recurrence); err != nil {
		return s, fmt.Errorf("availability block %s: stored recurrence: %w", s.ID, err)
	}
	if seriesID.Valid {
		s.SeriesID = seriesID.UUID
	}
	s.Start = start.Time
	s.End = end.Time
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time
	return s, nil
}
