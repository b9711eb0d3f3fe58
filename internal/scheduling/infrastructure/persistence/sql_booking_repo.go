package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const bookingColumns = `id, consumer_id, provider_id, start_time, end_time, status, is_emergency,
	recurrence, series_id, cancellation_note, cancelled_at, version, created_at, updated_at`

// SQLBookingRepository implements domain.BookingRepository on PostgreSQL and
// SQLite. Overlap is checked before each write and enforced again by the
// schema, so a racing writer that slips past the check still fails.
type SQLBookingRepository struct {
	sqlStore
}

var _ domain.BookingRepository = (*SQLBookingRepository)(nil)

// NewSQLBookingRepository creates a booking repository on conn.
func NewSQLBookingRepository(conn database.Connection) *SQLBookingRepository {
	return &SQLBookingRepository{sqlStore{conn: conn}}
}

// Save inserts a new booking (version 0) or updates a loaded one. A version
// mismatch returns domain.ErrStaleWrite.
func (r *SQLBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	if database.InTx(ctx) {
		return r.save(ctx, booking)
	}

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := r.save(database.WithTx(ctx, tx, true), booking); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *SQLBookingRepository) save(ctx context.Context, booking *domain.Booking) error {
	state := bookingState(booking)

	if state.Status.IsActive() {
		rng := booking.Range()
		clashing, err := r.findIDs(ctx, state.ProviderID, rng, domain.ActiveStatuses(), state.ID)
		if err != nil {
			return err
		}
		if len(clashing) > 0 {
			return &domain.ConflictError{Reason: domain.ReasonBookingOverlap, BookingIDs: clashing}
		}
	}

	var err error
	if state.Version == 0 {
		err = r.insert(ctx, state)
	} else {
		err = r.update(ctx, state)
	}
	if err != nil {
		if database.IsConstraintViolation(err, constraintBookingOverlap) {
			return &domain.ConflictError{Reason: domain.ReasonBookingOverlap}
		}
		if database.IsConstraintViolation(err, "bookings_pkey") || database.IsConstraintViolation(err, "bookings.id") {
			return domain.ErrStaleWrite
		}
		return err
	}

	booking.SetVersion(state.Version + 1)
	return nil
}

func (r *SQLBookingRepository) insert(ctx context.Context, s domain.BookingState) error {
	recurrence, err := encodeRecurrence(s.Recurrence)
	if err != nil {
		return err
	}

	_, err = r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID.String(), s.ConsumerID.String(), s.ProviderID.String(),
		r.t(s.Start), r.t(s.End), string(s.Status), s.IsEmergency,
		recurrence, nullUUID(s.SeriesID), s.CancellationNote, r.nt(s.CancelledAt),
		1, r.t(s.CreatedAt), r.t(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", s.ID, err)
	}

	for _, child := range s.Children {
		_, err := r.exec(ctx).Exec(ctx,
			r.q(`INSERT INTO booking_participants (booking_id, child_id) VALUES (?, ?)`),
			s.ID.String(), child.String())
		if err != nil {
			return fmt.Errorf("insert participant %s: %w", child, err)
		}
	}
	return nil
}

// update writes the mutable columns. Participants, consumer, provider and
// range never change after creation.
func (r *SQLBookingRepository) update(ctx context.Context, s domain.BookingState) error {
	result, err := r.exec(ctx).Exec(ctx, r.q(`
		UPDATE bookings
		SET status = ?, cancellation_note = ?, cancelled_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		string(s.Status), s.CancellationNote, r.nt(s.CancelledAt), r.t(s.UpdatedAt),
		s.ID.String(), s.Version,
	)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", s.ID, err)
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

func (r *SQLBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	bookings, err := r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings[0], nil
}

func (r *SQLBookingRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, statuses []domain.BookingStatus, excludeID uuid.UUID) ([]*domain.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE provider_id = ? AND id <> ? AND start_time < ? AND end_time > ?
		  AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY start_time`
	args := []any{providerID.String(), excludeID.String(), r.t(rng.End()), r.t(rng.Start())}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	return r.list(ctx, query, args...)
}

func (r *SQLBookingRepository) FindByProvider(ctx context.Context, providerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE provider_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		providerID.String(), r.t(window.End()), r.t(window.Start()))
}

func (r *SQLBookingRepository) FindByConsumer(ctx context.Context, consumerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE consumer_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		consumerID.String(), r.t(window.End()), r.t(window.Start()))
}

func (r *SQLBookingRepository) FindCompletable(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND end_time <= ?
		ORDER BY end_time
		LIMIT ?`,
		string(domain.StatusConfirmed), r.t(now), limit)
}

func (r *SQLBookingRepository) findIDs(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, statuses []domain.BookingStatus, excludeID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT id FROM bookings
		WHERE provider_id = ? AND id <> ? AND start_time < ? AND end_time > ?
		  AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY start_time`
	args := []any{providerID.String(), excludeID.String(), r.t(rng.End()), r.t(rng.Start())}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLBookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	states, err := r.scanAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, states); err != nil {
		return nil, err
	}

	bookings := make([]*domain.Booking, 0, len(states))
	for _, s := range states {
		bookings = append(bookings, domain.RehydrateBooking(*s))
	}
	return bookings, nil
}

// scanAll drains the result set before anything else runs on the connection;
// SQLite serves one statement at a time.
func (r *SQLBookingRepository) scanAll(ctx context.Context, query string, args ...any) ([]*domain.BookingState, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.BookingState
	for rows.Next() {
		s, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

func (r *SQLBookingRepository) loadChildren(ctx context.Context, states []*domain.BookingState) error {
	if len(states) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.BookingState, len(states))
	args := make([]any, 0, len(states))
	for _, s := range states {
		byID[s.ID] = s
		args = append(args, s.ID.String())
	}

	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT booking_id, child_id FROM booking_participants
		WHERE booking_id IN (`+placeholders(len(args))+`)
		ORDER BY booking_id, child_id`), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID, childID uuid.UUID
		if err := rows.Scan(&bookingID, &childID); err != nil {
			return err
		}
		if s, ok := byID[bookingID]; ok {
			s.Children = append(s.Children, childID)
		}
	}
	return rows.Err()
}

func scanBooking(row database.Row) (*domain.BookingState, error) {
	var (
		s                    domain.BookingState
		status               string
		recurrence           []byte
		seriesID             uuid.NullUUID
		cancelledAt          database.NullTimestamp
		start, end           database.Timestamp
		createdAt, updatedAt database.Timestamp
	)
	err := row.Scan(
		&s.ID, &s.ConsumerID, &s.ProviderID, &start, &end, &status, &s.IsEmergency,
		&recurrence, &seriesID, &s.CancellationNote, &cancelledAt, &s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.Status, err = domain.ParseBookingStatus(status); err != nil {
		return nil, err
	}
	if s.Recurrence, err = decodeRecurrence(recurrence); err != nil {
		return nil, errors.Join(fmt.Errorf("booking %s: stored recurrence", s.ID), err)
	}
	if seriesID.Valid {
		s.SeriesID = seriesID.UUID
	}
	s.Start = start.Time
	s.End = end.Time
	s.CancelledAt = cancelledAt.Ptr()
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time
	return &s, nil
}
