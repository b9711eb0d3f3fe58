package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// IdempotencyStore replays the stored result of a request made earlier with
// the same key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Remember(ctx context.Context, key string, result []byte) error
}

// RequestBookingCommand asks for a provider's time, once or weekly.
type RequestBookingCommand struct {
	ConsumerID  uuid.UUID
	ProviderID  uuid.UUID
	Start       time.Time
	End         time.Time
	Children    []uuid.UUID
	IsEmergency bool
	Recurrence  *domain.RecurrenceRule
	// IdempotencyKey, when set, makes a retried request replay the first
	// successful result.
	IdempotencyKey string
}

// BookedOccurrence is one committed booking.
type BookedOccurrence struct {
	BookingID uuid.UUID `json:"booking_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// RejectedOccurrence is an occurrence that was not admitted, with the ids
// that explain why.
type RejectedOccurrence struct {
	Date       string                `json:"date"`
	Start      time.Time             `json:"start"`
	End        time.Time             `json:"end"`
	Reason     domain.ConflictReason `json:"reason"`
	BookingIDs []uuid.UUID           `json:"booking_ids,omitempty"`
	BlockIDs   []uuid.UUID           `json:"block_ids,omitempty"`
}

// Err returns the typed rejection.
func (r RejectedOccurrence) Err() error {
	return &domain.ConflictError{Reason: r.Reason, BookingIDs: r.BookingIDs, BlockIDs: r.BlockIDs}
}

// PendingOccurrence is an occurrence that was never attempted because the
// series was interrupted.
type PendingOccurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func pendingFrom(occurrences []domain.TimeRange) []PendingOccurrence {
	out := make([]PendingOccurrence, len(occurrences))
	for i, o := range occurrences {
		out[i] = PendingOccurrence{Start: o.Start(), End: o.End()}
	}
	return out
}

// RequestBookingResult lists what was committed and what was refused. For a
// recurring request both can be non-empty. Pending is only set when an
// infrastructure failure interrupted the series.
type RequestBookingResult struct {
	SeriesID uuid.UUID            `json:"series_id,omitzero"`
	Booked   []BookedOccurrence   `json:"booked"`
	Rejected []RejectedOccurrence `json:"rejected"`
	Pending  []PendingOccurrence  `json:"pending,omitempty"`
	Replayed bool                 `json:"-"`
}

// RequestBookingHandler admits and commits booking requests. Each occurrence
// runs in its own unit of work under the provider lock, so a conflict on one
// date never rolls back the others.
type RequestBookingHandler struct {
	bookings    domain.BookingRepository
	locker      domain.ProviderLocker
	resolver    *services.ConflictResolver
	expander    *services.RecurrenceExpander
	outboxRepo  outbox.Repository
	uow         sharedApplication.UnitOfWork
	idempotency IdempotencyStore
	clock       domain.Clock
	metrics     observability.Metrics
	logger      *slog.Logger
}

// NewRequestBookingHandler creates a new RequestBookingHandler. idempotency
// may be nil.
func NewRequestBookingHandler(
	bookings domain.BookingRepository,
	locker domain.ProviderLocker,
	resolver *services.ConflictResolver,
	expander *services.RecurrenceExpander,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	idempotency IdempotencyStore,
	clock domain.Clock,
	metrics observability.Metrics,
	logger *slog.Logger,
) *RequestBookingHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestBookingHandler{
		bookings:    bookings,
		locker:      locker,
		resolver:    resolver,
		expander:    expander,
		outboxRepo:  outboxRepo,
		uow:         uow,
		idempotency: idempotency,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handle executes the RequestBookingCommand. A rejected single booking
// returns its *domain.ConflictError; a recurring request reports rejected
// occurrences in the result instead. When an infrastructure error stops a
// series after some occurrences committed, Handle returns the partial result,
// with the rest listed as pending, together with an error wrapping
// domain.ErrSeriesInterrupted. The partial result is what a retry with the
// same idempotency key replays.
func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*RequestBookingResult, error) {
	rng, err := domain.NewTimeRange(cmd.Start, cmd.End)
	if err != nil {
		return nil, domain.Rejected(domain.ReasonInvalidRange, nil, nil).Err()
	}

	key := h.scopedKey(cmd)
	if replay, ok, err := h.replay(ctx, key); err != nil || ok {
		return replay, err
	}

	occurrences := []domain.TimeRange{rng}
	result := &RequestBookingResult{Booked: []BookedOccurrence{}, Rejected: []RejectedOccurrence{}}
	if cmd.Recurrence != nil {
		occurrences, err = h.expander.Plan(*cmd.Recurrence, rng)
		if err != nil {
			return nil, err
		}
		result.SeriesID = uuid.New()
	}

	loc := h.resolver.Policy().Loc()
	for i, occurrence := range occurrences {
		id, admission, err := h.bookOne(ctx, cmd, occurrence, result.SeriesID)
		if err != nil {
			if len(result.Booked) == 0 {
				return nil, err
			}
			result.Pending = pendingFrom(occurrences[i:])
			h.remember(ctx, key, result)
			h.logger.Error("booking series interrupted",
				"series_id", result.SeriesID,
				"booked", len(result.Booked),
				"pending", len(result.Pending),
				"error", err,
			)
			return result, fmt.Errorf("%w after %d of %d occurrences: %w", domain.ErrSeriesInterrupted, i, len(occurrences), err)
		}
		if !admission.OK {
			h.metrics.Counter(observability.MetricBookingsRejected, 1, observability.T("reason", string(admission.Reason)))
			result.Rejected = append(result.Rejected, RejectedOccurrence{
				Date:       domain.DateOf(occurrence.Start(), loc).Format(time.DateOnly),
				Start:      occurrence.Start(),
				End:        occurrence.End(),
				Reason:     admission.Reason,
				BookingIDs: admission.ConflictingBookingIDs,
				BlockIDs:   admission.BlockingBlockIDs,
			})
			continue
		}
		h.metrics.Counter(observability.MetricBookingsRequested, 1)
		result.Booked = append(result.Booked, BookedOccurrence{
			BookingID: id,
			Start:     occurrence.Start(),
			End:       occurrence.End(),
		})
	}

	h.logger.Info("booking requested",
		"consumer_id", cmd.ConsumerID,
		"provider_id", cmd.ProviderID,
		"booked", len(result.Booked),
		"rejected", len(result.Rejected),
	)

	if cmd.Recurrence == nil && len(result.Rejected) == 1 {
		return nil, result.Rejected[0].Err()
	}
	h.remember(ctx, key, result)
	return result, nil
}

// bookOne admits and writes one occurrence. A rejection, including one the
// storage guard raises after admission, comes back as a negative admission.
func (h *RequestBookingHandler) bookOne(ctx context.Context, cmd RequestBookingCommand, rng domain.TimeRange, seriesID uuid.UUID) (uuid.UUID, domain.Admission, error) {
	var (
		bookingID uuid.UUID
		admission domain.Admission
	)
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.locker.LockProvider(txCtx, cmd.ProviderID); err != nil {
			return err
		}

		var err error
		admission, err = h.resolver.Admit(txCtx, services.AdmitRequest{
			ProviderID:  cmd.ProviderID,
			Range:       rng,
			IsEmergency: cmd.IsEmergency,
		})
		if err != nil || !admission.OK {
			return err
		}

		booking, err := domain.NewBooking(domain.NewBookingParams{
			ConsumerID:  cmd.ConsumerID,
			ProviderID:  cmd.ProviderID,
			Range:       rng,
			Children:    cmd.Children,
			IsEmergency: cmd.IsEmergency,
			Recurrence:  cmd.Recurrence,
			SeriesID:    seriesID,
		}, h.clock.Now())
		if err != nil {
			return err
		}
		if err := h.bookings.Save(txCtx, booking); err != nil {
			return err
		}
		bookingID = booking.ID()
		return writeEvents(txCtx, h.outboxRepo, cmd.ConsumerID, booking)
	})
	if conflict, ok := domain.AsConflict(err); ok {
		h.logger.Warn("booking lost a race at write time", "provider_id", cmd.ProviderID, "range", rng.String())
		return uuid.Nil, domain.Rejected(conflict.Reason, conflict.BookingIDs, conflict.BlockIDs), nil
	}
	if err != nil {
		return uuid.Nil, domain.Admission{}, fmt.Errorf("book %s: %w", rng, err)
	}
	return bookingID, admission, nil
}

// scopedKey namespaces the client key by consumer so two consumers cannot
// collide on the same key.
func (h *RequestBookingHandler) scopedKey(cmd RequestBookingCommand) string {
	if h.idempotency == nil || cmd.IdempotencyKey == "" {
		return ""
	}
	return "request_booking:" + cmd.ConsumerID.String() + ":" + cmd.IdempotencyKey
}

func (h *RequestBookingHandler) replay(ctx context.Context, key string) (*RequestBookingResult, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	data, ok, err := h.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var result RequestBookingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	result.Replayed = true
	return &result, true, nil
}

// remember is best effort: the bookings are committed either way.
func (h *RequestBookingHandler) remember(ctx context.Context, key string, result *RequestBookingResult) {
	if key == "" {
		return
	}
	data, err := json.Marshal(result)
	if err == nil {
		err = h.idempotency.Remember(ctx, key, data)
	}
	if err != nil {
		h.logger.Warn("failed to store idempotent result", "error", err)
	}
}
