package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// SyncService pushes and deletes calendar entries on a best-effort basis.
// A failed call is recorded for a later retry and never returned to the
// caller, so a calendar outage cannot fail a booking.
type SyncService struct {
	adapter  CalendarSyncAdapter
	failures domain.SyncFailureRepository
	linker   RefLinker
	backoff  domain.Backoff
	now      func() time.Time
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewSyncService creates a SyncService. linker may be nil.
func NewSyncService(
	adapter CalendarSyncAdapter,
	failures domain.SyncFailureRepository,
	linker RefLinker,
	backoff domain.Backoff,
	metrics observability.Metrics,
	logger *slog.Logger,
) *SyncService {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		adapter:  adapter,
		failures: failures,
		linker:   linker,
		backoff:  backoff,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	return s
}

// Push mirrors entry into the calendar.
func (s *SyncService) Push(ctx context.Context, eventID uuid.UUID, routingKey string, entry domain.Entry) {
	if err := s.push(ctx, entry); err != nil {
		s.recordFailure(ctx, eventID, routingKey, domain.OperationPush, entry, err)
	}
}

// Delete removes entry from the calendar.
func (s *SyncService) Delete(ctx context.Context, eventID uuid.UUID, routingKey string, entry domain.Entry) {
	if err := s.delete(ctx, entry); err != nil {
		s.recordFailure(ctx, eventID, routingKey, domain.OperationDelete, entry, err)
	}
}

// RetryResult counts the outcome of one retry pass.
type RetryResult struct {
	Resolved  int
	Failed    int
	Abandoned int
}

// RetryDue replays failures whose next attempt is due.
func (s *SyncService) RetryDue(ctx context.Context, limit int) (RetryResult, error) {
	var result RetryResult
	due, err := s.failures.FindDue(ctx, s.now(), limit)
	if err != nil {
		return result, fmt.Errorf("find due calendar failures: %w", err)
	}

	for _, failure := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		var callErr error
		switch failure.Operation {
		case domain.OperationPush:
			callErr = s.push(ctx, failure.Entry)
		case domain.OperationDelete:
			callErr = s.delete(ctx, failure.Entry)
		default:
			callErr = fmt.Errorf("unknown operation %q", failure.Operation)
		}

		now := s.now()
		switch {
		case callErr == nil:
			failure.Resolve(now)
			result.Resolved++
		case failure.RecordAttempt(callErr, s.backoff, now):
			result.Abandoned++
			s.logger.Error("calendar sync abandoned",
				"failure_id", failure.ID,
				"operation", failure.Operation,
				"uid", failure.Entry.UID,
				"attempts", failure.Attempts,
				"error", callErr,
			)
		default:
			result.Failed++
		}

		if err := s.failures.Save(ctx, failure); err != nil {
			return result, fmt.Errorf("save calendar failure %s: %w", failure.ID, err)
		}
	}
	return result, nil
}

func (s *SyncService) push(ctx context.Context, entry domain.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	ref, err := s.adapter.PushEvent(ctx, entry)
	if err != nil {
		return err
	}
	s.metrics.Counter(observability.MetricCalendarPushes, 1,
		observability.T("operation", string(domain.OperationPush)),
		observability.T("kind", string(entry.Kind)),
	)
	s.logger.Debug("calendar entry pushed", "uid", entry.UID, "kind", entry.Kind, "ref", ref)

	if s.linker == nil || !entry.MirrorsBlock() || ref == "" || ref == entry.Ref {
		return nil
	}
	// Delete falls back to the path derived from the uid when this is lost.
	if err := s.linker.LinkExternalCalendar(ctx, entry.UID, ref); err != nil {
		s.logger.Warn("failed to store calendar reference", "block_id", entry.UID, "error", err)
	}
	return nil
}

func (s *SyncService) delete(ctx context.Context, entry domain.Entry) error {
	if entry.UID == uuid.Nil {
		return fmt.Errorf("%w: uid is required", domain.ErrInvalidEntry)
	}
	if err := s.adapter.DeleteEvent(ctx, entry); err != nil {
		return err
	}
	s.metrics.Counter(observability.MetricCalendarPushes, 1,
		observability.T("operation", string(domain.OperationDelete)),
		observability.T("kind", string(entry.Kind)),
	)
	return nil
}

func (s *SyncService) recordFailure(ctx context.Context, eventID uuid.UUID, routingKey string, op domain.Operation, entry domain.Entry, cause error) {
	s.metrics.Counter(observability.MetricCalendarFailures, 1, observability.T("operation", string(op)))

	if errors.Is(cause, domain.ErrInvalidEntry) {
		s.logger.Error("calendar entry rejected", "uid", entry.UID, "error", cause)
		return
	}
	s.logger.Warn("calendar sync failed, recorded for retry",
		"operation", op,
		"uid", entry.UID,
		"provider_id", entry.ProviderID,
		"error", cause,
	)

	failure := domain.NewSyncFailure(eventID, routingKey, op, entry, cause, s.backoff, s.now())
	if err := s.failures.Save(ctx, failure); err != nil {
		s.logger.Error("failed to record calendar sync failure", "uid", entry.UID, "error", err)
	}
}
