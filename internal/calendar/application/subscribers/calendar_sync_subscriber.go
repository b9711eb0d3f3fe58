package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/calendar/application"
	calendarDomain "github.com/felixgeelhaar/nestly/internal/calendar/domain"
	schedulingDomain "github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
)

// CalendarSyncSubscriber mirrors confirmed bookings and availability blocks
// into the provider's external calendar.
type CalendarSyncSubscriber struct {
	sync    *application.SyncService
	logger  *slog.Logger
	enabled bool
}

// NewCalendarSyncSubscriber creates a new calendar sync subscriber.
func NewCalendarSyncSubscriber(sync *application.SyncService, logger *slog.Logger) *CalendarSyncSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarSyncSubscriber{
		sync:    sync,
		logger:  logger,
		enabled: true,
	}
}

// SetEnabled enables or disables the subscriber.
func (s *CalendarSyncSubscriber) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// EventTypes returns the event types this subscriber handles.
func (s *CalendarSyncSubscriber) EventTypes() []string {
	return []string{
		schedulingDomain.RoutingKeyBookingConfirmed,
		schedulingDomain.RoutingKeyBookingCancelled,
		schedulingDomain.RoutingKeyAvailabilityDeclared,
		schedulingDomain.RoutingKeyAvailabilityRetracted,
	}
}

// Handle processes a scheduling event. Calendar failures are recorded by the
// sync service; only undecodable payloads are dropped here.
func (s *CalendarSyncSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	if !s.enabled || s.sync == nil {
		s.logger.Debug("calendar sync disabled, skipping event", "routing_key", event.RoutingKey)
		return nil
	}

	switch event.RoutingKey {
	case schedulingDomain.RoutingKeyBookingConfirmed, schedulingDomain.RoutingKeyBookingCancelled:
		var payload schedulingDomain.BookingEvent
		if err := event.Decode(&payload); err != nil {
			s.logger.Error("failed to decode booking event", "event_id", event.EventID, "error", err)
			return nil
		}
		entry := bookingEntry(payload)
		if event.RoutingKey == schedulingDomain.RoutingKeyBookingConfirmed {
			s.sync.Push(ctx, event.EventID, event.RoutingKey, entry)
		} else if payload.PreviousStatus == schedulingDomain.StatusConfirmed {
			// Only confirmed bookings were ever pushed.
			s.sync.Delete(ctx, event.EventID, event.RoutingKey, entry)
		}

	case schedulingDomain.RoutingKeyAvailabilityDeclared, schedulingDomain.RoutingKeyAvailabilityRetracted:
		var payload schedulingDomain.AvailabilityEvent
		if err := event.Decode(&payload); err != nil {
			s.logger.Error("failed to decode availability event", "event_id", event.EventID, "error", err)
			return nil
		}
		entry := availabilityEntry(payload)
		if event.RoutingKey == schedulingDomain.RoutingKeyAvailabilityDeclared {
			s.sync.Push(ctx, event.EventID, event.RoutingKey, entry)
		} else {
			s.sync.Delete(ctx, event.EventID, event.RoutingKey, entry)
		}

	default:
		s.logger.Warn("unknown event type", "routing_key", event.RoutingKey)
	}
	return nil
}

func bookingEntry(e schedulingDomain.BookingEvent) calendarDomain.Entry {
	summary := "Childcare booking"
	if e.IsEmergency {
		summary = "Emergency childcare booking"
	}
	if n := len(e.Children); n > 0 {
		summary = fmt.Sprintf("%s (%d %s)", summary, n, plural(n, "child", "children"))
	}
	return calendarDomain.Entry{
		UID:        e.BookingID,
		ProviderID: e.ProviderID,
		Kind:       calendarDomain.EntryBooking,
		Summary:    summary,
		Start:      e.Start,
		End:        e.End,
	}
}

func availabilityEntry(e schedulingDomain.AvailabilityEvent) calendarDomain.Entry {
	kind, summary := calendarDomain.EntryAvailable, "Available for bookings"
	if e.Kind == schedulingDomain.KindUnavailable {
		kind, summary = calendarDomain.EntryUnavailable, "Unavailable"
	}
	return calendarDomain.Entry{
		UID:        e.BlockID,
		ProviderID: e.ProviderID,
		Kind:       kind,
		Summary:    summary,
		Start:      e.Start,
		End:        e.End,
		Ref:        e.ExternalCalendarRef,
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
