package subscribers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/notification/application"
	schedulingDomain "github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// BookingNotificationSubscriber tells consumers and providers about booking
// changes.
type BookingNotificationSubscriber struct {
	notifier application.Notifier
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewBookingNotificationSubscriber creates a new booking notification subscriber.
func NewBookingNotificationSubscriber(notifier application.Notifier, metrics observability.Metrics, logger *slog.Logger) *BookingNotificationSubscriber {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingNotificationSubscriber{notifier: notifier, metrics: metrics, logger: logger}
}

// EventTypes returns the event types this subscriber handles.
func (s *BookingNotificationSubscriber) EventTypes() []string {
	return []string{
		schedulingDomain.RoutingKeyBookingRequested,
		schedulingDomain.RoutingKeyBookingConfirmed,
		schedulingDomain.RoutingKeyBookingDeclined,
		schedulingDomain.RoutingKeyBookingCancelled,
		schedulingDomain.RoutingKeyBookingCompleted,
	}
}

// Handle processes a booking event. It never fails the event: delivery
// problems are logged and counted.
func (s *BookingNotificationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var payload schedulingDomain.BookingEvent
	if err := event.Decode(&payload); err != nil {
		s.logger.Error("failed to decode booking event", "event_id", event.EventID, "error", err)
		return nil
	}

	for _, n := range notificationsFor(event.RoutingKey, payload, event.Metadata.UserID, event.OccurredAt) {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.metrics.Counter(observability.MetricNotifyFailures, 1, observability.T("kind", string(n.Kind)))
			s.logger.Warn("notification failed",
				"kind", n.Kind,
				"user_id", n.UserID,
				"booking_id", n.BookingID,
				"error", err,
			)
			continue
		}
		s.metrics.Counter(observability.MetricNotifications, 1, observability.T("kind", string(n.Kind)))
	}
	return nil
}

// notificationsFor decides who hears about an event. The actor of a
// cancellation is not told about their own action; without an actor both
// parties are.
func notificationsFor(routingKey string, e schedulingDomain.BookingEvent, actorID uuid.UUID, at time.Time) []application.Notification {
	when := e.Start.Format("Mon 2 Jan 15:04")
	if at.IsZero() {
		at = time.Now().UTC()
	}
	build := func(userID uuid.UUID, kind application.Kind, subject, body string) application.Notification {
		return application.Notification{
			ID:         uuid.New(),
			UserID:     userID,
			Kind:       kind,
			BookingID:  e.BookingID,
			Subject:    subject,
			Body:       body,
			OccurredAt: at,
		}
	}

	switch routingKey {
	case schedulingDomain.RoutingKeyBookingRequested:
		subject := "New booking request"
		if e.IsEmergency {
			subject = "New emergency booking request"
		}
		return []application.Notification{
			build(e.ProviderID, application.KindBookingRequested, subject, fmt.Sprintf("A booking for %s is waiting for your answer.", when)),
		}
	case schedulingDomain.RoutingKeyBookingConfirmed:
		return []application.Notification{
			build(e.ConsumerID, application.KindBookingConfirmed, "Booking confirmed", fmt.Sprintf("Your booking for %s is confirmed.", when)),
		}
	case schedulingDomain.RoutingKeyBookingDeclined:
		return []application.Notification{
			build(e.ConsumerID, application.KindBookingDeclined, "Booking declined", fmt.Sprintf("Your booking for %s was declined: %s", when, e.Note)),
		}
	case schedulingDomain.RoutingKeyBookingCancelled:
		body := fmt.Sprintf("The booking for %s was cancelled.", when)
		if e.Status == schedulingDomain.StatusLateCancelled {
			body = fmt.Sprintf("The booking for %s was cancelled at short notice.", when)
		}
		if e.Note != "" {
			body += " " + e.Note
		}
		var out []application.Notification
		for _, party := range []uuid.UUID{e.ConsumerID, e.ProviderID} {
			if party != actorID {
				out = append(out, build(party, application.KindBookingCancelled, "Booking cancelled", body))
			}
		}
		return out
	case schedulingDomain.RoutingKeyBookingCompleted:
		body := fmt.Sprintf("The booking on %s is complete.", when)
		return []application.Notification{
			build(e.ConsumerID, application.KindBookingCompleted, "Booking completed", body),
			build(e.ProviderID, application.KindBookingCompleted, "Booking completed", body),
		}
	}
	return nil
}
