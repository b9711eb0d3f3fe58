package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
)

// BookingStateMachine applies transitions to bookings. Accepting re-runs
// admission so a confirmation never lands on time that has since been taken.
type BookingStateMachine struct {
	resolver *ConflictResolver
	clock    domain.Clock
	logger   *slog.Logger
}

// NewBookingStateMachine creates a state machine over resolver.
func NewBookingStateMachine(resolver *ConflictResolver, clock domain.Clock, logger *slog.Logger) *BookingStateMachine {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingStateMachine{
		resolver: resolver,
		clock:    clock,
		logger:   logger,
	}
}

// Transition moves booking by action on behalf of role. Callers hold the
// provider lock when action is accept.
func (m *BookingStateMachine) Transition(ctx context.Context, booking *domain.Booking, action domain.Action, role domain.ActorRole, note string) error {
	return m.TransitionAt(ctx, booking, action, role, note, m.clock.Now())
}

// TransitionAt is Transition evaluated at now instead of the clock. The
// completion sweep uses it to judge every booking against one cut-off.
func (m *BookingStateMachine) TransitionAt(ctx context.Context, booking *domain.Booking, action domain.Action, role domain.ActorRole, note string, now time.Time) error {
	from := booking.Status()
	if err := domain.CheckTransition(from, action, role); err != nil {
		return err
	}

	if action == domain.ActionAccept {
		admission, err := m.resolver.Admit(ctx, AdmitRequest{
			ProviderID:       booking.ProviderID(),
			Range:            booking.Range(),
			ExcludeBookingID: booking.ID(),
			IsEmergency:      booking.IsEmergency(),
		})
		if err != nil {
			return err
		}
		if !admission.OK {
			m.logger.Info("booking no longer available",
				"booking_id", booking.ID(),
				"reason", admission.Reason,
			)
			return fmt.Errorf("%w: %w", domain.ErrNoLongerAvailable, admission.Err())
		}
	}

	err := booking.Transition(domain.TransitionRequest{
		Action: action,
		Role:   role,
		Note:   note,
		Now:    now,
	}, m.resolver.Policy())
	if err != nil {
		return err
	}

	m.logger.Debug("booking transitioned",
		"booking_id", booking.ID(),
		"action", action,
		"from", from,
		"to", booking.Status(),
	)
	return nil
}
