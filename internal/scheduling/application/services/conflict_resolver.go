package services

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// AdmitRequest is a candidate range for one provider.
type AdmitRequest struct {
	ProviderID uuid.UUID
	Range      domain.TimeRange
	// ExcludeBookingID is skipped in the overlap check, for re-validation.
	ExcludeBookingID uuid.UUID
	IsEmergency      bool
}

// ConflictResolver decides whether a candidate range may be booked. It never
// writes; callers commit right after a positive admission, under the
// provider lock, in the same transaction.
type ConflictResolver struct {
	ledger       *BookingLedger
	availability *AvailabilityStore
	policy       domain.Policy
	clock        domain.Clock
	logger       *slog.Logger
}

// NewConflictResolver creates a conflict resolver.
func NewConflictResolver(
	ledger *BookingLedger,
	availability *AvailabilityStore,
	policy domain.Policy,
	clock domain.Clock,
	logger *slog.Logger,
) *ConflictResolver {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictResolver{
		ledger:       ledger,
		availability: availability,
		policy:       policy,
		clock:        clock,
		logger:       logger,
	}
}

// Policy returns the rules the resolver applies.
func (r *ConflictResolver) Policy() domain.Policy { return r.policy }

// Admit runs the admission checks in order and returns the first rejection.
// The error is reserved for storage failures; a rejection is a normal result.
func (r *ConflictResolver) Admit(ctx context.Context, req AdmitRequest) (domain.Admission, error) {
	rng := req.Range
	if !rng.IsValid() {
		return domain.Rejected(domain.ReasonInvalidRange, nil, nil), nil
	}

	now := r.clock.Now()
	if rng.Start().Before(now) && !(req.IsEmergency && r.policy.EmergencySkipsPastStart) {
		return domain.Rejected(domain.ReasonPastStart, nil, nil), nil
	}
	if r.policy.MinLeadTime > 0 && rng.Start().Sub(now) < r.policy.MinLeadTime &&
		!(req.IsEmergency && r.policy.EmergencySkipsLeadTime) {
		return domain.Rejected(domain.ReasonInsufficientLeadTime, nil, nil), nil
	}

	overlapping, err := r.ledger.Conflicts(ctx, req.ProviderID, rng, req.ExcludeBookingID)
	if err != nil {
		return domain.Admission{}, err
	}
	if len(overlapping) > 0 {
		return domain.Rejected(domain.ReasonBookingOverlap, bookingIDs(overlapping), nil), nil
	}

	unavailable, err := r.availability.overlapping(ctx, req.ProviderID, rng, domain.KindUnavailable)
	if err != nil {
		return domain.Admission{}, err
	}
	if len(unavailable) > 0 {
		return domain.Rejected(domain.ReasonMarkedUnavailable, nil, blockIDs(unavailable)), nil
	}

	covered, err := r.coveredByDeclaredAvailability(ctx, req.ProviderID, rng)
	if err != nil {
		return domain.Admission{}, err
	}
	if !covered {
		return domain.Rejected(domain.ReasonOutsideDeclaredAvailability, nil, nil), nil
	}

	return domain.Admitted(), nil
}

// coveredByDeclaredAvailability checks the declared-availability rule. When
// every spanned date has an AVAILABLE block, the range must lie inside their
// union. A date without one is open or closed depending on the policy.
func (r *ConflictResolver) coveredByDeclaredAvailability(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange) (bool, error) {
	loc := r.policy.Loc()
	dates := rng.Dates(loc)
	window := domain.DayRange(dates[0], loc)
	if last := domain.DayRange(dates[len(dates)-1], loc); last.End().After(window.End()) {
		window, _ = domain.NewTimeRange(window.Start(), last.End())
	}

	blocks, err := r.availability.overlapping(ctx, providerID, window, domain.KindAvailable)
	if err != nil {
		return false, err
	}

	declared := make(map[string]bool, len(dates))
	ranges := make([]domain.TimeRange, 0, len(blocks))
	for _, b := range blocks {
		// An overnight block declares every date it touches.
		for _, d := range b.Range().Dates(loc) {
			declared[d.Format(dateLayout)] = true
		}
		ranges = append(ranges, b.Range())
	}

	for _, d := range dates {
		if !declared[d.Format(dateLayout)] {
			if !r.policy.OpenWhenNoAvailability {
				r.logger.Debug("date has no declared availability",
					"provider_id", providerID,
					"date", d.Format(dateLayout),
				)
				return false, nil
			}
			return true, nil
		}
	}
	return rng.CoveredBy(ranges), nil
}

const dateLayout = "2006-01-02"
