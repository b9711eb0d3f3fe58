package domain

import "time"

// Policy carries the tunable scheduling rules.
type Policy struct {
	// Location is the single service time zone used to map instants to dates.
	Location *time.Location
	// LateCancellationWindow: cancelling a confirmed booking with less than
	// this left before start is a late cancellation.
	LateCancellationWindow time.Duration
	// MinLeadTime is how far ahead a normal booking must start.
	MinLeadTime             time.Duration
	EmergencySkipsLeadTime  bool
	EmergencySkipsPastStart bool
	// OpenWhenNoAvailability treats a date with no AVAILABLE block as open.
	// When false such a date rejects with OutsideDeclaredAvailability.
	OpenWhenNoAvailability bool
	// MaxOccurrences caps one recurring expansion; 0 means no cap.
	MaxOccurrences int
	// MaxRecurrenceHorizon caps horizonEnd relative to the anchor; 0 means no cap.
	MaxRecurrenceHorizon time.Duration
}

// DefaultPolicy returns the standard marketplace rules in UTC.
func DefaultPolicy() Policy {
	return Policy{
		Location:               time.UTC,
		LateCancellationWindow: 24 * time.Hour,
		EmergencySkipsLeadTime: true,
		OpenWhenNoAvailability: true,
	}
}

// Loc never returns nil.
func (p Policy) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// IsLateCancellation applies the strict "< window" rule: exactly one window
// before start is still on time.
func (p Policy) IsLateCancellation(start, now time.Time) bool {
	return start.Sub(now) < p.LateCancellationWindow
}
