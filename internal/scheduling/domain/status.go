package domain

import "fmt"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending       BookingStatus = "pending"
	StatusConfirmed     BookingStatus = "confirmed"
	StatusCancelled     BookingStatus = "cancelled"
	StatusLateCancelled BookingStatus = "late_cancelled"
	StatusCompleted     BookingStatus = "completed"
)

// ActiveStatuses hold a provider's time. No two bookings in these states may
// overlap for the same provider.
func ActiveStatuses() []BookingStatus {
	return []BookingStatus{StatusPending, StatusConfirmed}
}

// ParseBookingStatus validates a stored or user-supplied status.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusLateCancelled, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown booking status %q", s)
	}
}

// IsActive reports whether the booking still reserves the provider's time.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusLateCancelled || s == StatusCompleted
}

func (s BookingStatus) String() string { return string(s) }
