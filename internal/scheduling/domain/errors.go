package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidRange                = errors.New("invalid time range")
	ErrPastStart                   = errors.New("start is in the past")
	ErrInsufficientLeadTime        = errors.New("start is inside the minimum lead time")
	ErrBookingOverlap              = errors.New("overlaps an active booking")
	ErrMarkedUnavailable           = errors.New("provider is marked unavailable")
	ErrOutsideDeclaredAvailability = errors.New("outside declared availability")
	ErrBlockInUse                  = errors.New("availability block has active bookings")
	ErrOverlappingAvailability     = errors.New("overlaps an availability block of the same kind")
	ErrIllegalTransition           = errors.New("illegal booking transition")
	ErrNoLongerAvailable           = errors.New("slot is no longer available")
	ErrNotFound                    = errors.New("not found")
	ErrUnauthorized                = errors.New("not allowed")

	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
	ErrBlockNotFound   = fmt.Errorf("availability block %w", ErrNotFound)

	// ErrUnavailableOverBooking rejects an UNAVAILABLE block that would cover
	// bookings already holding the provider's time.
	ErrUnavailableOverBooking = fmt.Errorf("%w: active bookings fall inside the block", ErrMarkedUnavailable)

	ErrNoteRequired      = errors.New("a note is required")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
	ErrInvalidBooking    = errors.New("invalid booking")
	ErrInvalidBlock      = errors.New("invalid availability block")

	// ErrSeriesInterrupted means an infrastructure failure stopped a
	// recurring request part way. The occurrences committed before it stand.
	ErrSeriesInterrupted = errors.New("series interrupted")

	// ErrStaleWrite means the row changed since it was loaded. Callers retry
	// the whole operation.
	ErrStaleWrite = errors.New("concurrent modification")
)

// ConflictError is a business rejection with the ids that caused it, so a
// caller can show why a request failed. It unwraps to the reason's sentinel.
type ConflictError struct {
	Reason     ConflictReason
	BookingIDs []uuid.UUID
	BlockIDs   []uuid.UUID
	Detail     string
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason.Sentinel().Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.BookingIDs) > 0 {
		b.WriteString(" (bookings ")
		b.WriteString(joinIDs(e.BookingIDs))
		b.WriteString(")")
	}
	if len(e.BlockIDs) > 0 {
		b.WriteString(" (blocks ")
		b.WriteString(joinIDs(e.BlockIDs))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ConflictError) Unwrap() error { return e.Reason.Sentinel() }

// AsConflict extracts a ConflictError from err's chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsBusinessError reports whether err is a user-facing rejection rather than
// an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrInvalidRange, ErrPastStart, ErrInsufficientLeadTime, ErrBookingOverlap,
		ErrMarkedUnavailable, ErrOutsideDeclaredAvailability, ErrBlockInUse,
		ErrOverlappingAvailability, ErrIllegalTransition, ErrNoLongerAvailable,
		ErrNotFound, ErrUnauthorized, ErrNoteRequired, ErrInvalidRecurrence,
		ErrInvalidBooking, ErrInvalidBlock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
