package domain

import "github.com/google/uuid"

// ConflictReason names why a candidate range was refused.
type ConflictReason string

const (
	ReasonInvalidRange                ConflictReason = "invalid_range"
	ReasonPastStart                   ConflictReason = "past_start"
	ReasonInsufficientLeadTime        ConflictReason = "insufficient_lead_time"
	ReasonBookingOverlap              ConflictReason = "booking_overlap"
	ReasonMarkedUnavailable           ConflictReason = "marked_unavailable"
	ReasonOutsideDeclaredAvailability ConflictReason = "outside_declared_availability"
	ReasonOverlappingAvailability     ConflictReason = "overlapping_availability"
	ReasonBlockInUse                  ConflictReason = "block_in_use"
	ReasonUnavailableOverBooking      ConflictReason = "unavailable_over_booking"
)

// Sentinel maps the reason onto its package error.
func (r ConflictReason) Sentinel() error {
	switch r {
	case ReasonInvalidRange:
		return ErrInvalidRange
	case ReasonPastStart:
		return ErrPastStart
	case ReasonInsufficientLeadTime:
		return ErrInsufficientLeadTime
	case ReasonBookingOverlap:
		return ErrBookingOverlap
	case ReasonMarkedUnavailable:
		return ErrMarkedUnavailable
	case ReasonOutsideDeclaredAvailability:
		return ErrOutsideDeclaredAvailability
	case ReasonOverlappingAvailability:
		return ErrOverlappingAvailability
	case ReasonBlockInUse:
		return ErrBlockInUse
	case ReasonUnavailableOverBooking:
		return ErrUnavailableOverBooking
	default:
		return ErrInvalidBooking
	}
}

// Admission is the verdict on a candidate booking range.
type Admission struct {
	OK                    bool
	Reason                ConflictReason
	ConflictingBookingIDs []uuid.UUID
	BlockingBlockIDs      []uuid.UUID
}

// Admitted is the positive verdict.
func Admitted() Admission {
	return Admission{OK: true}
}

// Rejected builds a negative verdict with whatever ids explain it.
func Rejected(reason ConflictReason, bookingIDs, blockIDs []uuid.UUID) Admission {
	return Admission{
		Reason:                reason,
		ConflictingBookingIDs: bookingIDs,
		BlockingBlockIDs:      blockIDs,
	}
}

// Err is nil for an admission and a *ConflictError otherwise.
func (a Admission) Err() error {
	if a.OK {
		return nil
	}
	return &ConflictError{
		Reason:     a.Reason,
		BookingIDs: a.ConflictingBookingIDs,
		BlockIDs:   a.BlockingBlockIDs,
	}
}
