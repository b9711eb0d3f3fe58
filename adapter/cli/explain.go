package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
)

// Explain turns a handler error into a message for people. Business
// rejections get plain wording plus the ids that caused them; anything else
// is reported as is.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var msg string
	switch {
	case errors.Is(err, domain.ErrSeriesInterrupted):
		return "the series stopped part way; what was booked before the failure is kept, repeat the rest: " + err.Error()
	case errors.Is(err, domain.ErrUnavailableOverBooking):
		msg = "the provider already has bookings during that time; cancel them before marking it unavailable"
	case errors.Is(err, domain.ErrNoLongerAvailable):
		msg = "this time is no longer available, the provider's calendar changed since the request"
	case errors.Is(err, domain.ErrInvalidRange):
		msg = "the start must be before the end"
	case errors.Is(err, domain.ErrPastStart):
		msg = "that time has already started"
	case errors.Is(err, domain.ErrInsufficientLeadTime):
		msg = "that time is too soon, bookings need more notice"
	case errors.Is(err, domain.ErrBookingOverlap):
		msg = "the provider is already booked at that time"
	case errors.Is(err, domain.ErrMarkedUnavailable):
		msg = "the provider is unavailable at that time"
	case errors.Is(err, domain.ErrOutsideDeclaredAvailability):
		msg = "the provider has not said they are available at that time"
	case errors.Is(err, domain.ErrOverlappingAvailability):
		msg = "that overlaps availability already declared"
	case errors.Is(err, domain.ErrBlockInUse):
		msg = "bookings depend on this availability"
	case errors.Is(err, domain.ErrIllegalTransition):
		msg = "the booking cannot do that in its current state"
	case errors.Is(err, domain.ErrUnauthorized):
		msg = "you are not allowed to do that"
	case errors.Is(err, domain.ErrNoteRequired):
		msg = "a note is required"
	case errors.Is(err, domain.ErrBookingNotFound):
		msg = "booking not found"
	case errors.Is(err, domain.ErrBlockNotFound):
		msg = "availability block not found"
	case errors.Is(err, domain.ErrInvalidRecurrence):
		msg = "invalid repeat: " + err.Error()
	default:
		return err.Error()
	}

	if ce, ok := domain.AsConflict(err); ok {
		var refs []string
		for _, id := range ce.BookingIDs {
			refs = append(refs, "booking "+id.String())
		}
		for _, id := range ce.BlockIDs {
			refs = append(refs, "block "+id.String())
		}
		if len(refs) > 0 {
			msg = fmt.Sprintf("%s (%s)", msg, strings.Join(refs, ", "))
		}
	}
	return msg
}
