package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAvailabilityBlock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	rng := mustRange(t, time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC), time.Date(2024, 6, 4, 1, 0, 0, 0, time.UTC))

	block, err := domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{
		ProviderID: uuid.New(),
		Range:      rng,
		Kind:       domain.KindUnavailable,
	}, loc, at(7, 0))
	require.NoError(t, err)

	assert.Equal(t, 4, block.Date().Day(), "dated by local start")
	assert.False(t, block.IsAvailable())
	events := block.PullEvents()
	require.Len(t, events, 1)
	event := events[0].(*domain.AvailabilityEvent)
	assert.Equal(t, domain.RoutingKeyAvailabilityDeclared, event.RoutingKey())
	assert.Equal(t, "2024-06-04", event.Date)
}

func TestNewAvailabilityBlock_Invalid(t *testing.T) {
	rng := mustRange(t, at(9, 0), at(17, 0))

	_, err := domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{ProviderID: uuid.New(), Range: rng, Kind: "maybe"}, time.UTC, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidBlock)

	_, err = domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{Range: rng, Kind: domain.KindAvailable}, time.UTC, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidBlock)

	_, err = domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{ProviderID: uuid.New(), Kind: domain.KindAvailable}, time.UTC, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestAvailabilityBlock_RetractAndLink(t *testing.T) {
	block, err := domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{
		ProviderID: uuid.New(),
		Range:      mustRange(t, at(9, 0), at(17, 0)),
		Kind:       domain.KindAvailable,
	}, time.UTC, at(7, 0))
	require.NoError(t, err)
	block.PullEvents()

	block.LinkExternalCalendar("/calendars/p/1.ics", at(7, 5))
	assert.Equal(t, "/calendars/p/1.ics", block.ExternalCalendarRef())
	assert.Empty(t, block.DomainEvents())

	block.Retract(at(8, 0))
	events := block.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.RoutingKeyAvailabilityRetracted, events[0].RoutingKey())
	assert.Equal(t, "/calendars/p/1.ics", events[0].(*domain.AvailabilityEvent).ExternalCalendarRef)
}

func TestConflictError(t *testing.T) {
	bookingID := uuid.New()
	admission := domain.Rejected(domain.ReasonBookingOverlap, []uuid.UUID{bookingID}, nil)

	err := admission.Err()

	assert.ErrorIs(t, err, domain.ErrBookingOverlap)
	assert.Contains(t, err.Error(), bookingID.String())
	ce, ok := domain.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{bookingID}, ce.BookingIDs)
	assert.True(t, domain.IsBusinessError(err))
	assert.NoError(t, domain.Admitted().Err())
}

func TestUnavailableOverBookingIsMarkedUnavailable(t *testing.T) {
	err := (&domain.ConflictError{Reason: domain.ReasonUnavailableOverBooking}).Unwrap()

	assert.ErrorIs(t, err, domain.ErrMarkedUnavailable)
	assert.False(t, domain.IsBusinessError(errors.New("connection reset")))
}
