package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// DayAvailabilityDTO is one provider's calendar for one date.
type DayAvailabilityDTO struct {
	ProviderID uuid.UUID              `json:"provider_id"`
	Date       string                 `json:"date"`
	Blocks     []AvailabilityBlockDTO `json:"blocks"`
	// Bookings are the active bookings holding time on the date.
	Bookings []BookingDTO `json:"bookings"`
}

// GetAvailabilityQuery asks for a provider's calendar on Date, read in the
// service time zone.
type GetAvailabilityQuery struct {
	ProviderID uuid.UUID
	Date       time.Time
}

// GetAvailabilityHandler handles the GetAvailabilityQuery.
type GetAvailabilityHandler struct {
	availability *services.AvailabilityStore
	ledger       *services.BookingLedger
	policy       domain.Policy
}

// NewGetAvailabilityHandler creates a new GetAvailabilityHandler.
func NewGetAvailabilityHandler(availability *services.AvailabilityStore, ledger *services.BookingLedger, policy domain.Policy) *GetAvailabilityHandler {
	return &GetAvailabilityHandler{availability: availability, ledger: ledger, policy: policy}
}

// Handle executes the GetAvailabilityQuery.
func (h *GetAvailabilityHandler) Handle(ctx context.Context, query GetAvailabilityQuery) (*DayAvailabilityDTO, error) {
	loc := h.policy.Loc()
	day := domain.DayRange(query.Date, loc)

	blocks, err := h.availability.BlocksCovering(ctx, query.ProviderID, day.Start())
	if err != nil {
		return nil, err
	}
	active, err := h.ledger.Conflicts(ctx, query.ProviderID, day, uuid.Nil)
	if err != nil {
		return nil, err
	}

	dto := &DayAvailabilityDTO{
		ProviderID: query.ProviderID,
		Date:       day.Start().Format(time.DateOnly),
		Blocks:     []AvailabilityBlockDTO{},
		Bookings:   make([]BookingDTO, 0, len(active)),
	}
	for block := range blocks {
		dto.Blocks = append(dto.Blocks, toBlockDTO(block))
	}
	for _, b := range active {
		dto.Bookings = append(dto.Bookings, ToBookingDTO(b))
	}
	return dto, nil
}
