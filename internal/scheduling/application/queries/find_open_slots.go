package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// DefaultSlotStep spaces candidate start times.
const DefaultSlotStep = 30 * time.Minute

// TimeSlotDTO is a data transfer object for open slots.
type TimeSlotDTO struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_min"`
}

// FindOpenSlotsQuery contains the parameters for finding open slots.
type FindOpenSlotsQuery struct {
	ProviderID  uuid.UUID
	Date        time.Time
	Duration    time.Duration
	Step        time.Duration
	IsEmergency bool
}

// FindOpenSlotsHandler handles the FindOpenSlotsQuery.
type FindOpenSlotsHandler struct {
	resolver *services.ConflictResolver
}

// NewFindOpenSlotsHandler creates a new FindOpenSlotsHandler.
func NewFindOpenSlotsHandler(resolver *services.ConflictResolver) *FindOpenSlotsHandler {
	return &FindOpenSlotsHandler{resolver: resolver}
}

// Handle executes the FindOpenSlotsQuery. Every candidate start on the date,
// one Step apart, is run through admission; the ones admitted now are
// returned. A slot may end on the following midnight but not after it.
func (h *FindOpenSlotsHandler) Handle(ctx context.Context, query FindOpenSlotsQuery) ([]TimeSlotDTO, error) {
	if query.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidRange)
	}
	step := query.Step
	if step <= 0 {
		step = DefaultSlotStep
	}

	day := domain.DayRange(query.Date, h.resolver.Policy().Loc())
	slots := []TimeSlotDTO{}
	for start := day.Start(); !start.Add(query.Duration).After(day.End()); start = start.Add(step) {
		rng, err := domain.NewTimeRange(start, start.Add(query.Duration))
		if err != nil {
			return nil, err
		}
		admission, err := h.resolver.Admit(ctx, services.AdmitRequest{
			ProviderID:  query.ProviderID,
			Range:       rng,
			IsEmergency: query.IsEmergency,
		})
		if err != nil {
			return nil, err
		}
		if admission.OK {
			slots = append(slots, TimeSlotDTO{
				Start:       rng.Start(),
				End:         rng.End(),
				DurationMin: int(query.Duration.Minutes()),
			})
		}
	}
	return slots, nil
}
