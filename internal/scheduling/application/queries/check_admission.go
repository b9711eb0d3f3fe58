package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// AdmissionDTO is the verdict of a dry-run admission.
type AdmissionDTO struct {
	OK         bool        `json:"ok"`
	Reason     string      `json:"reason,omitempty"`
	Message    string      `json:"message,omitempty"`
	BookingIDs []uuid.UUID `json:"booking_ids,omitempty"`
	BlockIDs   []uuid.UUID `json:"block_ids,omitempty"`
}

// CheckAdmissionQuery asks whether a range could be booked right now,
// without writing anything.
type CheckAdmissionQuery struct {
	ProviderID       uuid.UUID
	Start            time.Time
	End              time.Time
	IsEmergency      bool
	ExcludeBookingID uuid.UUID
}

// CheckAdmissionHandler handles the CheckAdmissionQuery.
type CheckAdmissionHandler struct {
	resolver *services.ConflictResolver
}

// NewCheckAdmissionHandler creates a new CheckAdmissionHandler.
func NewCheckAdmissionHandler(resolver *services.ConflictResolver) *CheckAdmissionHandler {
	return &CheckAdmissionHandler{resolver: resolver}
}

// Handle executes the CheckAdmissionQuery. A malformed range is reported as
// an InvalidRange verdict, not an error.
func (h *CheckAdmissionHandler) Handle(ctx context.Context, query CheckAdmissionQuery) (*AdmissionDTO, error) {
	rng, err := domain.NewTimeRange(query.Start, query.End)
	if err != nil {
		return toAdmissionDTO(domain.Rejected(domain.ReasonInvalidRange, nil, nil)), nil
	}

	admission, err := h.resolver.Admit(ctx, services.AdmitRequest{
		ProviderID:       query.ProviderID,
		Range:            rng,
		ExcludeBookingID: query.ExcludeBookingID,
		IsEmergency:      query.IsEmergency,
	})
	if err != nil {
		return nil, err
	}
	return toAdmissionDTO(admission), nil
}

func toAdmissionDTO(a domain.Admission) *AdmissionDTO {
	dto := &AdmissionDTO{
		OK:         a.OK,
		Reason:     string(a.Reason),
		BookingIDs: a.ConflictingBookingIDs,
		BlockIDs:   a.BlockingBlockIDs,
	}
	if err := a.Err(); err != nil {
		dto.Message = err.Error()
	}
	return dto
}
