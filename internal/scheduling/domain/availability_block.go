package domain

import (
	"fmt"
	"time"

	sharedDomain "github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/google/uuid"
)

// AvailabilityKind says whether a block opens or closes the provider's time.
type AvailabilityKind string

const (
	KindAvailable   AvailabilityKind = "available"
	KindUnavailable AvailabilityKind = "unavailable"
)

// ParseAvailabilityKind validates a kind name.
func ParseAvailabilityKind(s string) (AvailabilityKind, error) {
	switch k := AvailabilityKind(s); k {
	case KindAvailable, KindUnavailable:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidBlock, s)
	}
}

// AvailabilityBlock is a declared interval on a provider's calendar.
type AvailabilityBlock struct {
	sharedDomain.BaseAggregateRoot
	providerID          uuid.UUID
	date                time.Time
	rng                 TimeRange
	kind                AvailabilityKind
	recurrence          *RecurrenceRule
	seriesID            uuid.UUID
	externalCalendarRef string
}

// NewAvailabilityBlockParams describes a declaration.
type NewAvailabilityBlockParams struct {
	ProviderID uuid.UUID
	Range      TimeRange
	Kind       AvailabilityKind
	Recurrence *RecurrenceRule
	SeriesID   uuid.UUID
}

// NewAvailabilityBlock creates a block dated by its start in loc. Overlap
// rules live in the availability store, not here.
func NewAvailabilityBlock(p NewAvailabilityBlockParams, loc *time.Location, now time.Time) (*AvailabilityBlock, error) {
	if p.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidBlock)
	}
	if !p.Range.IsValid() {
		return nil, ErrInvalidRange
	}
	if _, err := ParseAvailabilityKind(string(p.Kind)); err != nil {
		return nil, err
	}

	b := &AvailabilityBlock{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		providerID:        p.ProviderID,
		date:              DateOf(p.Range.Start(), loc),
		rng:               p.Range,
		kind:              p.Kind,
		recurrence:        p.Recurrence,
		seriesID:          p.SeriesID,
	}
	b.Record(newAvailabilityEvent(b, RoutingKeyAvailabilityDeclared, now))
	return b, nil
}

// AvailabilityBlockState is the persisted form of a block.
type AvailabilityBlockState struct {
	ID                  uuid.UUID
	ProviderID          uuid.UUID
	Date                time.Time
	Start               time.Time
	End                 time.Time
	Kind                AvailabilityKind
	Recurrence          *RecurrenceRule
	SeriesID            uuid.UUID
	ExternalCalendarRef string
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RehydrateAvailabilityBlock rebuilds a block from storage.
func RehydrateAvailabilityBlock(s AvailabilityBlockState) *AvailabilityBlock {
	entity := sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)
	return &AvailabilityBlock{
		BaseAggregateRoot:   sharedDomain.RehydrateBaseAggregateRoot(entity, s.Version),
		providerID:          s.ProviderID,
		date:                s.Date,
		rng:                 TimeRange{start: s.Start.UTC(), end: s.End.UTC()},
		kind:                s.Kind,
		recurrence:          s.Recurrence,
		seriesID:            s.SeriesID,
		externalCalendarRef: s.ExternalCalendarRef,
	}
}

func (b *AvailabilityBlock) ProviderID() uuid.UUID       { return b.providerID }
func (b *AvailabilityBlock) Date() time.Time             { return b.date }
func (b *AvailabilityBlock) Range() TimeRange            { return b.rng }
func (b *AvailabilityBlock) Kind() AvailabilityKind      { return b.kind }
func (b *AvailabilityBlock) Recurrence() *RecurrenceRule { return b.recurrence }
func (b *AvailabilityBlock) SeriesID() uuid.UUID         { return b.seriesID }
func (b *AvailabilityBlock) ExternalCalendarRef() string { return b.externalCalendarRef }

func (b *AvailabilityBlock) IsAvailable() bool { return b.kind == KindAvailable }

// Retract records the retraction event. The store deletes the row afterwards.
func (b *AvailabilityBlock) Retract(now time.Time) {
	b.Record(newAvailabilityEvent(b, RoutingKeyAvailabilityRetracted, now))
}

// LinkExternalCalendar stores the weak reference returned by a calendar push.
func (b *AvailabilityBlock) LinkExternalCalendar(ref string, now time.Time) {
	b.externalCalendarRef = ref
	b.Touch(now)
}
