package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEntry    = errors.New("invalid calendar entry")
	ErrFailureNotFound = errors.New("calendar sync failure not found")
)

// EntryKind says what a calendar entry mirrors.
type EntryKind string

const (
	EntryBooking     EntryKind = "booking"
	EntryAvailable   EntryKind = "available"
	EntryUnavailable EntryKind = "unavailable"
)

// Entry is the copy of a booking or availability block kept in a provider's
// external calendar. UID is the id of the mirrored booking or block; Ref is
// the location the calendar returned for it, empty until the first push.
type Entry struct {
	UID        uuid.UUID `json:"uid"`
	ProviderID uuid.UUID `json:"provider_id"`
	Kind       EntryKind `json:"kind"`
	Summary    string    `json:"summary"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Ref        string    `json:"ref,omitempty"`
}

// Validate checks the entry can be written to a calendar.
func (e Entry) Validate() error {
	if e.UID == uuid.Nil || e.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: uid and provider are required", ErrInvalidEntry)
	}
	switch e.Kind {
	case EntryBooking, EntryAvailable, EntryUnavailable:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if !e.Start.Before(e.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidEntry)
	}
	return nil
}

// MirrorsBlock reports whether the entry is an availability block, the only
// kind whose calendar reference is stored back on the source.
func (e Entry) MirrorsBlock() bool {
	return e.Kind == EntryAvailable || e.Kind == EntryUnavailable
}
