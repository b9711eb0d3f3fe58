package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened to the booking.
type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingDeclined  Kind = "booking_declined"
	KindBookingCancelled Kind = "booking_cancelled"
	KindBookingCompleted Kind = "booking_completed"
)

// Notification is one message to one user.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Kind       Kind      `json:"kind"`
	BookingID  uuid.UUID `json:"booking_id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers notifications. Callers treat it as fire and forget: an
// error is logged and never undoes the operation that caused it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
