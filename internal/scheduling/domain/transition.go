package domain

import (
	"fmt"
	"slices"
)

// Action is something an actor asks to do to a booking.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAccept, ActionDecline, ActionCancel, ActionComplete:
		return a, nil
	default:
		return "", fmt.Errorf("unknown booking action %q", s)
	}
}

// ActorRole is the capacity an actor acts in relative to a booking.
type ActorRole string

const (
	RoleConsumer ActorRole = "consumer"
	RoleProvider ActorRole = "provider"
	RoleSystem   ActorRole = "system"
)

type transitionKey struct {
	from   BookingStatus
	action Action
}

// transitions lists every legal (status, action) pair and who may trigger it.
// Any pair not listed is illegal, which keeps the table total.
var transitions = map[transitionKey][]ActorRole{
	{StatusPending, ActionAccept}:     {RoleProvider},
	{StatusPending, ActionDecline}:    {RoleProvider},
	{StatusPending, ActionCancel}:     {RoleConsumer, RoleProvider},
	{StatusConfirmed, ActionCancel}:   {RoleConsumer, RoleProvider},
	{StatusConfirmed, ActionComplete}: {RoleSystem},
}

// TransitionError explains why a transition was refused. Err is
// ErrIllegalTransition or ErrUnauthorized.
type TransitionError struct {
	From   BookingStatus
	Action Action
	Role   ActorRole
	Detail string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s as %s from %s", e.Err, e.Action, e.Role, e.From)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.Err }

// CheckTransition validates (from, action, role) against the table. The
// illegal-pair check comes first, so a cancelled booking reports
// ErrIllegalTransition to everyone.
func CheckTransition(from BookingStatus, action Action, role ActorRole) error {
	roles, ok := transitions[transitionKey{from, action}]
	if !ok {
		return &TransitionError{From: from, Action: action, Role: role, Err: ErrIllegalTransition}
	}
	if !slices.Contains(roles, role) {
		return &TransitionError{From: from, Action: action, Role: role, Err: ErrUnauthorized}
	}
	return nil
}

// TargetStatus is where a legal transition lands. Cancel depends on late
// classification, which the caller supplies.
func TargetStatus(from BookingStatus, action Action, late bool) BookingStatus {
	switch action {
	case ActionAccept:
		return StatusConfirmed
	case ActionDecline:
		return StatusCancelled
	case ActionComplete:
		return StatusCompleted
	case ActionCancel:
		if from == StatusConfirmed && late {
			return StatusLateCancelled
		}
		return StatusCancelled
	}
	return from
}
