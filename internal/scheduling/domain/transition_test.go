package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
)

var (
	allStatuses = []domain.BookingStatus{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled,
		domain.StatusLateCancelled, domain.StatusCompleted,
	}
	allActions = []domain.Action{domain.ActionAccept, domain.ActionDecline, domain.ActionCancel, domain.ActionComplete}
	allRoles   = []domain.ActorRole{domain.RoleConsumer, domain.RoleProvider, domain.RoleSystem}
)

func TestCheckTransition_TableIsTotal(t *testing.T) {
	legal := map[domain.BookingStatus]map[domain.Action][]domain.ActorRole{
		domain.StatusPending: {
			domain.ActionAccept:  {domain.RoleProvider},
			domain.ActionDecline: {domain.RoleProvider},
			domain.ActionCancel:  {domain.RoleConsumer, domain.RoleProvider},
		},
		domain.StatusConfirmed: {
			domain.ActionCancel:   {domain.RoleConsumer, domain.RoleProvider},
			domain.ActionComplete: {domain.RoleSystem},
		},
	}

	for _, from := range allStatuses {
		for _, action := range allActions {
			for _, role := range allRoles {
				err := domain.CheckTransition(from, action, role)
				roles, pairLegal := legal[from][action]

				switch {
				case !pairLegal:
					assert.ErrorIs(t, err, domain.ErrIllegalTransition, "%s %s %s", from, action, role)
				case containsRole(roles, role):
					assert.NoError(t, err, "%s %s %s", from, action, role)
				default:
					assert.ErrorIs(t, err, domain.ErrUnauthorized, "%s %s %s", from, action, role)
				}
			}
		}
	}
}

func TestCheckTransition_TerminalStatesAreClosed(t *testing.T) {
	for _, from := range allStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, action := range allActions {
			for _, role := range allRoles {
				assert.ErrorIs(t, domain.CheckTransition(from, action, role), domain.ErrIllegalTransition)
			}
		}
	}
}

func TestTargetStatus(t *testing.T) {
	assert.Equal(t, domain.StatusConfirmed, domain.TargetStatus(domain.StatusPending, domain.ActionAccept, false))
	assert.Equal(t, domain.StatusCancelled, domain.TargetStatus(domain.StatusPending, domain.ActionDecline, false))
	assert.Equal(t, domain.StatusCancelled, domain.TargetStatus(domain.StatusPending, domain.ActionCancel, true), "pending is never late")
	assert.Equal(t, domain.StatusLateCancelled, domain.TargetStatus(domain.StatusConfirmed, domain.ActionCancel, true))
	assert.Equal(t, domain.StatusCancelled, domain.TargetStatus(domain.StatusConfirmed, domain.ActionCancel, false))
	assert.Equal(t, domain.StatusCompleted, domain.TargetStatus(domain.StatusConfirmed, domain.ActionComplete, false))
}

func TestParseBookingStatusAndAction(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := domain.ParseBookingStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := domain.ParseBookingStatus("archived")
	assert.Error(t, err)

	_, err = domain.ParseAction("reschedule")
	assert.Error(t, err)
}

func containsRole(roles []domain.ActorRole, role domain.ActorRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
