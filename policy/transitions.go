package policy

import (
	"fmt"
	"strings"

	"github.com/tradedesk/tradedesk-api/models"
)

// Transition is a status change request
type Transition struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (t Transition) String() string {
	return fmt.Sprintf("%s → %s", t.From, t.To)
}

var (
	salesTransitions = []Transition{
		{models.StatusDraft, models.StatusPending},
	}
	procurementTransitions = []Transition{
		{models.StatusPending, models.StatusDraft},
		{models.StatusPending, models.StatusApproved},
	}
	directorTransitions = []Transition{
		{models.StatusApproved, models.StatusFulfilled},
		{models.StatusApproved, models.StatusRejected},
	}
)

// AllowedTransitions returns the status changes the actor may perform
func AllowedTransitions(actor Actor) []Transition {
	if actor.Role == models.RoleDirector {
		return directorTransitions
	}
	if actor.Role == models.RoleIntern {
		return nil
	}
	switch actor.Department {
	case models.DepartmentSales:
		return salesTransitions
	case models.DepartmentProcurement:
		return procurementTransitions
	default:
		return nil
	}
}

// TransitionError explains why a status change was refused
type TransitionError struct {
	Requested Transition
	Allowed   []Transition
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("status change %s is not allowed: you cannot change order status", e.Requested)
	}
	names := make([]string, len(e.Allowed))
	for i, t := range e.Allowed {
		names[i] = t.String()
	}
	return fmt.Sprintf("status change %s is not allowed: you may only perform %s", e.Requested, strings.Join(names, ", "))
}

// CheckTransition validates from → to for actor. Unchanged status is not a transition.
func CheckTransition(actor Actor, from, to models.OrderStatus) error {
	if from == to {
		return nil
	}
	requested := Transition{From: from, To: to}
	allowed := AllowedTransitions(actor)
	for _, t := range allowed {
		if t == requested {
			return nil
		}
	}
	return &TransitionError{Requested: requested, Allowed: allowed}
}
