package policy

import (
	"fmt"

	"github.com/tradedesk/tradedesk-api/models"
)

// Action is an operation guarded by the gate
type Action string

const (
	ActionViewAny Action = "viewAny"
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionMerge   Action = "merge"
	ActionExport  Action = "export"
)

// OrderView is the part of an order the gate looks at
type OrderView struct {
	Status      models.OrderStatus
	CategoryIDs []uint
}

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// orderDepartment reports whether d takes part in the order workflow
func orderDepartment(d models.DepartmentName) bool {
	return d == models.DepartmentSales || d == models.DepartmentProcurement
}

// Authorize evaluates action for actor. order is required for view, update
// and delete and ignored otherwise.
func Authorize(actor Actor, action Action, order *OrderView) Decision {
	if needsOrder(action) && order == nil {
		return deny("%s requires an order", action)
	}

	d := byRole(actor, action, order)
	if !d.Allowed {
		return d
	}
	return businessRules(actor, action, order)
}

func needsOrder(action Action) bool {
	switch action {
	case ActionView, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// byRole is the role/department matrix
func byRole(actor Actor, action Action, order *OrderView) Decision {
	if actor.Role == models.RoleDirector {
		return allow()
	}
	if !orderDepartment(actor.Department) {
		return deny("department %q does not take part in the order workflow", actor.Department)
	}

	switch {
	case actor.Role.IsManager():
		return allow()
	case actor.Role == models.RoleIntern:
		return deny("interns cannot access orders")
	case actor.Role == models.RoleEmployee:
		return employee(actor, action, order)
	default:
		return deny("unknown role %q", actor.Role)
	}
}

func employee(actor Actor, action Action, order *OrderView) Decision {
	switch action {
	case ActionViewAny, ActionCreate, ActionMerge, ActionExport:
		return allow()
	case ActionView, ActionDelete:
		if actor.coversAll(order.CategoryIDs) {
			return allow()
		}
		return deny("order contains categories you are not assigned to")
	case ActionUpdate:
		if !actor.coversAll(order.CategoryIDs) {
			return deny("order contains categories you are not assigned to")
		}
		switch actor.Department {
		case models.DepartmentSales:
			if order.Status == models.StatusDraft {
				return allow()
			}
			return deny("sales employees can only edit draft orders")
		case models.DepartmentProcurement:
			if order.Status == models.StatusDraft || order.Status == models.StatusPending {
				return allow()
			}
			return deny("procurement employees can only edit draft or pending orders")
		}
		return deny("department %q cannot edit orders", actor.Department)
	default:
		return deny("unknown action %q", action)
	}
}

// businessRules apply on top of the role matrix, to every role
func businessRules(actor Actor, action Action, order *OrderView) Decision {
	switch action {
	case ActionCreate:
		if actor.IsDirector() || actor.InDepartment(models.DepartmentSales) {
			return allow()
		}
		return deny("only the sales department can create orders")
	case ActionDelete:
		if order.Status != models.StatusDraft {
			return deny("only draft orders can be deleted")
		}
	case ActionMerge:
		if !actor.InDepartment(models.DepartmentProcurement) {
			return deny("only the procurement department can merge orders")
		}
	case ActionExport:
		if !actor.IsDirector() && !actor.InDepartment(models.DepartmentSales) {
			return deny("only the sales department can export merged orders")
		}
	}
	return allow()
}

// ListableStatuses returns the statuses an actor sees in the order list, or
// nil when the actor has no order list at all.
func ListableStatuses(actor Actor) []models.OrderStatus {
	switch {
	case actor.IsDirector():
		return []models.OrderStatus{models.StatusApproved, models.StatusRejected, models.StatusFulfilled}
	case actor.Role == models.RoleIntern:
		return nil
	case actor.InDepartment(models.DepartmentSales):
		return []models.OrderStatus{models.StatusDraft, models.StatusPending}
	case actor.InDepartment(models.DepartmentProcurement):
		return []models.OrderStatus{models.StatusPending, models.StatusRejected, models.StatusFulfilled}
	default:
		return nil
	}
}
