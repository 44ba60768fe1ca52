// Package policy decides who may do what to an order. Everything here is
// pure: callers pass the actor and the order state explicitly.
package policy

import "github.com/tradedesk/tradedesk-api/models"

// Actor is the authenticated user as seen by the authorization gate
type Actor struct {
	UserID     uint
	Role       models.RoleName
	Department models.DepartmentName // empty for the director
	Categories map[uint]struct{}
}

// NewActor builds an Actor from a user loaded with role, department and categories
func NewActor(u *models.User) Actor {
	a := Actor{
		UserID:     u.ID,
		Role:       u.Role.Name,
		Categories: make(map[uint]struct{}, len(u.Categories)),
	}
	if u.Department != nil {
		a.Department = u.Department.Name
	}
	for _, id := range u.CategoryIDs() {
		a.Categories[id] = struct{}{}
	}
	return a
}

// IsDirector reports whether the actor holds the director role
func (a Actor) IsDirector() bool {
	return a.Role == models.RoleDirector
}

// InDepartment reports whether the actor belongs to d
func (a Actor) InDepartment(d models.DepartmentName) bool {
	return a.Department == d
}

// CanUseCategory reports whether the actor is assigned to the category
func (a Actor) CanUseCategory(id uint) bool {
	_, ok := a.Categories[id]
	return ok
}

// coversAll reports whether every id is an assigned category. An order with
// no items is never covered.
func (a Actor) coversAll(ids []uint) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !a.CanUseCategory(id) {
			return false
		}
	}
	return true
}
