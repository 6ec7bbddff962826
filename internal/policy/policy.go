// Package policy is the single authorization gate consumed by every
// mutating operation. Authorize takes the acting principal, the action and
// the restaurant-scoped resource and returns nil or a classified
// *apperr.Error (401, 403 or 400).
package policy

import (
	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID       uint64
	Role         model.Role
	RestaurantID *uint64
}

// BoundTo reports whether the principal is bound to restaurant id.
func (p *Principal) BoundTo(id uint64) bool {
	return p.RestaurantID != nil && *p.RestaurantID == id
}

// Action names an operation subject to authorization.
type Action string

const (
	// ManageRestaurant covers catalog and table administration inside one
	// restaurant (products, categories, modifiers, tables, order cleanup).
	ManageRestaurant Action = "manage_restaurant"
	// OperateOrders covers day-to-day order handling by staff of the
	// restaurant: create, add/edit items, totals, kitchen and status.
	OperateOrders Action = "operate_orders"
	// ViewRestaurant covers subscriptions to restaurant and kitchen channels.
	ViewRestaurant Action = "view_restaurant"
	// ChangeTableState is exclusive to the waiter assigned to the table.
	ChangeTableState Action = "change_table_state"
	// AssignTable is exclusive to the restaurant's supervisor.
	AssignTable Action = "assign_table"
	// Administer covers platform-wide administration (restaurants, users).
	Administer Action = "administer"
)

// Resource describes the target of an action. RestaurantID is zero when the
// request carries no restaurant context. AssignedWaiterID is only consulted
// for table state changes.
type Resource struct {
	RestaurantID     uint64
	AssignedWaiterID *uint64
}

// Restaurant is shorthand for a resource scoped to restaurant id.
func Restaurant(id uint64) Resource { return Resource{RestaurantID: id} }

// Authorize decides whether p may perform a on r.
func Authorize(p *Principal, a Action, r Resource) error {
	if p == nil || p.UserID == 0 {
		return apperr.Unauthorized("You are not logged in! Please log in to get access")
	}

	switch a {
	case ChangeTableState:
		// Waiter-exclusive: neither admins nor super-admins may change state.
		if p.Role != model.RoleWaiter || r.AssignedWaiterID == nil || *r.AssignedWaiterID != p.UserID {
			return apperr.Forbidden("Only the assigned waiter can change the table state")
		}
		return nil
	case AssignTable:
		if p.Role != model.RoleRestaurantAdmin {
			return apperr.Forbidden("Only the supervisor can assign or transfer tables")
		}
		return ownRestaurant(p, r)
	}

	if p.Role == model.RoleSuperAdmin {
		return nil
	}

	switch a {
	case Administer:
		return apperr.Forbidden("You do not have permission to perform this action")
	case ManageRestaurant:
		if p.Role != model.RoleRestaurantAdmin {
			return apperr.Forbidden("You do not have permission to perform this action")
		}
		return ownRestaurant(p, r)
	case OperateOrders, ViewRestaurant:
		if p.Role != model.RoleRestaurantAdmin && p.Role != model.RoleWaiter {
			return apperr.Forbidden("You do not have permission to perform this action")
		}
		return ownRestaurant(p, r)
	}
	return apperr.Forbidden("You do not have permission to perform this action")
}

// ownRestaurant applies the tenancy check: the target restaurant, or the
// principal's own when the request names none, must be the principal's.
func ownRestaurant(p *Principal, r Resource) error {
	if r.RestaurantID == 0 && p.RestaurantID == nil {
		return apperr.Invalid("No restaurant context to validate ownership")
	}
	target := r.RestaurantID
	if target == 0 {
		target = *p.RestaurantID
	}
	if !p.BoundTo(target) {
		return apperr.Forbidden("You can only manage resources for your own restaurant")
	}
	return nil
}

// ScopeRestaurant returns the restaurant an operation should act on: the
// requested one, or the principal's own when none was given.
func ScopeRestaurant(p *Principal, requested uint64) uint64 {
	if requested != 0 || p == nil || p.RestaurantID == nil {
		return requested
	}
	return *p.RestaurantID
}
