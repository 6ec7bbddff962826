package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// Tables manages dining tables, their occupancy state and waiter
// assignment.
type Tables struct {
	tables   TableStore
	users    UserStore
	notifier realtime.Notifier
	now      clock
}

// NewTables returns the table service.
func NewTables(tables TableStore, users UserStore, n realtime.Notifier) *Tables {
	if n == nil {
		n = realtime.Discard{}
	}
	return &Tables{tables: tables, users: users, notifier: n, now: utcNow}
}

// TableInput is the body of table create and update.
type TableInput struct {
	RestaurantID uint64  `json:"restaurant_id"`
	Name         *string `json:"name"`
	Capacity     *int    `json:"capacity"`
	Location     *string `json:"location"`
	Version      *uint64 `json:"version"`
}

func validateTable(t *model.Table) error {
	if utf8.RuneCountInString(t.Name) < 2 {
		return apperr.Invalid("A table name must have at least 2 characters")
	}
	if t.Capacity < 1 {
		return apperr.Invalid("A table must seat at least 1 person")
	}
	return nil
}

func (in TableInput) apply(t *model.Table) {
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Capacity != nil {
		t.Capacity = *in.Capacity
	}
	if in.Location != nil {
		t.Location = strings.TrimSpace(*in.Location)
	}
}

// Create adds a table to a restaurant. New tables are free and unassigned.
func (s *Tables) Create(ctx context.Context, p *policy.Principal, in TableInput) (*model.Table, error) {
	rid := policy.ScopeRestaurant(p, in.RestaurantID)
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(rid)); err != nil {
		return nil, err
	}
	if rid == 0 {
		return nil, apperr.Invalid("A table must belong to a restaurant")
	}
	t := &model.Table{RestaurantID: rid, State: model.TableFree, TransferHistory: []model.TransferEvent{}}
	in.apply(t)
	if err := validateTable(t); err != nil {
		return nil, err
	}
	if err := s.tables.Create(ctx, t); err != nil {
		return nil, storeErr(err, "table")
	}
	return t, nil
}

func (s *Tables) load(ctx context.Context, id uint64) (*model.Table, error) {
	t, err := s.tables.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "table")
	}
	return t, nil
}

// Get returns a table of the caller's restaurant.
func (s *Tables) Get(ctx context.Context, p *policy.Principal, id uint64) (*model.Table, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.ViewRestaurant, policy.Restaurant(t.RestaurantID)); err != nil {
		return nil, err
	}
	return t, nil
}

// List pages tables, scoped to the caller's restaurant.
func (s *Tables) List(ctx context.Context, p *policy.Principal, q repository.TableQuery) (Page[*model.Table], error) {
	q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
	if err := policy.Authorize(p, policy.ViewRestaurant, policy.Restaurant(q.RestaurantID)); err != nil {
		return Page[*model.Table]{}, err
	}
	items, total, err := s.tables.List(ctx, q)
	if err != nil {
		return Page[*model.Table]{}, storeErr(err, "table")
	}
	return newPage(items, total, q.Pagination), nil
}

// Update changes name, capacity or location.
func (s *Tables) Update(ctx context.Context, p *policy.Principal, id uint64, in TableInput) (*model.Table, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(t.RestaurantID)); err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, t.Version, "table"); err != nil {
		return nil, err
	}
	in.apply(t)
	if err := validateTable(t); err != nil {
		return nil, err
	}
	if err := s.tables.Update(ctx, t); err != nil {
		return nil, storeErr(err, "table")
	}
	return t, nil
}

// Delete refuses tables that still have orders.
func (s *Tables) Delete(ctx context.Context, p *policy.Principal, id uint64) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(t.RestaurantID)); err != nil {
		return err
	}
	return storeErr(s.tables.Delete(ctx, t.ID), "table")
}

// StateInput is the body of a table state change.
type StateInput struct {
	State   string  `json:"state"`
	Version *uint64 `json:"version"`
}

// ChangeState is reserved to the waiter assigned to the table. A refused
// call leaves the table untouched.
func (s *Tables) ChangeState(ctx context.Context, p *policy.Principal, id uint64, in StateInput) (*model.Table, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{RestaurantID: t.RestaurantID, AssignedWaiterID: t.AssignedWaiterID}
	if err := policy.Authorize(p, policy.ChangeTableState, res); err != nil {
		return nil, err
	}
	st, ok := model.ParseTableState(in.State)
	if !ok {
		return nil, apperr.Invalid("Invalid state. Must be one of: free, occupied, awaiting_bill")
	}
	if err := checkVersion(in.Version, t.Version, "table"); err != nil {
		return nil, err
	}
	t.State = st
	if err := s.tables.Update(ctx, t); err != nil {
		return nil, storeErr(err, "table")
	}
	notify(ctx, s.notifier, realtime.TableStateChanged(t))
	return t, nil
}

// AssignInput is the body of a table assignment.
type AssignInput struct {
	WaiterID uint64  `json:"waiter_id"`
	Version  *uint64 `json:"version"`
}

// Assign moves the table to another waiter of the same restaurant and
// appends a transfer record. Only the restaurant's supervisor may do it.
func (s *Tables) Assign(ctx context.Context, p *policy.Principal, id uint64, in AssignInput) (*model.Table, error) {
	if in.WaiterID == 0 {
		return nil, apperr.Invalid("A waiter id is required")
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.AssignTable, policy.Restaurant(t.RestaurantID)); err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, t.Version, "table"); err != nil {
		return nil, err
	}
	if t.IsAssignedTo(in.WaiterID) {
		return nil, apperr.Rejected("The table is already assigned to that waiter")
	}
	w, err := restaurantWaiter(ctx, s.users, in.WaiterID, t.RestaurantID)
	if err != nil {
		return nil, err
	}

	ev := t.Assign(w.ID, p.UserID, s.now())
	if err := s.tables.Transfer(ctx, t, ev); err != nil {
		return nil, storeErr(err, "table")
	}
	notify(ctx, s.notifier, realtime.TableTransferred(t, ev))
	return t, nil
}
