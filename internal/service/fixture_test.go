package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Notify(_ context.Context, ev realtime.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name
	}
	return out
}

func (r *recorder) last() realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	ctx     context.Context
	st      *memory.Store
	rec     *recorder
	orders  *Orders
	tables  *Tables
	catalog *Catalog
	rests   *Restaurants

	rid     uint64
	super   *policy.Principal
	admin   *policy.Principal
	waiter  *policy.Principal
	waiter2 *policy.Principal
	outside *policy.Principal
	table   *model.Table
	burger  *model.Product
	fries   *model.Product
}

func u64(v uint64) *uint64 { return &v }
func i64(v int64) *int64   { return &v }
func intp(v int) *int      { return &v }
func str(v string) *string { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	rec := &recorder{}

	f := &fixture{ctx: ctx, st: st, rec: rec}
	r := &model.Restaurant{Name: "Casa", Active: true}
	require.NoError(t, st.Restaurants.Create(ctx, r))
	other := &model.Restaurant{Name: "Elsewhere", Active: true}
	require.NoError(t, st.Restaurants.Create(ctx, other))
	f.rid = r.ID

	user := func(email string, role model.Role, rid *uint64) *policy.Principal {
		u := &model.User{Name: email, Email: email, Role: role, RestaurantID: rid, Active: true}
		require.NoError(t, st.Users.Create(ctx, u))
		return &policy.Principal{UserID: u.ID, Role: role, RestaurantID: rid}
	}
	f.super = user("root@example.com", model.RoleSuperAdmin, nil)
	f.admin = user("boss@example.com", model.RoleRestaurantAdmin, u64(r.ID))
	f.waiter = user("ana@example.com", model.RoleWaiter, u64(r.ID))
	f.waiter2 = user("luis@example.com", model.RoleWaiter, u64(r.ID))
	f.outside = user("far@example.com", model.RoleWaiter, u64(other.ID))

	f.table = &model.Table{RestaurantID: r.ID, Name: "T1", Capacity: 4, AssignedWaiterID: u64(f.waiter.UserID)}
	require.NoError(t, st.Tables.Create(ctx, f.table))

	f.burger = &model.Product{RestaurantID: r.ID, Name: "Burger", PriceCents: 5000, Active: true, Available: true}
	require.NoError(t, st.Products.Create(ctx, f.burger))
	f.fries = &model.Product{RestaurantID: r.ID, Name: "Fries", PriceCents: 1250, Active: true, Available: true}
	require.NoError(t, st.Products.Create(ctx, f.fries))

	f.orders = NewOrders(st.Orders, st.Tables, st.Products, st.Users, rec, model.Strict)
	f.tables = NewTables(st.Tables, st.Users, rec)
	f.catalog = NewCatalog(st.Categories, st.Products, st.Modifiers, rec)
	f.rests = NewRestaurants(st.Restaurants, st.Users)
	return f
}

// order creates a pending order with two burgers as the waiter.
func (f *fixture) order(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.orders.Create(f.ctx, f.waiter, CreateOrderInput{
		TableID: f.table.ID,
		Items:   []LineInput{{ProductID: f.burger.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	f.rec.reset()
	return o
}
