package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

func seedRestaurant(t *testing.T, s *Store) *model.Restaurant {
	t.Helper()
	r := &model.Restaurant{Name: "Casa", Address: "Main 1", Schedule: time.Now(), OwnerID: 1, Active: true}
	require.NoError(t, s.Restaurants.Create(context.Background(), r))
	return r
}

func TestProductUniquePerRestaurant(t *testing.T) {
	ctx := context.Background()
	s := New()
	r1, r2 := seedRestaurant(t, s), seedRestaurant(t, s)

	require.NoError(t, s.Products.Create(ctx, &model.Product{RestaurantID: r1.ID, Name: "Pizza", PriceCents: 5000, Active: true}))
	err := s.Products.Create(ctx, &model.Product{RestaurantID: r1.ID, Name: " pizza ", PriceCents: 10})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, s.Products.Create(ctx, &model.Product{RestaurantID: r2.ID, Name: "Pizza", PriceCents: 10}))

	_, total, err := s.Products.List(ctx, repository.ProductQuery{RestaurantID: r1.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProductListFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRestaurant(t, s)
	cat := &model.Category{RestaurantID: r.ID, Name: "Mains"}
	require.NoError(t, s.Categories.Create(ctx, cat))

	on, off := true, false
	require.NoError(t, s.Products.Create(ctx, &model.Product{RestaurantID: r.ID, Name: "B", PriceCents: 200, Active: true, CategoryIDs: []uint64{cat.ID, cat.ID}}))
	require.NoError(t, s.Products.Create(ctx, &model.Product{RestaurantID: r.ID, Name: "A", PriceCents: 100, Active: true}))
	require.NoError(t, s.Products.Create(ctx, &model.Product{RestaurantID: r.ID, Name: "C", PriceCents: 300, Active: false}))

	active, _, err := s.Products.List(ctx, repository.ProductQuery{RestaurantID: r.ID, Active: &on})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].Name)

	inactive, _, _ := s.Products.List(ctx, repository.ProductQuery{Active: &off})
	require.Len(t, inactive, 1)
	assert.Equal(t, "C", inactive[0].Name)

	byCat, _, _ := s.Products.List(ctx, repository.ProductQuery{CategoryID: cat.ID})
	require.Len(t, byCat, 1)
	assert.Equal(t, []uint64{cat.ID}, byCat[0].CategoryIDs)

	sorted, _, _ := s.Products.List(ctx, repository.ProductQuery{Pagination: repository.Pagination{Sort: "-price", Limit: 2}})
	require.Len(t, sorted, 2)
	assert.Equal(t, "C", sorted[0].Name)
	assert.Equal(t, "B", sorted[1].Name)

	err = s.Products.Create(ctx, &model.Product{RestaurantID: r.ID, Name: "D", CategoryIDs: []uint64{999}})
	assert.ErrorIs(t, err, repository.ErrMissingReference)
}

func TestOrderOptimisticVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRestaurant(t, s)
	tbl := &model.Table{RestaurantID: r.ID, Name: "T1", Capacity: 4}
	require.NoError(t, s.Tables.Create(ctx, tbl))

	o := &model.Order{RestaurantID: r.ID, TableID: tbl.ID}
	require.NoError(t, s.Orders.Create(ctx, o))
	assert.Equal(t, uint64(1), o.Version)
	assert.Equal(t, model.StatusPending, o.Status)

	a, _ := s.Orders.GetByID(ctx, o.ID)
	b, _ := s.Orders.GetByID(ctx, o.ID)

	a.TipCents = 100
	require.NoError(t, s.Orders.Update(ctx, a))
	assert.Equal(t, uint64(2), a.Version)

	b.TipCents = 200
	assert.ErrorIs(t, s.Orders.Update(ctx, b), repository.ErrVersionConflict)

	got, _ := s.Orders.GetByID(ctx, o.ID)
	assert.Equal(t, int64(100), got.TipCents)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRestaurant(t, s)
	tbl := &model.Table{RestaurantID: r.ID, Name: "T1", Capacity: 4}
	require.NoError(t, s.Tables.Create(ctx, tbl))

	got, _ := s.Tables.GetByID(ctx, tbl.ID)
	got.Name = "changed"
	again, _ := s.Tables.GetByID(ctx, tbl.ID)
	assert.Equal(t, "T1", again.Name)
}

func TestTableTransferAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRestaurant(t, s)
	tbl := &model.Table{RestaurantID: r.ID, Name: "T1", Capacity: 4}
	require.NoError(t, s.Tables.Create(ctx, tbl))

	ev := tbl.Assign(7, 2, time.Now())
	require.NoError(t, s.Tables.Transfer(ctx, tbl, ev))
	ev = tbl.Assign(8, 2, time.Now())
	require.NoError(t, s.Tables.Transfer(ctx, tbl, ev))

	got, _ := s.Tables.GetByID(ctx, tbl.ID)
	require.Len(t, got.TransferHistory, 2)
	assert.Equal(t, uint64(3), got.Version)
	assert.True(t, got.IsAssignedTo(8))

	require.NoError(t, s.Orders.Create(ctx, &model.Order{RestaurantID: r.ID, TableID: tbl.ID}))
	assert.ErrorIs(t, s.Tables.Delete(ctx, tbl.ID), repository.ErrConflict)
}

func TestRestaurantDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRestaurant(t, s)
	rid := r.ID
	u := &model.User{Name: "Ana", Email: "ANA@example.com", Role: model.RoleWaiter, RestaurantID: &rid, Active: true}
	require.NoError(t, s.Users.Create(ctx, u))
	assert.Equal(t, "ana@example.com", u.Email)
	tbl := &model.Table{RestaurantID: r.ID, Name: "T1", Capacity: 4}
	require.NoError(t, s.Tables.Create(ctx, tbl))
	require.NoError(t, s.Orders.Create(ctx, &model.Order{RestaurantID: r.ID, TableID: tbl.ID}))

	require.NoError(t, s.Restaurants.Delete(ctx, r.ID))
	_, err := s.Tables.GetByID(ctx, tbl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, total, _ := s.Orders.List(ctx, repository.OrderQuery{})
	assert.Zero(t, total)

	got, _ := s.Users.GetByID(ctx, u.ID)
	assert.Nil(t, got.RestaurantID)
}

func TestUserEmailUniqueAndShifts(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Users.Create(ctx, &model.User{Name: "A", Email: "a@x.io", Role: model.RoleUser}))
	assert.ErrorIs(t, s.Users.Create(ctx, &model.User{Name: "B", Email: "A@X.io", Role: model.RoleUser}), repository.ErrDuplicate)

	u, err := s.Users.GetByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Users.CloseShift(ctx, u.ID, model.Shift{}), repository.ErrNotFound)

	start := time.Now().Add(-time.Hour)
	u.ShiftStartedAt = &start
	require.NoError(t, s.Users.Update(ctx, u))
	require.NoError(t, s.Users.CloseShift(ctx, u.ID, model.NewShift(start, time.Now())))

	got, _ := s.Users.GetByID(ctx, u.ID)
	assert.Nil(t, got.ShiftStartedAt)
	require.Len(t, got.Shifts, 1)
	assert.Equal(t, 60, got.Shifts[0].DurationMinutes)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Tokens.StoreRefresh(ctx, 1, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, s.Tokens.StoreRefresh(ctx, 1, "h2", time.Now().Add(-time.Hour)))

	id, err := s.Tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	_, err = s.Tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Tokens.RevokeAllForUser(ctx, 1))
	_, err = s.Tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
