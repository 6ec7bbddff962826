package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1062}), ErrDuplicate)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1451}), ErrConflict)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1452}), ErrMissingReference)

	other := errors.New("boom")
	assert.Equal(t, other, classify(other))
}

func TestOrderByWhitelist(t *testing.T) {
	cols := map[string]string{"name": "name", "id": "id"}
	assert.Equal(t, " ORDER BY name DESC, id", orderBy(Pagination{Sort: "-name, bogus ,id"}, cols, "id"))
	assert.Equal(t, " ORDER BY id", orderBy(Pagination{Sort: "password_hash"}, cols, "id"))
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, MaxLimit, Pagination{Limit: 10000}.Normalize().Limit)
	assert.Equal(t, 20, Pagination{Page: 3, Limit: 10}.Offset())
}

func TestCategoryCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs(5, "Drinks").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Drinks'"})

	err := NewCategoryRepo(db).Create(context.Background(), &model.Category{RestaurantID: 5, Name: "Drinks"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestOrderUpdateVersionConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM orders WHERE id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	o := &model.Order{ID: 7, Version: 3, Status: model.StatusPending}
	err := NewOrderRepo(db).Update(context.Background(), o)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, uint64(3), o.Version)
}

func TestOrderUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM orders WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	err := NewOrderRepo(db).Update(context.Background(), &model.Order{ID: 7, Version: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderUpdateRewritesItems(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items WHERE order_id = ?")).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(7, 0, 1, 2, 5000, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o := &model.Order{ID: 7, Version: 1, Items: []model.LineItem{{ProductID: 1, Quantity: 2, PriceCents: 5000}}}
	o.Recalculate()
	require.NoError(t, NewOrderRepo(db).Update(context.Background(), o))
	assert.Equal(t, uint64(2), o.Version)
}

func TestTableTransferAppendsHistory(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE dining_tables")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO table_transfers")).
		WithArgs(4, nil, 9, 2, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tbl := &model.Table{ID: 4, RestaurantID: 1, Name: "T4", Capacity: 2, State: model.TableFree, Version: 1}
	ev := tbl.Assign(9, 2, at)
	require.NoError(t, NewTableRepo(db).Transfer(context.Background(), tbl, ev))
	assert.Equal(t, uint64(2), tbl.Version)
}

func TestProductGetByIDLoadsCategories(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products p WHERE p.id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "restaurant_id", "name", "ingredients", "price_cents", "active", "available", "created_at", "updated_at"}).
			AddRow(1, 5, "Pizza", []byte(`["cheese","tomato"]`), 5000, true, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, category_id FROM product_categories WHERE product_id IN (?)")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "category_id"}).AddRow(1, 3).AddRow(1, 4))

	p, err := NewProductRepo(db).GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"cheese", "tomato"}, p.Ingredients)
	assert.Equal(t, []uint64{3, 4}, p.CategoryIDs)
	assert.Equal(t, int64(5000), p.PriceCents)
}

func TestProductGetByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products p WHERE p.id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewProductRepo(db).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateRefreshRejectsRevoked(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, expires_at, revoked_at FROM refresh_tokens")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(3, time.Now().Add(time.Hour), time.Now()))

	_, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserGetByIDLoadsShifts(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "password_hash", "role", "restaurant_id", "active",
			"password_changed_at", "password_reset_hash", "password_reset_expires", "shift_started_at", "created_at", "updated_at",
		}).AddRow(3, "Ana", "ana@example.com", "hash", "restaurant-waiter", 5, true, nil, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM waiter_shifts WHERE user_id=?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"started_at", "ended_at", "duration_minutes"}).
			AddRow(now, now.Add(2*time.Hour), 120))

	u, err := NewUserRepo(db).GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.RoleWaiter, u.Role)
	require.NotNil(t, u.RestaurantID)
	assert.Equal(t, uint64(5), *u.RestaurantID)
	assert.Nil(t, u.ShiftStartedAt)
	require.Len(t, u.Shifts, 1)
	assert.Equal(t, "2026-04-02", u.Shifts[0].Date)
	assert.Equal(t, 120, u.Shifts[0].DurationMinutes)
}
