package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

func TestChangeStateOnlyByAssignedWaiter(t *testing.T) {
	f := newFixture(t)

	for name, p := range map[string]*policy.Principal{
		"other waiter": f.waiter2,
		"admin":        f.admin,
		"super-admin":  f.super,
	} {
		_, err := f.tables.ChangeState(f.ctx, p, f.table.ID, StateInput{State: "occupied"})
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), name)
	}
	got, err := f.st.Tables.GetByID(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TableFree, got.State, "refused changes leave the table untouched")
	assert.Empty(t, f.rec.names())

	changed, err := f.tables.ChangeState(f.ctx, f.waiter, f.table.ID, StateInput{State: "ocupada"})
	require.NoError(t, err)
	assert.Equal(t, model.TableOccupied, changed.State)
	ev := f.rec.last()
	assert.Equal(t, realtime.EventTableStateChanged, ev.Name)
	assert.Equal(t, []string{"restaurant_1", "waiter_5"}, ev.Channels)

	_, err = f.tables.ChangeState(f.ctx, f.waiter, f.table.ID, StateInput{State: "dirty"})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestAssignAppendsHistory(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	f.tables.now = func() time.Time { return at }

	_, err := f.tables.Assign(f.ctx, f.waiter, f.table.ID, AssignInput{WaiterID: f.waiter2.UserID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.tables.Assign(f.ctx, f.super, f.table.ID, AssignInput{WaiterID: f.waiter2.UserID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "only the supervisor assigns")

	got, err := f.tables.Assign(f.ctx, f.admin, f.table.ID, AssignInput{WaiterID: f.waiter2.UserID})
	require.NoError(t, err)
	assert.True(t, got.IsAssignedTo(f.waiter2.UserID))

	stored, err := f.st.Tables.GetByID(f.ctx, f.table.ID)
	require.NoError(t, err)
	require.Len(t, stored.TransferHistory, 1)
	tr := stored.TransferHistory[0]
	assert.Equal(t, f.waiter.UserID, *tr.FromWaiterID)
	assert.Equal(t, f.waiter2.UserID, tr.ToWaiterID)
	assert.Equal(t, f.admin.UserID, tr.SupervisorID)
	assert.True(t, at.Equal(tr.Timestamp))

	ev := f.rec.last()
	assert.Equal(t, realtime.EventTableTransferred, ev.Name)
	assert.Equal(t, []string{"restaurant_1", "waiter_5", "waiter_6"}, ev.Channels)

	_, err = f.tables.Assign(f.ctx, f.admin, f.table.ID, AssignInput{WaiterID: f.waiter2.UserID})
	assert.Equal(t, apperr.KindRejected, apperr.KindOf(err))
	_, err = f.tables.Assign(f.ctx, f.admin, f.table.ID, AssignInput{WaiterID: f.outside.UserID})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err), "waiter of another restaurant")
	_, err = f.tables.Assign(f.ctx, f.admin, f.table.ID, AssignInput{WaiterID: f.admin.UserID})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err), "not a waiter")

	stored, err = f.st.Tables.GetByID(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Len(t, stored.TransferHistory, 1)
}

func TestTableCRUD(t *testing.T) {
	f := newFixture(t)

	_, err := f.tables.Create(f.ctx, f.admin, TableInput{Name: str("A"), Capacity: intp(2)})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	_, err = f.tables.Create(f.ctx, f.admin, TableInput{Name: str("Patio"), Capacity: intp(0)})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	_, err = f.tables.Create(f.ctx, f.waiter, TableInput{Name: str("Patio"), Capacity: intp(2)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	tbl, err := f.tables.Create(f.ctx, f.admin, TableInput{Name: str("Patio"), Capacity: intp(2), Location: str("terrace")})
	require.NoError(t, err)
	assert.Equal(t, f.rid, tbl.RestaurantID)
	assert.Equal(t, model.TableFree, tbl.State)

	tbl, err = f.tables.Update(f.ctx, f.admin, tbl.ID, TableInput{Capacity: intp(6)})
	require.NoError(t, err)
	assert.Equal(t, 6, tbl.Capacity)
	assert.Equal(t, "Patio", tbl.Name)

	page, err := f.tables.List(f.ctx, f.waiter, repository.TableQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	require.NoError(t, f.tables.Delete(f.ctx, f.admin, tbl.ID))
	f.order(t)
	err = f.tables.Delete(f.ctx, f.admin, f.table.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "tables with orders are kept")
}
