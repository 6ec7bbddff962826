package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateKeepsTotalsConsistent(t *testing.T) {
	o := &Order{TipCents: 1000}
	o.AddItem(1, 2, 5000)
	o.Recalculate()

	assert.Equal(t, int64(10000), o.SubtotalCents)
	assert.Equal(t, int64(1600), o.TaxCents)
	assert.Equal(t, int64(12600), o.TotalCents)
	assert.Equal(t, o.SubtotalCents+o.TaxCents+o.TipCents, o.TotalCents)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	o := &Order{}
	o.AddItem(1, 2, 5000)
	o.AddItem(2, 1, 300)
	o.AddItem(1, 3, 9999) // price snapshot of the first add is kept

	require.Len(t, o.Items, 2)
	item, ok := o.Item(1)
	require.True(t, ok)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, int64(5000), item.PriceCents)
}

func TestTaxRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(0), TaxFor(0))
	assert.Equal(t, int64(16), TaxFor(100))
	assert.Equal(t, int64(2), TaxFor(10)) // 1.6 -> 2
	assert.Equal(t, int64(0), TaxFor(3))  // 0.48 -> 0
}

func TestStrictTransitions(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusPreparing},
		{StatusConfirmed, StatusPreparing},
		{StatusPreparing, StatusReady},
		{StatusReady, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusReady, StatusCancelled},
	}
	for _, c := range allowed {
		got, err := Transition(Strict, c.from, c.to)
		require.NoError(t, err, "%s -> %s", c.from, c.to)
		assert.Equal(t, c.to, got)
	}

	denied := []struct{ from, to OrderStatus }{
		{StatusPreparing, StatusPending},
		{StatusDelivered, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusPending, StatusDelivered},
		{StatusPreparing, StatusPreparing},
	}
	for _, c := range denied {
		got, err := Transition(Strict, c.from, c.to)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", c.from, c.to)
		assert.Equal(t, c.from, got)
	}
}

func TestPermissiveTransitionsAcceptAnything(t *testing.T) {
	got, err := Transition(Permissive, StatusDelivered, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got)
}

func TestParseOrderStatus(t *testing.T) {
	st, ok := ParseOrderStatus(" Ready ")
	assert.True(t, ok)
	assert.Equal(t, StatusReady, st)
	_, ok = ParseOrderStatus("eaten")
	assert.False(t, ok)
}

func TestParseTableStateAliases(t *testing.T) {
	for in, want := range map[string]TableState{
		"libre": TableFree, "ocupada": TableOccupied, "cuenta": TableAwaitingBill, "awaiting_bill": TableAwaitingBill,
	} {
		got, ok := ParseTableState(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseTableState("dirty")
	assert.False(t, ok)
}

func TestTableAssignAppendsHistory(t *testing.T) {
	tbl := &Table{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl.Assign(10, 99, at)
	tbl.Assign(11, 99, at.Add(time.Minute))

	require.Len(t, tbl.TransferHistory, 2)
	assert.Nil(t, tbl.TransferHistory[0].FromWaiterID)
	require.NotNil(t, tbl.TransferHistory[1].FromWaiterID)
	assert.Equal(t, uint64(10), *tbl.TransferHistory[1].FromWaiterID)
	assert.True(t, tbl.IsAssignedTo(11))
	assert.False(t, tbl.IsAssignedTo(10))
}

func TestNewShiftDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	s := NewShift(start, start.Add(95*time.Minute))
	assert.Equal(t, "2026-03-01", s.Date)
	assert.Equal(t, 95, s.DurationMinutes)
}
