package model

import (
	"strings"
	"time"
)

// TableState is the occupancy state of a dining table.
type TableState string

const (
	TableFree         TableState = "free"
	TableOccupied     TableState = "occupied"
	TableAwaitingBill TableState = "awaiting_bill"
)

// tableStateAliases accepts the Spanish wire values used by older clients.
var tableStateAliases = map[string]TableState{
	"free":          TableFree,
	"libre":         TableFree,
	"occupied":      TableOccupied,
	"ocupada":       TableOccupied,
	"awaiting_bill": TableAwaitingBill,
	"awaiting-bill": TableAwaitingBill,
	"cuenta":        TableAwaitingBill,
}

// ParseTableState normalizes s into a TableState.
func ParseTableState(s string) (TableState, bool) {
	st, ok := tableStateAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Table is a physical seating unit of a restaurant.
//
// Fields:
//  ID               – primary key identifier.
//  RestaurantID     – owning restaurant.
//  Name             – label shown to staff (at least 2 characters).
//  Capacity         – number of seats (at least 1).
//  Location         – free-text area description (terrace, hall...).
//  State            – occupancy state.
//  AssignedWaiterID – waiter currently responsible (nullable).
//  TransferHistory  – append-only list of assignment changes.
//  Version          – optimistic concurrency counter.
type Table struct {
	ID               uint64          `json:"id"`
	RestaurantID     uint64          `json:"restaurant_id"`
	Name             string          `json:"name"`
	Capacity         int             `json:"capacity"`
	Location         string          `json:"location"`
	State            TableState      `json:"state"`
	AssignedWaiterID *uint64         `json:"assigned_waiter_id"`
	TransferHistory  []TransferEvent `json:"transfer_history"`
	Version          uint64          `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TransferEvent records one assignment change of a table.
type TransferEvent struct {
	FromWaiterID *uint64   `json:"from_waiter_id"`
	ToWaiterID   uint64    `json:"to_waiter_id"`
	SupervisorID uint64    `json:"supervisor_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsAssignedTo reports whether waiterID is the table's current waiter.
func (t *Table) IsAssignedTo(waiterID uint64) bool {
	return t.AssignedWaiterID != nil && *t.AssignedWaiterID == waiterID
}

// Assign moves the table to waiter to and appends the transfer record.
// The history is only ever appended to.
func (t *Table) Assign(to, supervisor uint64, at time.Time) TransferEvent {
	ev := TransferEvent{
		FromWaiterID: t.AssignedWaiterID,
		ToWaiterID:   to,
		SupervisorID: supervisor,
		Timestamp:    at.UTC(),
	}
	next := to
	t.AssignedWaiterID = &next
	t.TransferHistory = append(t.TransferHistory, ev)
	return ev
}
