package model

import (
	"errors"
	"strings"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled,
}

// ParseOrderStatus validates s against the fixed status set.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TransitionPolicy selects how strictly status updates are checked.
type TransitionPolicy int

const (
	// Strict only allows forward moves along the lifecycle and cancellation
	// from non-terminal states.
	Strict TransitionPolicy = iota
	// Permissive accepts any known status regardless of the current one.
	Permissive
)

// ParseTransitionPolicy maps "strict"/"permissive" to a policy; anything else
// is Strict.
func ParseTransitionPolicy(s string) TransitionPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "permissive") {
		return Permissive
	}
	return Strict
}

// ErrInvalidTransition is returned by Transition when the move is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// pending may jump straight to preparing: that is the send-to-kitchen move.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusPreparing, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDelivered, StatusCancelled},
}

// Transition decides whether an order in status current may move to
// requested under policy.
func Transition(policy TransitionPolicy, current, requested OrderStatus) (OrderStatus, error) {
	if policy == Permissive {
		return requested, nil
	}
	for _, next := range transitions[current] {
		if next == requested {
			return requested, nil
		}
	}
	return current, ErrInvalidTransition
}
