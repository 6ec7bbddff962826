// Package realtime owns the live fan-out of order and table changes to
// connected dashboards. Connections are grouped into named channels and
// events are delivered at most once, best effort: a client that is not
// connected when an event is emitted never sees it and is expected to
// re-fetch on reconnect.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// Event names of the catalog.
const (
	EventOrderCreated       = "order_created"
	EventOrderUpdated       = "order_updated"
	EventOrderSentToKitchen = "order_sent_to_kitchen"
	EventOrderStatusChanged = "order_status_changed"
	EventTableTransferred   = "table_transferred"
	EventTableStateChanged  = "table_state_changed"
	EventProductUnavailable = "product_unavailable"
)

// GlobalChannel addresses every open connection.
const GlobalChannel = "global"

func RestaurantChannel(id uint64) string { return fmt.Sprintf("restaurant_%d", id) }
func KitchenChannel(id uint64) string    { return fmt.Sprintf("kitchen_%d", id) }
func WaiterChannel(id uint64) string     { return fmt.Sprintf("waiter_%d", id) }

// Event is one notification addressed to a set of channels.
type Event struct {
	Name         string    `json:"event"`
	Channels     []string  `json:"channels"`
	RestaurantID uint64    `json:"restaurant_id,omitempty"`
	Data         any       `json:"data"`
	At           time.Time `json:"at"`
}

// Notifier delivers events to their audience. Implementations are best
// effort; callers log returned errors and never roll back on them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }

func newEvent(name string, restaurantID uint64, data any, channels ...string) Event {
	return Event{Name: name, Channels: channels, RestaurantID: restaurantID, Data: data, At: time.Now().UTC()}
}

// OrderCreated goes to everyone and to the order's restaurant.
func OrderCreated(o *model.Order) Event {
	return newEvent(EventOrderCreated, o.RestaurantID, o, GlobalChannel, RestaurantChannel(o.RestaurantID))
}

// OrderUpdated goes to everyone and to the order's restaurant.
func OrderUpdated(o *model.Order) Event {
	return newEvent(EventOrderUpdated, o.RestaurantID, o, GlobalChannel, RestaurantChannel(o.RestaurantID))
}

// OrderSentToKitchen goes to the kitchen and the restaurant, and globally as
// a fallback for dashboards that did not join a channel.
func OrderSentToKitchen(o *model.Order) Event {
	return newEvent(EventOrderSentToKitchen, o.RestaurantID, o,
		KitchenChannel(o.RestaurantID), RestaurantChannel(o.RestaurantID), GlobalChannel)
}

// OrderStatusChanged also reaches the assigned waiter when there is one.
func OrderStatusChanged(o *model.Order) Event {
	chans := []string{KitchenChannel(o.RestaurantID), RestaurantChannel(o.RestaurantID)}
	if o.AssignedWaiterID != nil {
		chans = append(chans, WaiterChannel(*o.AssignedWaiterID))
	}
	chans = append(chans, GlobalChannel)
	return newEvent(EventOrderStatusChanged, o.RestaurantID, o, chans...)
}

// TablePayload is the data of table events.
type TablePayload struct {
	TableID      uint64           `json:"table_id"`
	RestaurantID uint64           `json:"restaurant_id"`
	State        model.TableState `json:"state,omitempty"`
	FromWaiterID *uint64          `json:"from_waiter_id,omitempty"`
	ToWaiterID   *uint64          `json:"to_waiter_id,omitempty"`
	SupervisorID *uint64          `json:"supervisor_id,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// TableTransferred goes to the restaurant and to both waiters involved.
func TableTransferred(t *model.Table, tr model.TransferEvent) Event {
	chans := []string{RestaurantChannel(t.RestaurantID)}
	if tr.FromWaiterID != nil {
		chans = append(chans, WaiterChannel(*tr.FromWaiterID))
	}
	chans = append(chans, WaiterChannel(tr.ToWaiterID))
	to, sup := tr.ToWaiterID, tr.SupervisorID
	return newEvent(EventTableTransferred, t.RestaurantID, TablePayload{
		TableID:      t.ID,
		RestaurantID: t.RestaurantID,
		FromWaiterID: tr.FromWaiterID,
		ToWaiterID:   &to,
		SupervisorID: &sup,
		Timestamp:    tr.Timestamp,
	}, chans...)
}

// TableStateChanged goes to the restaurant and the assigned waiter.
func TableStateChanged(t *model.Table) Event {
	chans := []string{RestaurantChannel(t.RestaurantID)}
	if t.AssignedWaiterID != nil {
		chans = append(chans, WaiterChannel(*t.AssignedWaiterID))
	}
	return newEvent(EventTableStateChanged, t.RestaurantID, TablePayload{
		TableID:      t.ID,
		RestaurantID: t.RestaurantID,
		State:        t.State,
		Timestamp:    time.Now().UTC(),
	}, chans...)
}

// ProductPayload is the data of product-unavailable events.
type ProductPayload struct {
	ProductID uint64    `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductUnavailable goes to everyone, and to the restaurant when known.
func ProductUnavailable(productID uint64, name string, restaurantID uint64, message string) Event {
	chans := []string{GlobalChannel}
	if restaurantID != 0 {
		chans = append(chans, RestaurantChannel(restaurantID))
	}
	return newEvent(EventProductUnavailable, restaurantID, ProductPayload{
		ProductID: productID,
		Name:      name,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}, chans...)
}
