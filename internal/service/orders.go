package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// Orders runs the order lifecycle.
type Orders struct {
	orders      OrderStore
	tables      TableStore
	products    ProductStore
	users       UserStore
	notifier    realtime.Notifier
	transitions model.TransitionPolicy
}

// NewOrders wires the order service. users resolves assigned waiters.
func NewOrders(orders OrderStore, tables TableStore, products ProductStore, users UserStore, n realtime.Notifier, tp model.TransitionPolicy) *Orders {
	if n == nil {
		n = realtime.Discard{}
	}
	return &Orders{orders: orders, tables: tables, products: products, users: users, notifier: n, transitions: tp}
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

// CreateOrderInput is the body of order creation. The restaurant comes from the table.
type CreateOrderInput struct {
	RestaurantID     uint64      `json:"restaurant_id"`
	TableID          uint64      `json:"table_id"`
	AssignedWaiterID *uint64     `json:"assigned_waiter_id"`
	Items            []LineInput `json:"items"`
	TipCents         int64       `json:"tip_cents"`
	Notes            string      `json:"notes"`
}

// Create opens a pending order. Every referenced product must exist and be
// orderable; otherwise nothing is stored and product_unavailable is sent.
func (s *Orders) Create(ctx context.Context, p *policy.Principal, in CreateOrderInput) (*model.Order, error) {
	if in.TableID == 0 {
		return nil, apperr.Invalid("An order must belong to a table")
	}
	if in.TipCents < 0 {
		return nil, apperr.Invalid("Tip cannot be negative")
	}
	table, err := s.tables.GetByID(ctx, in.TableID)
	if err != nil {
		return nil, storeErr(err, "table")
	}
	if in.RestaurantID != 0 && in.RestaurantID != table.RestaurantID {
		return nil, apperr.Invalid("The table does not belong to restaurant %d", in.RestaurantID)
	}
	rid := table.RestaurantID
	if err := policy.Authorize(p, policy.OperateOrders, policy.Restaurant(rid)); err != nil {
		return nil, err
	}

	o := &model.Order{
		RestaurantID: rid,
		TableID:      table.ID,
		Status:       model.StatusPending,
		TipCents:     in.TipCents,
		Notes:        strings.TrimSpace(in.Notes),
		Items:        []model.LineItem{},
	}
	switch {
	case in.AssignedWaiterID != nil && *in.AssignedWaiterID != 0:
		if _, err := restaurantWaiter(ctx, s.users, *in.AssignedWaiterID, rid); err != nil {
			return nil, err
		}
		id := *in.AssignedWaiterID
		o.AssignedWaiterID = &id
	case p.Role == model.RoleWaiter:
		id := p.UserID
		o.AssignedWaiterID = &id
	default:
		o.AssignedWaiterID = table.AssignedWaiterID
	}

	for _, line := range in.Items {
		if line.Quantity < 1 {
			return nil, apperr.Invalid("Quantity must be at least 1")
		}
		prod, err := s.orderable(ctx, line.ProductID, rid)
		if err != nil {
			return nil, err
		}
		o.AddItem(prod.ID, line.Quantity, prod.PriceCents)
		if line.Notes != "" {
			item, _ := o.Item(prod.ID)
			if item.Notes == "" {
				item.Notes = line.Notes
			}
		}
	}
	o.Recalculate()

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, storeErr(err, "order")
	}
	notify(ctx, s.notifier, realtime.OrderCreated(o))
	return o, nil
}

// orderable loads a product for an order of restaurant rid. Missing or
// unorderable products are broadcast as unavailable.
func (s *Orders) orderable(ctx context.Context, productID, rid uint64) (*model.Product, error) {
	prod, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && prod.RestaurantID != rid) {
		msg := fmt.Sprintf("Product %d not found", productID)
		notify(ctx, s.notifier, realtime.ProductUnavailable(productID, "", rid, msg))
		return nil, apperr.NotFound("%s", msg)
	}
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if !prod.Orderable() {
		msg := fmt.Sprintf("Product %s is not available", prod.Name)
		notify(ctx, s.notifier, realtime.ProductUnavailable(prod.ID, prod.Name, rid, msg))
		return nil, apperr.Rejected("%s", msg)
	}
	return prod, nil
}

// load fetches an order and authorizes action on it.
func (s *Orders) load(ctx context.Context, p *policy.Principal, id uint64, action policy.Action) (*model.Order, error) {
	if p == nil {
		return nil, policy.Authorize(p, action, policy.Resource{})
	}
	if id == 0 {
		return nil, apperr.Invalid("An order id is required")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "order")
	}
	if err := policy.Authorize(p, action, policy.Restaurant(o.RestaurantID)); err != nil {
		return nil, err
	}
	return o, nil
}

// save recalculates, persists and announces o.
func (s *Orders) save(ctx context.Context, o *model.Order, ev func(*model.Order) realtime.Event) error {
	o.Recalculate()
	if err := s.orders.Update(ctx, o); err != nil {
		return storeErr(err, "order")
	}
	notify(ctx, s.notifier, ev(o))
	return nil
}

// Get returns an order of the caller's restaurant.
func (s *Orders) Get(ctx context.Context, p *policy.Principal, id uint64) (*model.Order, error) {
	return s.load(ctx, p, id, policy.OperateOrders)
}

// List scopes staff to their own restaurant unless one is requested.
func (s *Orders) List(ctx context.Context, p *policy.Principal, q repository.OrderQuery) (Page[*model.Order], error) {
	q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
	if err := policy.Authorize(p, policy.OperateOrders, policy.Restaurant(q.RestaurantID)); err != nil {
		return Page[*model.Order]{}, err
	}
	items, total, err := s.orders.List(ctx, q)
	if err != nil {
		return Page[*model.Order]{}, storeErr(err, "order")
	}
	return newPage(items, total, q.Pagination), nil
}

// PatchOrderInput changes order metadata. An assigned waiter of 0 clears the assignment.
type PatchOrderInput struct {
	AssignedWaiterID *uint64 `json:"assigned_waiter_id"`
	TipCents         *int64  `json:"tip_cents"`
	Notes            *string `json:"notes"`
	Version          *uint64 `json:"version"`
}

// Patch updates the assigned waiter, tip or notes and recalculates totals.
func (s *Orders) Patch(ctx context.Context, p *policy.Principal, id uint64, in PatchOrderInput) (*model.Order, error) {
	o, err := s.load(ctx, p, id, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	if in.TipCents != nil {
		if *in.TipCents < 0 {
			return nil, apperr.Invalid("Tip cannot be negative")
		}
		o.TipCents = *in.TipCents
	}
	if in.AssignedWaiterID != nil {
		o.AssignedWaiterID = nil
		if id := *in.AssignedWaiterID; id != 0 {
			if _, err := restaurantWaiter(ctx, s.users, id, o.RestaurantID); err != nil {
				return nil, err
			}
			o.AssignedWaiterID = &id
		}
	}
	if in.Notes != nil {
		o.Notes = strings.TrimSpace(*in.Notes)
	}
	if err := s.save(ctx, o, realtime.OrderUpdated); err != nil {
		return nil, err
	}
	return o, nil
}

// Delete is administrative cleanup by the restaurant's admin.
func (s *Orders) Delete(ctx context.Context, p *policy.Principal, id uint64) error {
	o, err := s.load(ctx, p, id, policy.ManageRestaurant)
	if err != nil {
		return err
	}
	return storeErr(s.orders.Delete(ctx, o.ID), "order")
}

// AddItemInput is the body of add-item.
type AddItemInput struct {
	OrderID   uint64  `json:"order_id"`
	ProductID uint64  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Notes     string  `json:"notes"`
	Version   *uint64 `json:"version"`
}

// AddItem adds a line priced at the product's current price, or bumps the
// quantity of the existing line for that product.
func (s *Orders) AddItem(ctx context.Context, p *policy.Principal, in AddItemInput) (*model.Order, error) {
	if in.ProductID == 0 {
		return nil, apperr.Invalid("A product id is required")
	}
	if in.Quantity < 1 {
		return nil, apperr.Invalid("Quantity must be at least 1")
	}
	o, err := s.load(ctx, p, in.OrderID, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, apperr.Rejected("Cannot change a %s order", o.Status)
	}
	prod, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil || prod.RestaurantID != o.RestaurantID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, storeErr(err, "product")
	}
	if !prod.Orderable() {
		return nil, apperr.Rejected("Product %s is not available", prod.Name)
	}

	o.AddItem(prod.ID, in.Quantity, prod.PriceCents)
	if in.Notes != "" {
		item, _ := o.Item(prod.ID)
		item.Notes = in.Notes
	}
	if err := s.save(ctx, o, realtime.OrderUpdated); err != nil {
		return nil, err
	}
	return o, nil
}

// EditItemInput is the body of edit-item.
type EditItemInput struct {
	OrderID   uint64  `json:"order_id"`
	ProductID uint64  `json:"product_id"`
	Quantity  *int    `json:"quantity"`
	Notes     *string `json:"notes"`
	Version   *uint64 `json:"version"`
}

// EditItem changes quantity and notes of an existing line in place. A
// quantity of zero removes the line.
func (s *Orders) EditItem(ctx context.Context, p *policy.Principal, in EditItemInput) (*model.Order, error) {
	o, err := s.load(ctx, p, in.OrderID, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	item, ok := o.Item(in.ProductID)
	if !ok {
		return nil, apperr.NotFound("Item not found in order")
	}
	if o.Status.Terminal() {
		return nil, apperr.Rejected("Cannot change a %s order", o.Status)
	}
	if in.Notes != nil {
		item.Notes = *in.Notes
	}
	if in.Quantity != nil {
		switch q := *in.Quantity; {
		case q < 0:
			return nil, apperr.Invalid("Quantity cannot be negative")
		case q == 0:
			o.RemoveItem(in.ProductID)
		default:
			item.Quantity = q
		}
	}
	if err := s.save(ctx, o, realtime.OrderUpdated); err != nil {
		return nil, err
	}
	return o, nil
}

// TotalsInput is the body of calculate-totals.
type TotalsInput struct {
	OrderID  uint64  `json:"order_id"`
	TipCents *int64  `json:"tip_cents"`
	Version  *uint64 `json:"version"`
}

// CalculateTotals recomputes and persists subtotal, tax and total,
// replacing the tip when one is given.
func (s *Orders) CalculateTotals(ctx context.Context, p *policy.Principal, in TotalsInput) (*model.Order, error) {
	o, err := s.load(ctx, p, in.OrderID, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	if in.TipCents != nil {
		if *in.TipCents < 0 {
			return nil, apperr.Invalid("Tip cannot be negative")
		}
		o.TipCents = *in.TipCents
	}
	if err := s.save(ctx, o, realtime.OrderUpdated); err != nil {
		return nil, err
	}
	return o, nil
}

// KitchenInput is the body of send-to-kitchen.
type KitchenInput struct {
	OrderID uint64  `json:"order_id"`
	Version *uint64 `json:"version"`
}

// SendToKitchen moves a pending order to preparing. Any other status is
// refused and left untouched.
func (s *Orders) SendToKitchen(ctx context.Context, p *policy.Principal, in KitchenInput) (*model.Order, error) {
	o, err := s.load(ctx, p, in.OrderID, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	if o.Status != model.StatusPending {
		return nil, apperr.Rejected("Order is already in preparation or completed")
	}
	o.Status = model.StatusPreparing
	if err := s.save(ctx, o, realtime.OrderSentToKitchen); err != nil {
		return nil, err
	}
	return o, nil
}

// StatusInput is the body of a status change.
type StatusInput struct {
	Status  string  `json:"status"`
	Version *uint64 `json:"version"`
}

// UpdateStatus sets the order status subject to the configured transition
// policy.
func (s *Orders) UpdateStatus(ctx context.Context, p *policy.Principal, id uint64, in StatusInput) (*model.Order, error) {
	requested, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return nil, apperr.Invalid("Invalid status. Must be one of: %s", statusList())
	}
	o, err := s.load(ctx, p, id, policy.OperateOrders)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(in.Version, o.Version, "order"); err != nil {
		return nil, err
	}
	next, err := model.Transition(s.transitions, o.Status, requested)
	if err != nil {
		return nil, apperr.Rejected("Cannot change status from %s to %s", o.Status, requested)
	}
	o.Status = next
	if err := s.save(ctx, o, realtime.OrderStatusChanged); err != nil {
		return nil, err
	}
	return o, nil
}

func statusList() string {
	names := make([]string, len(model.Statuses))
	for i, st := range model.Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
