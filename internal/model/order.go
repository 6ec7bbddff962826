package model

import "time"

// TaxRatePercent is the flat tax applied to every order subtotal.
const TaxRatePercent = 16

// LineItem is one product line of an order. PriceCents is a snapshot of the
// product price taken when the line was added; it is never re-derived.
type LineItem struct {
	ProductID  uint64 `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	Notes      string `json:"notes,omitempty"`
}

// Order is one dine-in transaction.
//
// Fields:
//  ID               – primary key identifier.
//  RestaurantID     – owning restaurant (required).
//  TableID          – table the order belongs to (required).
//  AssignedWaiterID – waiter serving the order (nullable).
//  Items            – ordered line items.
//  Status           – lifecycle status.
//  SubtotalCents    – Σ price×quantity over Items.
//  TaxCents         – TaxRatePercent of the subtotal.
//  TipCents         – tip set by the waiter.
//  TotalCents       – subtotal + tax + tip.
//  Notes            – free-text notes.
//  Version          – optimistic concurrency counter.
type Order struct {
	ID               uint64      `json:"id"`
	RestaurantID     uint64      `json:"restaurant_id"`
	TableID          uint64      `json:"table_id"`
	AssignedWaiterID *uint64     `json:"assigned_waiter_id"`
	Items            []LineItem  `json:"items"`
	Status           OrderStatus `json:"status"`
	SubtotalCents    int64       `json:"subtotal_cents"`
	TaxCents         int64       `json:"tax_cents"`
	TipCents         int64       `json:"tip_cents"`
	TotalCents       int64       `json:"total_cents"`
	Notes            string      `json:"notes,omitempty"`
	Version          uint64      `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Recalculate recomputes subtotal, tax and total from the line items and the
// current tip. Every mutating save calls it, so total never drifts from
// subtotal+tax+tip.
func (o *Order) Recalculate() {
	var subtotal int64
	for _, it := range o.Items {
		subtotal += it.PriceCents * int64(it.Quantity)
	}
	o.SubtotalCents = subtotal
	o.TaxCents = TaxFor(subtotal)
	if o.TipCents < 0 {
		o.TipCents = 0
	}
	o.TotalCents = o.SubtotalCents + o.TaxCents + o.TipCents
}

// TaxFor returns the tax for a subtotal in cents, rounded half up.
func TaxFor(subtotalCents int64) int64 {
	return (subtotalCents*TaxRatePercent + 50) / 100
}

// AddItem increments the quantity of the line for productID or appends a new
// line priced at priceCents.
func (o *Order) AddItem(productID uint64, quantity int, priceCents int64) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items[i].Quantity += quantity
			return
		}
	}
	o.Items = append(o.Items, LineItem{ProductID: productID, Quantity: quantity, PriceCents: priceCents})
}

// Item returns the line for productID.
func (o *Order) Item(productID uint64) (*LineItem, bool) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// RemoveItem drops the line for productID, if any.
func (o *Order) RemoveItem(productID uint64) {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return
		}
	}
}
