package model

import "time"

// Category groups products of a restaurant. Names are unique per restaurant.
type Category struct {
	ID           uint64    `json:"id"`
	RestaurantID uint64    `json:"restaurant_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Product is a menu item. Products are soft-deleted: Active is cleared
// instead of removing the row. Available marks temporarily sold-out items;
// orders referencing an inactive or unavailable product are refused.
type Product struct {
	ID           uint64    `json:"id"`
	RestaurantID uint64    `json:"restaurant_id"`
	Name         string    `json:"name"`
	Ingredients  []string  `json:"ingredients"`
	PriceCents   int64     `json:"price_cents"`
	CategoryIDs  []uint64  `json:"category_ids"`
	Active       bool      `json:"active"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Orderable reports whether the product may be put on an order.
func (p *Product) Orderable() bool {
	return p.Active && p.Available
}

// ModifierType is the kind of adjustment a modifier applies.
type ModifierType string

const (
	ModifierExtra      ModifierType = "extra"
	ModifierIngredient ModifierType = "ingredient"
	ModifierSize       ModifierType = "size"
)

// Valid reports whether t is a known modifier type.
func (t ModifierType) Valid() bool {
	switch t {
	case ModifierExtra, ModifierIngredient, ModifierSize:
		return true
	}
	return false
}

// Modifier is a priced adjustment (extra topping, size, removed ingredient).
type Modifier struct {
	ID                   uint64       `json:"id"`
	RestaurantID         uint64       `json:"restaurant_id"`
	Name                 string       `json:"name"`
	Type                 ModifierType `json:"type"`
	Description          string       `json:"description,omitempty"`
	PriceAdjustmentCents int64        `json:"price_adjustment_cents"`
	IsActive             bool         `json:"is_active"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}
