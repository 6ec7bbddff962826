package model

import "time"

// Restaurant is the tenancy root. Users, tables, products, categories,
// modifiers and orders each reference exactly one restaurant.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name.
//  Address     – street address.
//  Schedule    – opening schedule reference time.
//  BillingData – optional billing/tax details.
//  OwnerID     – user that owns the restaurant.
//  Active      – whether the restaurant is active.
type Restaurant struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Schedule    time.Time `json:"schedule"`
	BillingData *string   `json:"billing_data,omitempty"`
	OwnerID     uint64    `json:"owner_id"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
