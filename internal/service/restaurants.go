package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// Restaurants administers the tenancy roots.
type Restaurants struct {
	restaurants RestaurantStore
	users       UserStore
}

// NewRestaurants returns the restaurant service.
func NewRestaurants(restaurants RestaurantStore, users UserStore) *Restaurants {
	return &Restaurants{restaurants: restaurants, users: users}
}

// RestaurantInput is the body of restaurant create and update.
type RestaurantInput struct {
	Name        *string    `json:"name"`
	Address     *string    `json:"address"`
	Schedule    *time.Time `json:"schedule"`
	BillingData *string    `json:"billing_data"`
	OwnerID     *uint64    `json:"owner_id"`
	Active      *bool      `json:"active"`
}

func (in RestaurantInput) apply(r *model.Restaurant) {
	if in.Name != nil {
		r.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		r.Address = strings.TrimSpace(*in.Address)
	}
	if in.Schedule != nil {
		r.Schedule = in.Schedule.UTC()
	}
	if in.BillingData != nil {
		r.BillingData = in.BillingData
		if *in.BillingData == "" {
			r.BillingData = nil
		}
	}
	if in.OwnerID != nil {
		r.OwnerID = *in.OwnerID
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
}

// readable lets super-admins read every restaurant and restaurant admins
// their own.
func readable(p *policy.Principal, id uint64) error {
	if p == nil {
		return policy.Authorize(p, policy.ViewRestaurant, policy.Resource{})
	}
	switch p.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleRestaurantAdmin:
		return policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(id))
	}
	return apperr.Forbidden("You do not have permission to perform this action")
}

// List pages restaurants. A restaurant-admin only sees their own.
func (s *Restaurants) List(ctx context.Context, p *policy.Principal, pg repository.Pagination) (Page[*model.Restaurant], error) {
	if err := readable(p, 0); err != nil {
		return Page[*model.Restaurant]{}, err
	}
	if p.Role != model.RoleSuperAdmin {
		r, err := s.restaurants.GetByID(ctx, *p.RestaurantID)
		if err != nil {
			return Page[*model.Restaurant]{}, storeErr(err, "restaurant")
		}
		return newPage([]*model.Restaurant{r}, 1, pg), nil
	}
	items, total, err := s.restaurants.List(ctx, pg)
	if err != nil {
		return Page[*model.Restaurant]{}, storeErr(err, "restaurant")
	}
	return newPage(items, total, pg), nil
}

// Get returns a restaurant visible to the caller.
func (s *Restaurants) Get(ctx context.Context, p *policy.Principal, id uint64) (*model.Restaurant, error) {
	if err := readable(p, id); err != nil {
		return nil, err
	}
	r, err := s.restaurants.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "restaurant")
	}
	return r, nil
}

// Create makes a new restaurant. The owner defaults to the caller and is
// bound to the restaurant when not bound to another one yet.
func (s *Restaurants) Create(ctx context.Context, p *policy.Principal, in RestaurantInput) (*model.Restaurant, error) {
	if err := policy.Authorize(p, policy.Administer, policy.Resource{}); err != nil {
		return nil, err
	}
	r := &model.Restaurant{OwnerID: p.UserID, Active: true}
	in.apply(r)
	if r.Name == "" {
		return nil, apperr.Invalid("A restaurant must have a name")
	}
	owner, err := s.users.GetByID(ctx, r.OwnerID)
	if err != nil {
		return nil, storeErr(err, "owner")
	}
	if err := s.restaurants.Create(ctx, r); err != nil {
		return nil, storeErr(err, "restaurant")
	}
	if owner.RestaurantID == nil && owner.Role == model.RoleRestaurantAdmin {
		id := r.ID
		owner.RestaurantID = &id
		if err := s.users.Update(ctx, owner); err != nil {
			log.Warningf("bind owner %d to restaurant %d: %v", owner.ID, r.ID, err)
		}
	}
	return r, nil
}

// Update applies in to a restaurant.
func (s *Restaurants) Update(ctx context.Context, p *policy.Principal, id uint64, in RestaurantInput) (*model.Restaurant, error) {
	if err := policy.Authorize(p, policy.Administer, policy.Resource{}); err != nil {
		return nil, err
	}
	r, err := s.restaurants.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "restaurant")
	}
	in.apply(r)
	if r.Name == "" {
		return nil, apperr.Invalid("A restaurant must have a name")
	}
	if err := s.restaurants.Update(ctx, r); err != nil {
		return nil, storeErr(err, "restaurant")
	}
	return r, nil
}

// Delete removes the restaurant and everything it owns.
func (s *Restaurants) Delete(ctx context.Context, p *policy.Principal, id uint64) error {
	if err := policy.Authorize(p, policy.Administer, policy.Resource{}); err != nil {
		return err
	}
	return storeErr(s.restaurants.Delete(ctx, id), "restaurant")
}
