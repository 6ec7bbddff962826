package service

import (
	"context"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// Catalog manages categories, products and modifiers of a restaurant.
type Catalog struct {
	categories CategoryStore
	products   ProductStore
	modifiers  ModifierStore
	notifier   realtime.Notifier
}

// NewCatalog returns the catalog service.
func NewCatalog(categories CategoryStore, products ProductStore, modifiers ModifierStore, n realtime.Notifier) *Catalog {
	if n == nil {
		n = realtime.Discard{}
	}
	return &Catalog{categories: categories, products: products, modifiers: modifiers, notifier: n}
}

// authenticated is the gate for catalog reads.
func authenticated(p *policy.Principal) error {
	if p == nil || p.UserID == 0 {
		return apperr.Unauthorized("You are not logged in! Please log in to get access")
	}
	return nil
}

// ParseActiveFilter maps the ?active= query value. Empty and "true" select
// active rows, "false" inactive ones and "all" both.
func ParseActiveFilter(s string) (*bool, error) {
	yes, no := true, false
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true":
		return &yes, nil
	case "false":
		return &no, nil
	case "all":
		return nil, nil
	}
	return nil, apperr.Invalid("active must be true, false or all")
}

func requireRestaurant(rid uint64, what string) error {
	if rid == 0 {
		return apperr.Invalid("A %s must belong to a restaurant", what)
	}
	return nil
}

// Categories

// CategoryInput is the body of category create and update.
type CategoryInput struct {
	RestaurantID uint64  `json:"restaurant_id"`
	Name         *string `json:"name"`
}

// CreateCategory adds a category. Names are unique per restaurant.
func (s *Catalog) CreateCategory(ctx context.Context, p *policy.Principal, in CategoryInput) (*model.Category, error) {
	rid := policy.ScopeRestaurant(p, in.RestaurantID)
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(rid)); err != nil {
		return nil, err
	}
	if err := requireRestaurant(rid, "category"); err != nil {
		return nil, err
	}
	c := &model.Category{RestaurantID: rid}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if c.Name == "" {
		return nil, apperr.Invalid("A category must have a name")
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, storeErr(err, "category")
	}
	return c, nil
}

// GetCategory returns a category of the caller's restaurant.
func (s *Catalog) GetCategory(ctx context.Context, p *policy.Principal, id uint64) (*model.Category, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "category")
	}
	return c, nil
}

// ListCategories pages categories, scoped to the caller's restaurant.
func (s *Catalog) ListCategories(ctx context.Context, p *policy.Principal, q repository.CategoryQuery) (Page[*model.Category], error) {
	if err := authenticated(p); err != nil {
		return Page[*model.Category]{}, err
	}
	q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
	items, total, err := s.categories.List(ctx, q)
	if err != nil {
		return Page[*model.Category]{}, storeErr(err, "category")
	}
	return newPage(items, total, q.Pagination), nil
}

// UpdateCategory renames a category.
func (s *Catalog) UpdateCategory(ctx context.Context, p *policy.Principal, id uint64, in CategoryInput) (*model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "category")
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(c.RestaurantID)); err != nil {
		return nil, err
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if c.Name == "" {
		return nil, apperr.Invalid("A category must have a name")
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, storeErr(err, "category")
	}
	return c, nil
}

// DeleteCategory removes a category.
func (s *Catalog) DeleteCategory(ctx context.Context, p *policy.Principal, id uint64) error {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "category")
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(c.RestaurantID)); err != nil {
		return err
	}
	return storeErr(s.categories.Delete(ctx, c.ID), "category")
}

// Products

// ProductInput is the body of product create and update. Nil fields are left unchanged.
type ProductInput struct {
	RestaurantID uint64    `json:"restaurant_id"`
	Name         *string   `json:"name"`
	Ingredients  *[]string `json:"ingredients"`
	PriceCents   *int64    `json:"price_cents"`
	CategoryIDs  *[]uint64 `json:"category_ids"`
	Active       *bool     `json:"active"`
	Available    *bool     `json:"available"`
}

func (in ProductInput) apply(pr *model.Product) error {
	if in.Name != nil {
		pr.Name = strings.TrimSpace(*in.Name)
	}
	if in.Ingredients != nil {
		pr.Ingredients = append([]string{}, (*in.Ingredients)...)
	}
	if in.PriceCents != nil {
		pr.PriceCents = *in.PriceCents
	}
	if in.CategoryIDs != nil {
		pr.CategoryIDs = append([]uint64{}, (*in.CategoryIDs)...)
	}
	if in.Active != nil {
		pr.Active = *in.Active
	}
	if in.Available != nil {
		pr.Available = *in.Available
	}
	switch {
	case pr.Name == "":
		return apperr.Invalid("A product must have a name")
	case pr.PriceCents < 0:
		return apperr.Invalid("A product price cannot be negative")
	}
	return nil
}

// CreateProduct adds a product. Names are unique per restaurant.
func (s *Catalog) CreateProduct(ctx context.Context, p *policy.Principal, in ProductInput) (*model.Product, error) {
	rid := policy.ScopeRestaurant(p, in.RestaurantID)
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(rid)); err != nil {
		return nil, err
	}
	if err := requireRestaurant(rid, "product"); err != nil {
		return nil, err
	}
	if in.PriceCents == nil {
		return nil, apperr.Invalid("A product must have a price")
	}
	pr := &model.Product{RestaurantID: rid, Active: true, Available: true, Ingredients: []string{}, CategoryIDs: []uint64{}}
	if err := in.apply(pr); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, pr); err != nil {
		return nil, storeErr(err, "product")
	}
	return pr, nil
}

// GetProduct hides products not matching active (see ParseActiveFilter).
func (s *Catalog) GetProduct(ctx context.Context, p *policy.Principal, id uint64, active *bool) (*model.Product, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	pr, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if active != nil && pr.Active != *active {
		return nil, apperr.NotFound("No product found with that ID")
	}
	return pr, nil
}

// ListProducts pages products. Only active products are listed unless q asks otherwise.
func (s *Catalog) ListProducts(ctx context.Context, p *policy.Principal, q repository.ProductQuery) (Page[*model.Product], error) {
	if err := authenticated(p); err != nil {
		return Page[*model.Product]{}, err
	}
	q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
	items, total, err := s.products.List(ctx, q)
	if err != nil {
		return Page[*model.Product]{}, storeErr(err, "product")
	}
	return newPage(items, total, q.Pagination), nil
}

func (s *Catalog) loadProduct(ctx context.Context, p *policy.Principal, id uint64) (*model.Product, error) {
	pr, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(pr.RestaurantID)); err != nil {
		return nil, err
	}
	return pr, nil
}

// UpdateProduct broadcasts product_unavailable when the product stops being
// orderable.
func (s *Catalog) UpdateProduct(ctx context.Context, p *policy.Principal, id uint64, in ProductInput) (*model.Product, error) {
	pr, err := s.loadProduct(ctx, p, id)
	if err != nil {
		return nil, err
	}
	was := pr.Orderable()
	if err := in.apply(pr); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, pr); err != nil {
		return nil, storeErr(err, "product")
	}
	if was && !pr.Orderable() {
		s.unavailable(ctx, pr)
	}
	return pr, nil
}

// DeleteProduct deactivates the product; the row stays for order history.
func (s *Catalog) DeleteProduct(ctx context.Context, p *policy.Principal, id uint64) error {
	pr, err := s.loadProduct(ctx, p, id)
	if err != nil {
		return err
	}
	if !pr.Active {
		return nil
	}
	was := pr.Orderable()
	pr.Active = false
	if err := s.products.Update(ctx, pr); err != nil {
		return storeErr(err, "product")
	}
	if was {
		s.unavailable(ctx, pr)
	}
	return nil
}

func (s *Catalog) unavailable(ctx context.Context, pr *model.Product) {
	msg := "Product " + pr.Name + " is no longer available"
	notify(ctx, s.notifier, realtime.ProductUnavailable(pr.ID, pr.Name, pr.RestaurantID, msg))
}

// Modifiers are managed and read by restaurant admins only.

// ModifierInput is the body of modifier create and update.
type ModifierInput struct {
	RestaurantID         uint64  `json:"restaurant_id"`
	Name                 *string `json:"name"`
	Type                 *string `json:"type"`
	Description          *string `json:"description"`
	PriceAdjustmentCents *int64  `json:"price_adjustment_cents"`
	IsActive             *bool   `json:"is_active"`
}

// ParseModifierType validates a modifier type name.
func ParseModifierType(s string) (model.ModifierType, error) {
	t := model.ModifierType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperr.Invalid("Invalid modifier type. Must be one of: extra, ingredient, size")
	}
	return t, nil
}

func (in ModifierInput) apply(m *model.Modifier) error {
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		t, err := ParseModifierType(*in.Type)
		if err != nil {
			return err
		}
		m.Type = t
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.PriceAdjustmentCents != nil {
		m.PriceAdjustmentCents = *in.PriceAdjustmentCents
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	switch {
	case m.Name == "":
		return apperr.Invalid("A modifier must have a name")
	case !m.Type.Valid():
		return apperr.Invalid("Invalid modifier type. Must be one of: extra, ingredient, size")
	}
	return nil
}

// CreateModifier adds a modifier of type extra, ingredient or size.
func (s *Catalog) CreateModifier(ctx context.Context, p *policy.Principal, in ModifierInput) (*model.Modifier, error) {
	rid := policy.ScopeRestaurant(p, in.RestaurantID)
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(rid)); err != nil {
		return nil, err
	}
	if err := requireRestaurant(rid, "modifier"); err != nil {
		return nil, err
	}
	m := &model.Modifier{RestaurantID: rid, IsActive: true}
	if err := in.apply(m); err != nil {
		return nil, err
	}
	if err := s.modifiers.Create(ctx, m); err != nil {
		return nil, storeErr(err, "modifier")
	}
	return m, nil
}

func (s *Catalog) loadModifier(ctx context.Context, p *policy.Principal, id uint64) (*model.Modifier, error) {
	m, err := s.modifiers.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "modifier")
	}
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(m.RestaurantID)); err != nil {
		return nil, err
	}
	return m, nil
}

// GetModifier returns a modifier.
func (s *Catalog) GetModifier(ctx context.Context, p *policy.Principal, id uint64) (*model.Modifier, error) {
	return s.loadModifier(ctx, p, id)
}

// ListModifiers pages modifiers by restaurant, type and active flag.
func (s *Catalog) ListModifiers(ctx context.Context, p *policy.Principal, q repository.ModifierQuery) (Page[*model.Modifier], error) {
	q.RestaurantID = policy.ScopeRestaurant(p, q.RestaurantID)
	if err := policy.Authorize(p, policy.ManageRestaurant, policy.Restaurant(q.RestaurantID)); err != nil {
		return Page[*model.Modifier]{}, err
	}
	if q.Type != "" && !q.Type.Valid() {
		return Page[*model.Modifier]{}, apperr.Invalid("Invalid modifier type. Must be one of: extra, ingredient, size")
	}
	items, total, err := s.modifiers.List(ctx, q)
	if err != nil {
		return Page[*model.Modifier]{}, storeErr(err, "modifier")
	}
	return newPage(items, total, q.Pagination), nil
}

// UpdateModifier applies in to a modifier.
func (s *Catalog) UpdateModifier(ctx context.Context, p *policy.Principal, id uint64, in ModifierInput) (*model.Modifier, error) {
	m, err := s.loadModifier(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(m); err != nil {
		return nil, err
	}
	if err := s.modifiers.Update(ctx, m); err != nil {
		return nil, storeErr(err, "modifier")
	}
	return m, nil
}

// DeleteModifier removes a modifier.
func (s *Catalog) DeleteModifier(ctx context.Context, p *policy.Principal, id uint64) error {
	m, err := s.loadModifier(ctx, p, id)
	if err != nil {
		return err
	}
	return storeErr(s.modifiers.Delete(ctx, m.ID), "modifier")
}
