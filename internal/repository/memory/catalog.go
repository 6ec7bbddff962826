package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

type Restaurants struct{ s *Store }

func cloneRestaurant(r *model.Restaurant) *model.Restaurant {
	c := *r
	c.BillingData = ptrCopy(r.BillingData)
	return &c
}

func (r *Restaurants) Create(_ context.Context, rest *model.Restaurant) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rest.ID = s.nextID()
	rest.CreatedAt, rest.UpdatedAt = now, now
	s.restaurants[rest.ID] = cloneRestaurant(rest)
	return nil
}

func (r *Restaurants) GetByID(_ context.Context, id uint64) (*model.Restaurant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rest, ok := r.s.restaurants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRestaurant(rest), nil
}

var restaurantKeys = map[string]func(a, b *model.Restaurant) int{
	"id":         byID(func(r *model.Restaurant) uint64 { return r.ID }),
	"name":       func(a, b *model.Restaurant) int { return strings.Compare(a.Name, b.Name) },
	"created_at": func(a, b *model.Restaurant) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *Restaurants) List(_ context.Context, p repository.Pagination) ([]*model.Restaurant, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*model.Restaurant
	for _, rest := range r.s.restaurants {
		all = append(all, cloneRestaurant(rest))
	}
	return page(all, p, restaurantKeys, restaurantKeys["id"]), int64(len(all)), nil
}

func (r *Restaurants) Update(_ context.Context, rest *model.Restaurant) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.restaurants[rest.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rest.CreatedAt = cur.CreatedAt
	rest.UpdatedAt = s.now()
	s.restaurants[rest.ID] = cloneRestaurant(rest)
	return nil
}

// Delete cascades to everything the restaurant owns.
func (r *Restaurants) Delete(_ context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.restaurants, id)
	for k, v := range s.orders {
		if v.RestaurantID == id {
			delete(s.orders, k)
		}
	}
	for k, v := range s.tables {
		if v.RestaurantID == id {
			delete(s.tables, k)
		}
	}
	for k, v := range s.products {
		if v.RestaurantID == id {
			delete(s.products, k)
		}
	}
	for k, v := range s.categories {
		if v.RestaurantID == id {
			delete(s.categories, k)
		}
	}
	for k, v := range s.modifiers {
		if v.RestaurantID == id {
			delete(s.modifiers, k)
		}
	}
	for _, u := range s.users {
		if u.RestaurantID != nil && *u.RestaurantID == id {
			u.RestaurantID = nil
		}
	}
	return nil
}

type Categories struct{ s *Store }

func cloneCategory(c *model.Category) *model.Category {
	v := *c
	return &v
}

// taken must be called with s.mu held.
func (c *Categories) taken(restaurantID uint64, name string, except uint64) bool {
	for _, cat := range c.s.categories {
		if cat.ID != except && cat.RestaurantID == restaurantID && sameName(cat.Name, name) {
			return true
		}
	}
	return false
}

func (c *Categories) Create(_ context.Context, cat *model.Category) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[cat.RestaurantID]; !ok {
		return repository.ErrMissingReference
	}
	if c.taken(cat.RestaurantID, cat.Name, 0) {
		return repository.ErrDuplicate
	}
	now := s.now()
	cat.ID = s.nextID()
	cat.CreatedAt, cat.UpdatedAt = now, now
	s.categories[cat.ID] = cloneCategory(cat)
	return nil
}

func (c *Categories) GetByID(_ context.Context, id uint64) (*model.Category, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	cat, ok := c.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCategory(cat), nil
}

var categoryKeys = map[string]func(a, b *model.Category) int{
	"id":         byID(func(c *model.Category) uint64 { return c.ID }),
	"name":       func(a, b *model.Category) int { return strings.Compare(a.Name, b.Name) },
	"created_at": func(a, b *model.Category) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (c *Categories) List(_ context.Context, q repository.CategoryQuery) ([]*model.Category, int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var all []*model.Category
	for _, cat := range c.s.categories {
		if q.RestaurantID != 0 && cat.RestaurantID != q.RestaurantID {
			continue
		}
		all = append(all, cloneCategory(cat))
	}
	return page(all, q.Pagination, categoryKeys, categoryKeys["name"]), int64(len(all)), nil
}

func (c *Categories) Update(_ context.Context, cat *model.Category) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[cat.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.taken(cur.RestaurantID, cat.Name, cat.ID) {
		return repository.ErrDuplicate
	}
	cur.Name = cat.Name
	cur.UpdatedAt = s.now()
	*cat = *cloneCategory(cur)
	return nil
}

func (c *Categories) Delete(_ context.Context, id uint64) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.categories, id)
	for _, p := range s.products {
		p.CategoryIDs = slices.DeleteFunc(p.CategoryIDs, func(cid uint64) bool { return cid == id })
	}
	return nil
}

type Products struct{ s *Store }

func cloneProduct(p *model.Product) *model.Product {
	v := *p
	v.Ingredients = append([]string{}, p.Ingredients...)
	v.CategoryIDs = append([]uint64{}, p.CategoryIDs...)
	return &v
}

func (p *Products) taken(restaurantID uint64, name string, except uint64) bool {
	for _, prod := range p.s.products {
		if prod.ID != except && prod.RestaurantID == restaurantID && sameName(prod.Name, name) {
			return true
		}
	}
	return false
}

// links dedupes and sorts categoryIDs and checks they exist. Called with
// s.mu held.
func (p *Products) links(categoryIDs []uint64) ([]uint64, error) {
	out := slices.Clone(categoryIDs)
	slices.Sort(out)
	out = slices.Compact(out)
	for _, cid := range out {
		if _, ok := p.s.categories[cid]; !ok {
			return nil, repository.ErrMissingReference
		}
	}
	return out, nil
}

func (p *Products) Create(_ context.Context, prod *model.Product) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[prod.RestaurantID]; !ok {
		return repository.ErrMissingReference
	}
	if p.taken(prod.RestaurantID, prod.Name, 0) {
		return repository.ErrDuplicate
	}
	links, err := p.links(prod.CategoryIDs)
	if err != nil {
		return err
	}
	now := s.now()
	prod.ID = s.nextID()
	prod.CategoryIDs = links
	prod.CreatedAt, prod.UpdatedAt = now, now
	stored := cloneProduct(prod)
	s.products[prod.ID] = stored
	*prod = *cloneProduct(stored)
	return nil
}

func (p *Products) GetByID(_ context.Context, id uint64) (*model.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	prod, ok := p.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProduct(prod), nil
}

var productKeys = map[string]func(a, b *model.Product) int{
	"id":         byID(func(p *model.Product) uint64 { return p.ID }),
	"name":       func(a, b *model.Product) int { return strings.Compare(a.Name, b.Name) },
	"price":      func(a, b *model.Product) int { return cmp.Compare(a.PriceCents, b.PriceCents) },
	"created_at": func(a, b *model.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (p *Products) List(_ context.Context, q repository.ProductQuery) ([]*model.Product, int64, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	var all []*model.Product
	for _, prod := range p.s.products {
		if q.RestaurantID != 0 && prod.RestaurantID != q.RestaurantID {
			continue
		}
		if q.Active != nil && prod.Active != *q.Active {
			continue
		}
		if q.CategoryID != 0 && !slices.Contains(prod.CategoryIDs, q.CategoryID) {
			continue
		}
		all = append(all, cloneProduct(prod))
	}
	return page(all, q.Pagination, productKeys, productKeys["name"]), int64(len(all)), nil
}

func (p *Products) Update(_ context.Context, prod *model.Product) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[prod.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.taken(cur.RestaurantID, prod.Name, prod.ID) {
		return repository.ErrDuplicate
	}
	links, err := p.links(prod.CategoryIDs)
	if err != nil {
		return err
	}
	prod.RestaurantID = cur.RestaurantID
	prod.CategoryIDs = links
	prod.CreatedAt = cur.CreatedAt
	prod.UpdatedAt = s.now()
	s.products[prod.ID] = cloneProduct(prod)
	return nil
}

type Modifiers struct{ s *Store }

func cloneModifier(m *model.Modifier) *model.Modifier {
	v := *m
	return &v
}

func (m *Modifiers) taken(restaurantID uint64, name string, except uint64) bool {
	for _, mod := range m.s.modifiers {
		if mod.ID != except && mod.RestaurantID == restaurantID && sameName(mod.Name, name) {
			return true
		}
	}
	return false
}

func (m *Modifiers) Create(_ context.Context, mod *model.Modifier) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[mod.RestaurantID]; !ok {
		return repository.ErrMissingReference
	}
	if m.taken(mod.RestaurantID, mod.Name, 0) {
		return repository.ErrDuplicate
	}
	now := s.now()
	mod.ID = s.nextID()
	mod.CreatedAt, mod.UpdatedAt = now, now
	s.modifiers[mod.ID] = cloneModifier(mod)
	return nil
}

func (m *Modifiers) GetByID(_ context.Context, id uint64) (*model.Modifier, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	mod, ok := m.s.modifiers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneModifier(mod), nil
}

var modifierKeys = map[string]func(a, b *model.Modifier) int{
	"id":    byID(func(m *model.Modifier) uint64 { return m.ID }),
	"name":  func(a, b *model.Modifier) int { return strings.Compare(a.Name, b.Name) },
	"type":  func(a, b *model.Modifier) int { return strings.Compare(string(a.Type), string(b.Type)) },
	"price": func(a, b *model.Modifier) int { return cmp.Compare(a.PriceAdjustmentCents, b.PriceAdjustmentCents) },
}

func (m *Modifiers) List(_ context.Context, q repository.ModifierQuery) ([]*model.Modifier, int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var all []*model.Modifier
	for _, mod := range m.s.modifiers {
		if q.RestaurantID != 0 && mod.RestaurantID != q.RestaurantID {
			continue
		}
		if q.Type != "" && mod.Type != q.Type {
			continue
		}
		if q.Active != nil && mod.IsActive != *q.Active {
			continue
		}
		all = append(all, cloneModifier(mod))
	}
	return page(all, q.Pagination, modifierKeys, modifierKeys["name"]), int64(len(all)), nil
}

func (m *Modifiers) Update(_ context.Context, mod *model.Modifier) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.modifiers[mod.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.taken(cur.RestaurantID, mod.Name, mod.ID) {
		return repository.ErrDuplicate
	}
	mod.RestaurantID = cur.RestaurantID
	mod.CreatedAt = cur.CreatedAt
	mod.UpdatedAt = s.now()
	s.modifiers[mod.ID] = cloneModifier(mod)
	return nil
}

func (m *Modifiers) Delete(_ context.Context, id uint64) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modifiers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.modifiers, id)
	return nil
}
