package memory

import (
	"cmp"
	"context"
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

type Tables struct{ s *Store }

func cloneTable(t *model.Table) *model.Table {
	v := *t
	v.AssignedWaiterID = ptrCopy(t.AssignedWaiterID)
	v.TransferHistory = make([]model.TransferEvent, len(t.TransferHistory))
	for i, ev := range t.TransferHistory {
		ev.FromWaiterID = ptrCopy(ev.FromWaiterID)
		v.TransferHistory[i] = ev
	}
	return &v
}

func (t *Tables) Create(_ context.Context, tbl *model.Table) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[tbl.RestaurantID]; !ok {
		return repository.ErrMissingReference
	}
	if tbl.State == "" {
		tbl.State = model.TableFree
	}
	now := s.now()
	tbl.ID = s.nextID()
	tbl.Version = 1
	tbl.TransferHistory = []model.TransferEvent{}
	tbl.CreatedAt, tbl.UpdatedAt = now, now
	s.tables[tbl.ID] = cloneTable(tbl)
	return nil
}

func (t *Tables) GetByID(_ context.Context, id uint64) (*model.Table, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	tbl, ok := t.s.tables[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTable(tbl), nil
}

var tableKeys = map[string]func(a, b *model.Table) int{
	"id":       byID(func(t *model.Table) uint64 { return t.ID }),
	"name":     func(a, b *model.Table) int { return strings.Compare(a.Name, b.Name) },
	"capacity": func(a, b *model.Table) int { return cmp.Compare(a.Capacity, b.Capacity) },
	"state":    func(a, b *model.Table) int { return strings.Compare(string(a.State), string(b.State)) },
}

// List mirrors the SQL store and leaves the history out.
func (t *Tables) List(_ context.Context, q repository.TableQuery) ([]*model.Table, int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var all []*model.Table
	for _, tbl := range t.s.tables {
		if q.RestaurantID != 0 && tbl.RestaurantID != q.RestaurantID {
			continue
		}
		if q.WaiterID != 0 && !tbl.IsAssignedTo(q.WaiterID) {
			continue
		}
		if q.State != "" && tbl.State != q.State {
			continue
		}
		c := cloneTable(tbl)
		c.TransferHistory = []model.TransferEvent{}
		all = append(all, c)
	}
	return page(all, q.Pagination, tableKeys, tableKeys["id"]), int64(len(all)), nil
}

// save must be called with s.mu held. history controls whether the
// caller's transfer history replaces the stored one.
func (t *Tables) save(tbl *model.Table, history bool) error {
	s := t.s
	cur, ok := s.tables[tbl.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != tbl.Version {
		return repository.ErrVersionConflict
	}
	next := cloneTable(tbl)
	if !history {
		next.TransferHistory = cloneTable(cur).TransferHistory
	}
	next.RestaurantID = cur.RestaurantID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now()
	next.Version = cur.Version + 1
	s.tables[tbl.ID] = next
	tbl.Version = next.Version
	tbl.UpdatedAt = next.UpdatedAt
	return nil
}

func (t *Tables) Update(_ context.Context, tbl *model.Table) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.save(tbl, false)
}

// Transfer stores the new assignment and appends ev to the stored history.
func (t *Tables) Transfer(_ context.Context, tbl *model.Table, ev model.TransferEvent) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tables[tbl.ID]
	if !ok {
		return repository.ErrNotFound
	}
	history := append(cloneTable(cur).TransferHistory, ev)
	next := cloneTable(tbl)
	next.TransferHistory = history
	if err := t.save(next, true); err != nil {
		return err
	}
	tbl.Version = next.Version
	tbl.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete refuses tables that still have orders, like the RESTRICT key.
func (t *Tables) Delete(_ context.Context, id uint64) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[id]; !ok {
		return repository.ErrNotFound
	}
	for _, o := range s.orders {
		if o.TableID == id {
			return repository.ErrConflict
		}
	}
	delete(s.tables, id)
	return nil
}

type Orders struct{ s *Store }

func cloneOrder(o *model.Order) *model.Order {
	v := *o
	v.AssignedWaiterID = ptrCopy(o.AssignedWaiterID)
	v.Items = append([]model.LineItem{}, o.Items...)
	return &v
}

// references must be called with s.mu held.
func (o *Orders) references(ord *model.Order) error {
	s := o.s
	if _, ok := s.restaurants[ord.RestaurantID]; !ok {
		return repository.ErrMissingReference
	}
	if _, ok := s.tables[ord.TableID]; !ok {
		return repository.ErrMissingReference
	}
	for _, it := range ord.Items {
		if _, ok := s.products[it.ProductID]; !ok {
			return repository.ErrMissingReference
		}
	}
	return nil
}

func (o *Orders) Create(_ context.Context, ord *model.Order) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := o.references(ord); err != nil {
		return err
	}
	if ord.Status == "" {
		ord.Status = model.StatusPending
	}
	now := s.now()
	ord.ID = s.nextID()
	ord.Version = 1
	ord.CreatedAt, ord.UpdatedAt = now, now
	stored := cloneOrder(ord)
	s.orders[ord.ID] = stored
	*ord = *cloneOrder(stored)
	return nil
}

func (o *Orders) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	ord, ok := o.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(ord), nil
}

var orderKeys = map[string]func(a, b *model.Order) int{
	"id":         byID(func(o *model.Order) uint64 { return o.ID }),
	"status":     func(a, b *model.Order) int { return strings.Compare(string(a.Status), string(b.Status)) },
	"total":      func(a, b *model.Order) int { return cmp.Compare(a.TotalCents, b.TotalCents) },
	"created_at": func(a, b *model.Order) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *model.Order) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

// newestFirst is the default order listing.
func newestFirst(a, b *model.Order) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (o *Orders) List(_ context.Context, q repository.OrderQuery) ([]*model.Order, int64, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	var all []*model.Order
	for _, ord := range o.s.orders {
		if q.RestaurantID != 0 && ord.RestaurantID != q.RestaurantID {
			continue
		}
		if q.TableID != 0 && ord.TableID != q.TableID {
			continue
		}
		if q.WaiterID != 0 && (ord.AssignedWaiterID == nil || *ord.AssignedWaiterID != q.WaiterID) {
			continue
		}
		if q.Status != "" && ord.Status != q.Status {
			continue
		}
		all = append(all, cloneOrder(ord))
	}
	return page(all, q.Pagination, orderKeys, newestFirst), int64(len(all)), nil
}

func (o *Orders) Update(_ context.Context, ord *model.Order) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[ord.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != ord.Version {
		return repository.ErrVersionConflict
	}
	for _, it := range ord.Items {
		if _, ok := s.products[it.ProductID]; !ok {
			return repository.ErrMissingReference
		}
	}
	next := cloneOrder(ord)
	next.RestaurantID = cur.RestaurantID
	next.TableID = cur.TableID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now()
	next.Version = cur.Version + 1
	s.orders[ord.ID] = next
	ord.Version = next.Version
	ord.UpdatedAt = next.UpdatedAt
	return nil
}

func (o *Orders) Delete(_ context.Context, id uint64) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}
