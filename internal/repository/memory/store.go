// Package memory is an in-process implementation of every store. It keeps
// the same constraints as the MySQL schema (unique keys, foreign keys,
// optimistic versions) and backs STORAGE=memory and the test suites.
package memory

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

// Store holds all collections behind one lock.
type Store struct {
	mu  sync.RWMutex
	seq uint64
	now func() time.Time

	restaurants map[uint64]*model.Restaurant
	users       map[uint64]*model.User
	tokens      map[string]refreshToken
	categories  map[uint64]*model.Category
	products    map[uint64]*model.Product
	modifiers   map[uint64]*model.Modifier
	tables      map[uint64]*model.Table
	orders      map[uint64]*model.Order

	Restaurants *Restaurants
	Users       *Users
	Tokens      *Tokens
	Categories  *Categories
	Products    *Products
	Modifiers   *Modifiers
	Tables      *Tables
	Orders      *Orders
}

type refreshToken struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

func New() *Store {
	s := &Store{
		now:         func() time.Time { return time.Now().UTC() },
		restaurants: make(map[uint64]*model.Restaurant),
		users:       make(map[uint64]*model.User),
		tokens:      make(map[string]refreshToken),
		categories:  make(map[uint64]*model.Category),
		products:    make(map[uint64]*model.Product),
		modifiers:   make(map[uint64]*model.Modifier),
		tables:      make(map[uint64]*model.Table),
		orders:      make(map[uint64]*model.Order),
	}
	s.Restaurants = &Restaurants{s}
	s.Users = &Users{s}
	s.Tokens = &Tokens{s}
	s.Categories = &Categories{s}
	s.Products = &Products{s}
	s.Modifiers = &Modifiers{s}
	s.Tables = &Tables{s}
	s.Orders = &Orders{s}
	return s
}

// nextID must be called with s.mu held.
func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// page sorts items by p.Sort (falling back to fallback) and cuts one page.
func page[T any](items []*T, p repository.Pagination, keys map[string]func(a, b *T) int, fallback func(a, b *T) int) []*T {
	sortKeys := p.SortKeys()
	slices.SortStableFunc(items, func(a, b *T) int {
		for _, k := range sortKeys {
			f, ok := keys[k.Field]
			if !ok {
				continue
			}
			if c := f(a, b); c != 0 {
				if k.Desc {
					return -c
				}
				return c
			}
		}
		return fallback(a, b)
	})

	n := p.Normalize()
	start := n.Offset()
	if start >= len(items) {
		return nil
	}
	end := min(start+n.Limit, len(items))
	return items[start:end]
}

func byID[T any](id func(*T) uint64) func(a, b *T) int {
	return func(a, b *T) int { return cmp.Compare(id(a), id(b)) }
}

func ptrCopy[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
