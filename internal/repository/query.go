package repository

import (
	"strings"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// Default and maximum page sizes for list queries.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Pagination is embedded by every list query. Sort is a comma separated
// list of field names, each optionally prefixed with '-' for descending.
type Pagination struct {
	Page  int
	Limit int
	Sort  string
}

// Normalize clamps page and limit into their valid ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip for the normalized page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// SortKeys parses Sort into (field, descending) pairs.
func (p Pagination) SortKeys() []SortKey {
	var keys []SortKey
	for _, f := range strings.Split(p.Sort, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		k := SortKey{Field: f}
		if strings.HasPrefix(f, "-") {
			k = SortKey{Field: f[1:], Desc: true}
		}
		keys = append(keys, k)
	}
	return keys
}

// SortKey is one parsed sort field.
type SortKey struct {
	Field string
	Desc  bool
}

// orderBy renders an ORDER BY clause from the allowed field->column map.
// Unknown fields are ignored and fallback is used when nothing is left.
func orderBy(p Pagination, columns map[string]string, fallback string) string {
	var parts []string
	for _, k := range p.SortKeys() {
		col, ok := columns[k.Field]
		if !ok {
			continue
		}
		if k.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

type UserQuery struct {
	RestaurantID uint64
	Role         model.Role
	Pagination
}

type CategoryQuery struct {
	RestaurantID uint64
	Pagination
}

// ProductQuery lists products. Active nil means both active and inactive.
type ProductQuery struct {
	RestaurantID uint64
	CategoryID   uint64
	Active       *bool
	Pagination
}

type ModifierQuery struct {
	RestaurantID uint64
	Type         model.ModifierType
	Active       *bool
	Pagination
}

type TableQuery struct {
	RestaurantID uint64
	WaiterID     uint64
	State        model.TableState
	Pagination
}

type OrderQuery struct {
	RestaurantID uint64
	TableID      uint64
	WaiterID     uint64
	Status       model.OrderStatus
	Pagination
}
