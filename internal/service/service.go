// Package service implements the business operations behind the HTTP API.
// Services depend on the small store interfaces below, check every mutation
// against the policy gate, persist, and only then notify. Notification
// failures are logged and never undo a write.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/op/go-logging"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

var log = logging.MustGetLogger("service")

type RestaurantStore interface {
	Create(ctx context.Context, r *model.Restaurant) error
	GetByID(ctx context.Context, id uint64) (*model.Restaurant, error)
	List(ctx context.Context, p repository.Pagination) ([]*model.Restaurant, int64, error)
	Update(ctx context.Context, r *model.Restaurant) error
	Delete(ctx context.Context, id uint64) error
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByResetHash(ctx context.Context, hash string, now time.Time) (*model.User, error)
	List(ctx context.Context, q repository.UserQuery) ([]*model.User, int64, error)
	Update(ctx context.Context, u *model.User) error
	CloseShift(ctx context.Context, userID uint64, s model.Shift) error
	Delete(ctx context.Context, id uint64) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type CategoryStore interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id uint64) (*model.Category, error)
	List(ctx context.Context, q repository.CategoryQuery) ([]*model.Category, int64, error)
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id uint64) error
}

type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	List(ctx context.Context, q repository.ProductQuery) ([]*model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error
}

type ModifierStore interface {
	Create(ctx context.Context, m *model.Modifier) error
	GetByID(ctx context.Context, id uint64) (*model.Modifier, error)
	List(ctx context.Context, q repository.ModifierQuery) ([]*model.Modifier, int64, error)
	Update(ctx context.Context, m *model.Modifier) error
	Delete(ctx context.Context, id uint64) error
}

type TableStore interface {
	Create(ctx context.Context, t *model.Table) error
	GetByID(ctx context.Context, id uint64) (*model.Table, error)
	List(ctx context.Context, q repository.TableQuery) ([]*model.Table, int64, error)
	Update(ctx context.Context, t *model.Table) error
	Transfer(ctx context.Context, t *model.Table, ev model.TransferEvent) error
	Delete(ctx context.Context, id uint64) error
}

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	List(ctx context.Context, q repository.OrderQuery) ([]*model.Order, int64, error)
	Update(ctx context.Context, o *model.Order) error
	Delete(ctx context.Context, id uint64) error
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func newPage[T any](items []T, total int64, p repository.Pagination) Page[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: n.Page, Limit: n.Limit}
}

// storeErr classifies a store failure for entity what.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("No %s found with that ID", what)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Duplicate("A %s with that name already exists", what)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("The %s was modified by someone else, reload and try again", what)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("The %s is still referenced by other records", what)
	case errors.Is(err, repository.ErrMissingReference):
		return apperr.Invalid("The %s references a record that does not exist", what)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(err, "Something went very wrong!")
}

// checkVersion rejects a stale expected version before any write.
func checkVersion(expected *uint64, current uint64, what string) error {
	if expected != nil && *expected != current {
		return apperr.Conflict("The %s was modified by someone else, reload and try again", what)
	}
	return nil
}

// restaurantWaiter loads user id and requires it to be an active waiter of
// restaurant rid.
func restaurantWaiter(ctx context.Context, users UserStore, id, rid uint64) (*model.User, error) {
	w, err := users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Invalid("User %d is not an active waiter of this restaurant", id)
	}
	if err != nil {
		return nil, storeErr(err, "waiter")
	}
	if w.Role != model.RoleWaiter || w.RestaurantID == nil || *w.RestaurantID != rid || !w.Active {
		return nil, apperr.Invalid("User %d is not an active waiter of this restaurant", w.ID)
	}
	return w, nil
}

// notify hands ev to n without tying it to the request lifetime.
func notify(ctx context.Context, n realtime.Notifier, ev realtime.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(context.WithoutCancel(ctx), ev); err != nil {
		log.Warningf("notify %s failed: %v", ev.Name, err)
	}
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
