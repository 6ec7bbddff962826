package memory

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

type Users struct{ s *Store }

func cloneUser(u *model.User) *model.User {
	v := *u
	v.RestaurantID = ptrCopy(u.RestaurantID)
	v.PasswordChangedAt = ptrCopy(u.PasswordChangedAt)
	v.PasswordResetHash = ptrCopy(u.PasswordResetHash)
	v.PasswordResetExpiry = ptrCopy(u.PasswordResetExpiry)
	v.ShiftStartedAt = ptrCopy(u.ShiftStartedAt)
	v.Shifts = append([]model.Shift(nil), u.Shifts...)
	return &v
}

// emailTaken must be called with s.mu held.
func (u *Users) emailTaken(email string, except uint64) bool {
	for _, usr := range u.s.users {
		if usr.ID != except && usr.Email == email {
			return true
		}
	}
	return false
}

func (u *Users) Create(_ context.Context, usr *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	usr.Email = strings.ToLower(strings.TrimSpace(usr.Email))
	if u.emailTaken(usr.Email, 0) {
		return repository.ErrDuplicate
	}
	if usr.RestaurantID != nil {
		if _, ok := s.restaurants[*usr.RestaurantID]; !ok {
			return repository.ErrMissingReference
		}
	}
	now := s.now()
	usr.ID = s.nextID()
	usr.CreatedAt, usr.UpdatedAt = now, now
	s.users[usr.ID] = cloneUser(usr)
	return nil
}

func (u *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	usr, ok := u.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(usr), nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, usr := range u.s.users {
		if usr.Email == email {
			return cloneUser(usr), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (u *Users) GetByResetHash(_ context.Context, hash string, now time.Time) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, usr := range u.s.users {
		if usr.PasswordResetHash != nil && *usr.PasswordResetHash == hash &&
			usr.PasswordResetExpiry != nil && usr.PasswordResetExpiry.After(now) {
			return cloneUser(usr), nil
		}
	}
	return nil, repository.ErrNotFound
}

var userKeys = map[string]func(a, b *model.User) int{
	"id":         byID(func(u *model.User) uint64 { return u.ID }),
	"name":       func(a, b *model.User) int { return strings.Compare(a.Name, b.Name) },
	"email":      func(a, b *model.User) int { return strings.Compare(a.Email, b.Email) },
	"role":       func(a, b *model.User) int { return strings.Compare(string(a.Role), string(b.Role)) },
	"created_at": func(a, b *model.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (u *Users) List(_ context.Context, q repository.UserQuery) ([]*model.User, int64, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var all []*model.User
	for _, usr := range u.s.users {
		if q.RestaurantID != 0 && (usr.RestaurantID == nil || *usr.RestaurantID != q.RestaurantID) {
			continue
		}
		if q.Role != "" && usr.Role != q.Role {
			continue
		}
		all = append(all, cloneUser(usr))
	}
	return page(all, q.Pagination, userKeys, userKeys["id"]), int64(len(all)), nil
}

// Update writes every mutable field; closed shifts are kept as stored.
func (u *Users) Update(_ context.Context, usr *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[usr.ID]
	if !ok {
		return repository.ErrNotFound
	}
	usr.Email = strings.ToLower(strings.TrimSpace(usr.Email))
	if u.emailTaken(usr.Email, usr.ID) {
		return repository.ErrDuplicate
	}
	next := cloneUser(usr)
	next.Shifts = cur.Shifts
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now()
	s.users[usr.ID] = next
	return nil
}

func (u *Users) CloseShift(_ context.Context, userID uint64, shift model.Shift) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[userID]
	if !ok || cur.ShiftStartedAt == nil {
		return repository.ErrNotFound
	}
	cur.ShiftStartedAt = nil
	cur.Shifts = append(cur.Shifts, shift)
	cur.UpdatedAt = s.now()
	return nil
}

func (u *Users) Delete(_ context.Context, id uint64) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	for hash, tok := range s.tokens {
		if tok.userID == id {
			delete(s.tokens, hash)
		}
	}
	for _, t := range s.tables {
		if t.AssignedWaiterID != nil && *t.AssignedWaiterID == id {
			t.AssignedWaiterID = nil
		}
	}
	for _, o := range s.orders {
		if o.AssignedWaiterID != nil && *o.AssignedWaiterID == id {
			o.AssignedWaiterID = nil
		}
	}
	return nil
}

type Tokens struct{ s *Store }

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tokens[tokenHash]; ok {
		return repository.ErrDuplicate
	}
	t.s.tokens[tokenHash] = refreshToken{userID: userID, expiresAt: exp.UTC()}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	tok, ok := t.s.tokens[tokenHash]
	if !ok || tok.revoked || t.s.now().After(tok.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return tok.userID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if tok, ok := t.s.tokens[tokenHash]; ok {
		tok.revoked = true
		t.s.tokens[tokenHash] = tok
	}
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for hash, tok := range t.s.tokens {
		if tok.userID == userID {
			tok.revoked = true
			t.s.tokens[hash] = tok
		}
	}
	return nil
}
