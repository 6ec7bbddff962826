package model

import "time"

// Role is the single role every account carries.
type Role string

const (
	RoleSuperAdmin      Role = "super-admin"
	RoleRestaurantAdmin Role = "restaurant-admin"
	RoleWaiter          Role = "restaurant-waiter"
	RoleUser            Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleRestaurantAdmin, RoleWaiter, RoleUser:
		return true
	}
	return false
}

// User represents an account. Waiters additionally carry an open shift start
// (nil when off shift) and their closed shifts.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – display name.
//  Email             – unique, lower-cased email address.
//  PasswordHash      – bcrypt hash, never serialized.
//  Role              – account role.
//  RestaurantID      – bound restaurant (nullable).
//  Active            – false once the account was deactivated.
//  PasswordChangedAt – last password change; tokens issued earlier are rejected.
//  ShiftStartedAt    – start of the currently open shift (nullable).
type User struct {
	ID                  uint64     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                Role       `json:"role"`
	RestaurantID        *uint64    `json:"restaurant_id,omitempty"`
	Active              bool       `json:"active"`
	PasswordChangedAt   *time.Time `json:"-"`
	PasswordResetHash   *string    `json:"-"`
	PasswordResetExpiry *time.Time `json:"-"`
	ShiftStartedAt      *time.Time `json:"shift_started_at,omitempty"`
	Shifts              []Shift    `json:"shifts,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Shift is a closed waiter shift.
type Shift struct {
	Date            string    `json:"date"` // YYYY-MM-DD of the shift start (UTC)
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// NewShift closes a shift that started at start and ended at end.
func NewShift(start, end time.Time) Shift {
	return Shift{
		Date:            start.UTC().Format("2006-01-02"),
		Start:           start.UTC(),
		End:             end.UTC(),
		DurationMinutes: int(end.Sub(start).Minutes()),
	}
}

// PasswordChangedAfter reports whether the password changed after the token
// issue time iat.
func (u *User) PasswordChangedAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(time.Second).After(iat)
}
