package middleware

// identity.go holds the context keys set by JWTAuth and the accessors
// handlers and other middleware use to read them.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
)

const (
	principalKey = "principal"
	userKey      = "user"
)

// Principal returns the authenticated principal, or nil.
func Principal(c echo.Context) *policy.Principal {
	p, _ := c.Get(principalKey).(*policy.Principal)
	return p
}

// CurrentUser returns the user loaded by JWTAuth, or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// SetPrincipal stores p and u on the context.
func SetPrincipal(c echo.Context, p *policy.Principal, u *model.User) {
	c.Set(principalKey, p)
	c.Set(userKey, u)
}

// userID is the cache and rate-limit identity of the caller: the user id,
// or "guest" when unauthenticated.
func userID(c echo.Context) string {
	if p := Principal(c); p != nil && p.UserID != 0 {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "guest"
}
