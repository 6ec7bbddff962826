package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/policy"
)

// Authenticator resolves a raw access token to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*policy.Principal, *model.User, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or
// the token query parameter for clients that cannot set headers
// (WebSocket upgrades from browsers).
func BearerToken(r *http.Request) string {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// JWTAuth rejects requests without a valid token with 401 and stores the
// principal for handlers otherwise.
func JWTAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				return apperr.Unauthorized("You are not logged in! Please log in to get access")
			}
			p, u, err := a.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			SetPrincipal(c, p, u)
			return next(c)
		}
	}
}
