package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// RequireRole lets the request through only when the principal set by
// JWTAuth has one of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return apperr.Unauthorized("You are not logged in! Please log in to get access")
			}
			if !allowed[p.Role] {
				return apperr.Forbidden("You do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
