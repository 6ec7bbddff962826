package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// RegisterUsers mounts /users. Sign-in and password reset are public; the
// rest needs a valid access token.
func RegisterUsers(api *echo.Group, u *handler.UserHandler, auth, rl echo.MiddlewareFunc) {
	g := api.Group("/users")

	g.POST("/signup", u.Signup, rl)
	g.POST("/login", u.Login, rl)
	g.POST("/refresh", u.Refresh, rl)
	g.POST("/refresh-access", u.RefreshAccess, rl)
	g.POST("/forgotPassword", u.ForgotPassword, rl)
	g.PATCH("/resetPassword/:token", u.ResetPassword, rl)

	g.POST("/logout", u.Logout, auth, rl)
	g.PATCH("/updateMyPassword", u.UpdateMyPassword, auth, rl)
	g.GET("/me", u.Me, auth, rl)
	g.PATCH("/updateMe", u.UpdateMe, auth, rl)
	g.DELETE("/deleteMe", u.DeleteMe, auth, rl)

	waiter := middleware.RequireRole(model.RoleWaiter)
	g.POST("/start-shift", u.StartShift, auth, rl, waiter)
	g.POST("/end-shift", u.EndShift, auth, rl, waiter)

	admin := middleware.RequireRole(model.RoleSuperAdmin, model.RoleRestaurantAdmin)
	g.GET("", u.List, auth, rl, admin)
	g.POST("", u.Create, auth, rl, admin)
	g.GET("/:id", u.Get, auth, rl, admin)
	g.PATCH("/:id", u.Update, auth, rl, admin)
	g.DELETE("/:id", u.Delete, auth, rl, admin)
}
