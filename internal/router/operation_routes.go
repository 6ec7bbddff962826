package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterOperations mounts tables and orders. These are never cached.
func RegisterOperations(api *echo.Group, h Handlers, auth, rl echo.MiddlewareFunc) {
	t := api.Group("/tables", auth, rl)
	t.GET("", h.Tables.List)
	t.GET("/:id", h.Tables.Get)
	t.POST("", h.Tables.Create)
	t.PATCH("/:id", h.Tables.Update)
	t.DELETE("/:id", h.Tables.Delete)
	t.PATCH("/:id/state", h.Tables.ChangeState)
	t.PATCH("/:id/assign", h.Tables.Assign)

	o := api.Group("/orders", auth, rl)
	o.GET("", h.Orders.List)
	o.GET("/:id", h.Orders.Get)
	o.POST("", h.Orders.Create)
	o.PATCH("/:id", h.Orders.Patch)
	o.DELETE("/:id", h.Orders.Delete)
	o.POST("/add-item", h.Orders.AddItem)
	o.PATCH("/edit-item", h.Orders.EditItem)
	o.POST("/calculate-totals", h.Orders.CalculateTotals)
	o.POST("/send-to-kitchen", h.Orders.SendToKitchen)
	o.PATCH("/:id/status", h.Orders.UpdateStatus)
}
