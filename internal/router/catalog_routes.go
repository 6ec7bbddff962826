package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterCatalog mounts restaurants, categories, products and modifiers.
// Every route goes through the response cache, which runs after auth so
// entries are keyed by caller. Reads are served from it and writes
// invalidate it.
func RegisterCatalog(api *echo.Group, h Handlers, auth, rl, cache echo.MiddlewareFunc) {
	r := api.Group("/restaurants", auth, rl)
	r.GET("", h.Restaurants.List, cache)
	r.GET("/:id", h.Restaurants.Get, cache)
	r.POST("", h.Restaurants.Create, cache)
	r.PATCH("/:id", h.Restaurants.Update, cache)
	r.DELETE("/:id", h.Restaurants.Delete, cache)

	cat := h.Catalog
	g := api.Group("/categories", auth, rl)
	g.GET("", cat.ListCategories, cache)
	g.GET("/:id", cat.GetCategory, cache)
	g.POST("", cat.CreateCategory, cache)
	g.PATCH("/:id", cat.UpdateCategory, cache)
	g.DELETE("/:id", cat.DeleteCategory, cache)

	p := api.Group("/products", auth, rl)
	p.GET("", cat.ListProducts, cache)
	p.GET("/:id", cat.GetProduct, cache)
	p.POST("", cat.CreateProduct, cache)
	p.PATCH("/:id", cat.UpdateProduct, cache)
	p.DELETE("/:id", cat.DeleteProduct, cache)

	m := api.Group("/modifiers", auth, rl)
	m.GET("", cat.ListModifiers, cache)
	m.GET("/restaurant/:restaurantId", cat.ListModifiers, cache)
	m.GET("/restaurant/:restaurantId/type/:type", cat.ListModifiers, cache)
	m.GET("/:id", cat.GetModifier, cache)
	m.POST("", cat.CreateModifier, cache)
	m.PATCH("/:id", cat.UpdateModifier, cache)
	m.DELETE("/:id", cat.DeleteModifier, cache)
}
