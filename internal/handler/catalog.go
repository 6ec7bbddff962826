package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// CatalogHandler serves categories, products and modifiers.
type CatalogHandler struct {
	Catalog *service.Catalog
}

// NewCatalogHandler returns the handler for categories, products and modifiers.
func NewCatalogHandler(s *service.Catalog) *CatalogHandler {
	return &CatalogHandler{Catalog: s}
}

// ----- categories -----

// ListCategories handles GET /api/v1/categories and returns a page of categories, optionally filtered by restaurant_id.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	rid, err := queryID(c, "restaurant_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Catalog.ListCategories(ctx, middleware.Principal(c), repository.CategoryQuery{RestaurantID: rid, Pagination: pg})
	if err != nil {
		return err
	}
	return success(c, page)
}

// GetCategory handles GET /api/v1/categories/:id.
func (h *CatalogHandler) GetCategory(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.GetCategory(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, cat)
}

// CreateCategory handles POST /api/v1/categories and creates a category for a restaurant.
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req service.CategoryInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.CreateCategory(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, cat)
}

// UpdateCategory handles PATCH /api/v1/categories/:id.
func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.CategoryInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.UpdateCategory(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, cat)
}

// DeleteCategory handles DELETE /api/v1/categories/:id and answers 204.
func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteCategory(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- products -----

// ListProducts shows active products unless ?active=false or ?active=all.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	active, err := service.ParseActiveFilter(c.QueryParam("active"))
	if err != nil {
		return err
	}
	rid, err := queryID(c, "restaurant_id")
	if err != nil {
		return err
	}
	cid, err := queryID(c, "category_id")
	if err != nil {
		return err
	}
	q := repository.ProductQuery{RestaurantID: rid, CategoryID: cid, Active: active, Pagination: pg}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Catalog.ListProducts(ctx, middleware.Principal(c), q)
	if err != nil {
		return err
	}
	return success(c, page)
}

// GetProduct handles GET /api/v1/products/:id. Inactive products are hidden unless ?active=false or all.
func (h *CatalogHandler) GetProduct(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	active, err := service.ParseActiveFilter(c.QueryParam("active"))
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Catalog.GetProduct(ctx, middleware.Principal(c), id, active)
	if err != nil {
		return err
	}
	return success(c, p)
}

// CreateProduct handles POST /api/v1/products.
func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	var req service.ProductInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Catalog.CreateProduct(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, p)
}

// UpdateProduct handles PATCH /api/v1/products/:id. Deactivating a product or marking it unavailable is broadcast.
func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.ProductInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Catalog.UpdateProduct(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, p)
}

// DeleteProduct deactivates the product.
func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteProduct(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- modifiers -----

// ListModifiers serves /modifiers, /modifiers/restaurant/:restaurantId and
// /modifiers/restaurant/:restaurantId/type/:type. Path values win over
// query parameters.
func (h *CatalogHandler) ListModifiers(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	q := repository.ModifierQuery{Pagination: pg}
	if c.Param("restaurantId") != "" {
		if q.RestaurantID, err = idParam(c, "restaurantId"); err != nil {
			return err
		}
	} else if q.RestaurantID, err = queryID(c, "restaurant_id"); err != nil {
		return err
	}

	typ := c.Param("type")
	if typ == "" {
		typ = c.QueryParam("type")
	}
	if typ != "" {
		// validated by the service so the message lists the valid types
		q.Type = model.ModifierType(strings.ToLower(typ))
	}
	if raw := c.QueryParam("is_active"); raw != "" {
		if q.Active, err = service.ParseActiveFilter(raw); err != nil {
			return err
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Catalog.ListModifiers(ctx, middleware.Principal(c), q)
	if err != nil {
		return err
	}
	return success(c, page)
}

// GetModifier handles GET /api/v1/modifiers/:id.
func (h *CatalogHandler) GetModifier(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Catalog.GetModifier(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, m)
}

// CreateModifier handles POST /api/v1/modifiers.
func (h *CatalogHandler) CreateModifier(c echo.Context) error {
	var req service.ModifierInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Catalog.CreateModifier(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, m)
}

// UpdateModifier handles PATCH /api/v1/modifiers/:id.
func (h *CatalogHandler) UpdateModifier(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.ModifierInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Catalog.UpdateModifier(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, m)
}

// DeleteModifier handles DELETE /api/v1/modifiers/:id and answers 204.
func (h *CatalogHandler) DeleteModifier(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteModifier(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
