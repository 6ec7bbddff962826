package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// RestaurantHandler serves /api/v1/restaurants.
type RestaurantHandler struct {
	Restaurants *service.Restaurants
}

// NewRestaurantHandler returns the restaurant handler.
func NewRestaurantHandler(s *service.Restaurants) *RestaurantHandler {
	return &RestaurantHandler{Restaurants: s}
}

// List handles GET /api/v1/restaurants. A restaurant-admin only sees their own.
func (h *RestaurantHandler) List(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Restaurants.List(ctx, middleware.Principal(c), pg)
	if err != nil {
		return err
	}
	return success(c, page)
}

// Get handles GET /api/v1/restaurants/:id.
func (h *RestaurantHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Restaurants.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, r)
}

// Create handles POST /api/v1/restaurants (super-admin).
func (h *RestaurantHandler) Create(c echo.Context) error {
	var req service.RestaurantInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Restaurants.Create(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, r)
}

// Update handles PATCH /api/v1/restaurants/:id (super-admin).
func (h *RestaurantHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.RestaurantInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Restaurants.Update(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, r)
}

// Delete handles DELETE /api/v1/restaurants/:id (super-admin) and answers 204.
func (h *RestaurantHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Restaurants.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
