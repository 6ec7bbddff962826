package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

// TableHandler serves /api/v1/tables.
type TableHandler struct {
	Tables *service.Tables
}

// NewTableHandler returns the table handler.
func NewTableHandler(s *service.Tables) *TableHandler {
	return &TableHandler{Tables: s}
}

// List handles GET /api/v1/tables with restaurant_id, waiter_id and state filters.
func (h *TableHandler) List(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	rid, err := queryID(c, "restaurant_id")
	if err != nil {
		return err
	}
	wid, err := queryID(c, "waiter_id")
	if err != nil {
		return err
	}
	q := repository.TableQuery{RestaurantID: rid, WaiterID: wid, Pagination: pg}
	if raw := c.QueryParam("state"); raw != "" {
		st, ok := model.ParseTableState(raw)
		if !ok {
			return apperr.Invalid("Invalid state: %s", raw)
		}
		q.State = st
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Tables.List(ctx, middleware.Principal(c), q)
	if err != nil {
		return err
	}
	return success(c, page)
}

// Get handles GET /api/v1/tables/:id including the transfer history.
func (h *TableHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tables.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, t)
}

// Create handles POST /api/v1/tables.
func (h *TableHandler) Create(c echo.Context) error {
	var req service.TableInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tables.Create(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, t)
}

// Update handles PATCH /api/v1/tables/:id for name, capacity and location.
func (h *TableHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.TableInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tables.Update(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, t)
}

// Delete handles DELETE /api/v1/tables/:id and answers 204.
func (h *TableHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Tables.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeState is PATCH /tables/:id/state; only the assigned waiter passes.
func (h *TableHandler) ChangeState(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.StateInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tables.ChangeState(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, t)
}

// Assign is PATCH /tables/:id/assign; only a restaurant admin passes.
func (h *TableHandler) Assign(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.AssignInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tables.Assign(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, t)
}
