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

// OrderHandler serves /api/v1/orders.
type OrderHandler struct {
	Orders *service.Orders
}

// NewOrderHandler returns the order handler.
func NewOrderHandler(s *service.Orders) *OrderHandler {
	return &OrderHandler{Orders: s}
}

// List handles GET /api/v1/orders with restaurant_id, table_id, waiter_id and status filters.
func (h *OrderHandler) List(c echo.Context) error {
	pg, err := pagination(c)
	if err != nil {
		return err
	}
	q := repository.OrderQuery{Pagination: pg}
	for name, dst := range map[string]*uint64{
		"restaurant_id": &q.RestaurantID,
		"table_id":      &q.TableID,
		"waiter_id":     &q.WaiterID,
	} {
		if *dst, err = queryID(c, name); err != nil {
			return err
		}
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseOrderStatus(raw)
		if !ok {
			return apperr.Invalid("Invalid status: %s", raw)
		}
		q.Status = st
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Orders.List(ctx, middleware.Principal(c), q)
	if err != nil {
		return err
	}
	return success(c, page)
}

// Get handles GET /api/v1/orders/:id and returns the order with its lines.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Get(ctx, middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return success(c, o)
}

// Create handles POST /api/v1/orders and opens a pending order.
func (h *OrderHandler) Create(c echo.Context) error {
	var req service.CreateOrderInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Create(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return created(c, o)
}

// Patch handles PATCH /api/v1/orders/:id for the assigned waiter, tip and notes.
func (h *OrderHandler) Patch(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.PatchOrderInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Patch(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, o)
}

// Delete handles DELETE /api/v1/orders/:id and answers 204.
func (h *OrderHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Orders.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddItem handles POST /api/v1/orders/add-item.
func (h *OrderHandler) AddItem(c echo.Context) error {
	var req service.AddItemInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.AddItem(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return success(c, o)
}

// EditItem handles PATCH /api/v1/orders/edit-item. A quantity of 0 removes the line.
func (h *OrderHandler) EditItem(c echo.Context) error {
	var req service.EditItemInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.EditItem(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return success(c, o)
}

// CalculateTotals handles POST /api/v1/orders/calculate-totals and applies the optional tip.
func (h *OrderHandler) CalculateTotals(c echo.Context) error {
	var req service.TotalsInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.CalculateTotals(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return success(c, o)
}

// SendToKitchen handles POST /api/v1/orders/send-to-kitchen for pending orders.
func (h *OrderHandler) SendToKitchen(c echo.Context) error {
	var req service.KitchenInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.SendToKitchen(ctx, middleware.Principal(c), req)
	if err != nil {
		return err
	}
	return success(c, o)
}

// UpdateStatus is PATCH /orders/:id/status.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req service.StatusInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.UpdateStatus(ctx, middleware.Principal(c), id, req)
	if err != nil {
		return err
	}
	return success(c, o)
}
