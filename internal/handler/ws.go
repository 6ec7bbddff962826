package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/realtime"
)

// WSHandler upgrades authenticated requests onto the hub. Browsers pass the
// access token as ?token= since they cannot set headers on an upgrade.
type WSHandler struct {
	Auth middleware.Authenticator
	Hub  *realtime.Hub
}

// Serve handles GET /ws?token=<jwt> and hands the upgraded connection to the hub.
func (h *WSHandler) Serve(c echo.Context) error {
	raw := middleware.BearerToken(c.Request())
	if raw == "" {
		return apperr.Unauthorized("You are not logged in! Please log in to get access")
	}
	p, _, err := h.Auth.Authenticate(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	if err := h.Hub.Serve(c.Response(), c.Request(), p); err != nil {
		// the upgrader already wrote the HTTP error
		log.Infof("ws upgrade user=%d: %v", p.UserID, err)
	}
	return nil
}
