package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness for load balancers. With a database attached it
// also pings it and answers 503 when the ping fails.
type Health struct {
	DB Pinger
}

// Check handles GET /healthz. It answers 503 when the database does not respond.
func (h Health) Check(c echo.Context) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			log.Warningf("health: database ping: %v", err)
			return c.JSON(http.StatusServiceUnavailable, envelope{Status: "error", Message: "database unavailable"})
		}
	}
	return c.JSON(http.StatusOK, envelope{Status: "success", Message: "ok"})
}
