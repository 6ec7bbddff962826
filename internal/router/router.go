// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/op/go-logging"

	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
)

var log = logging.MustGetLogger("http")

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Health      handler.Health
	WS          *handler.WSHandler
	Users       *handler.UserHandler
	Restaurants *handler.RestaurantHandler
	Catalog     *handler.CatalogHandler
	Tables      *handler.TableHandler
	Orders      *handler.OrderHandler
}

// Options carries the cross-cutting pieces. Nil RateLimit and Cache are
// replaced by no-ops.
type Options struct {
	Auth      middleware.Authenticator
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Prod      bool
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

// New builds the server: /healthz and /ws at the root, everything else
// under /api/v1.
func New(h Handlers, o Options) *echo.Echo {
	if o.RateLimit == nil {
		o.RateLimit = noop
	}
	if o.Cache == nil {
		o.Cache = noop
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(o.Prod)

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: []string{"*"}}))
	e.Use(requestLogger())

	RegisterRoutes(e, h)

	api := e.Group("/api/v1")
	auth := middleware.JWTAuth(o.Auth)
	RegisterUsers(api, h.Users, auth, o.RateLimit)
	RegisterCatalog(api, h, auth, o.RateLimit, o.Cache)
	RegisterOperations(api, h, auth, o.RateLimit)
	return e
}

// RegisterRoutes mounts the endpoints outside /api.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Check)
	if h.WS != nil {
		e.GET("/ws", h.WS.Serve)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logRequest,
	})
}

func logRequest(_ echo.Context, v echomw.RequestLoggerValues) error {
	lat := v.Latency.Round(time.Microsecond)
	switch {
	case v.Status >= 500:
		log.Errorf("%s %s %d %s %s err=%v", v.Method, v.URI, v.Status, lat, v.RemoteIP, v.Error)
	case v.Status >= 400:
		log.Infof("%s %s %d %s %s", v.Method, v.URI, v.Status, lat, v.RemoteIP)
	default:
		log.Debugf("%s %s %d %s %s", v.Method, v.URI, v.Status, lat, v.RemoteIP)
	}
	return nil
}
