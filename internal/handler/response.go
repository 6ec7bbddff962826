package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/op/go-logging"

	"github.com/iliyamo/restaurant-ordering/internal/apperr"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
)

var log = logging.MustGetLogger("handler")

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

// envelope is the body of every JSON response.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, envelope{Status: "success", Data: data})
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Message: msg})
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Invalid("Invalid request body")
	}
	return nil
}

func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("Invalid %s: %s", name, c.Param(name))
	}
	return id, nil
}

// queryID reads an optional numeric query parameter; absent means 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("Invalid %s: %s", name, raw)
	}
	return id, nil
}

// pagination reads page, limit and sort. Out of range values are clamped by
// the store.
func pagination(c echo.Context) (repository.Pagination, error) {
	p := repository.Pagination{Sort: c.QueryParam("sort")}
	for name, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, apperr.Invalid("Invalid %s: %s", name, raw)
		}
		*dst = n
	}
	return p, nil
}

// ErrorHandler renders every failure as {status, message}. Kinds map to
// their HTTP status; anything unclassified is a 500 whose detail is hidden
// when prod is set.
func ErrorHandler(prod bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := http.StatusInternalServerError, "Something went very wrong!"

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.Status()
			msg = ae.Message
			if ae.Kind == apperr.KindInternal {
				log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
				if !prod && ae.Err != nil {
					msg = ae.Err.Error()
				}
			}
		case errors.As(err, &he):
			status = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				log.Debugf("%s %s: %v", c.Request().Method, c.Request().URL.Path, he.Internal)
			}
		default:
			log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			if !prod {
				msg = err.Error()
			}
		}

		kind := "fail"
		if status >= http.StatusInternalServerError {
			kind = "error"
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, envelope{Status: kind, Message: msg})
		}
		if err != nil {
			log.Warningf("write error response: %v", err)
		}
	}
}
