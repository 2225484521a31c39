// Package handler exposes the reservation scheduler over HTTP.  Handlers
// only parse requests and translate scheduler errors into status codes;
// every rule lives in the scheduler package.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// parseDate accepts YYYY-MM-DD in loc or a full RFC3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// writeError maps scheduler errors to HTTP responses.  ErrUnknownClass is
// checked before ErrInputInvalid because it wraps it.
func writeError(c echo.Context, err error) error {
	var capErr *scheduler.CapacityError
	switch {
	case errors.As(err, &capErr):
		body := echo.Map{"error": "capacity exceeded"}
		if len(capErr.Conflicts) > 0 {
			body["conflicts"] = capErr.Conflicts
		} else {
			body["needed"] = capErr.Needed
			body["free"] = capErr.Free
		}
		return c.JSON(http.StatusConflict, body)
	case errors.Is(err, middleware.ErrNoIdentity):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, scheduler.ErrUnknownClass):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "table class not found"})
	case errors.Is(err, scheduler.ErrInputInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, scheduler.ErrNoFeasibleClass):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, scheduler.ErrEditLimitReached):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "edit limit reached"})
	case errors.Is(err, scheduler.ErrInsufficientDeposit):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "deposit does not cover class price"})
	case errors.Is(err, scheduler.ErrConcurrencyConflict):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "busy, try again"})
	case errors.Is(err, scheduler.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, scheduler.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, scheduler.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	c.Logger().Errorf("unhandled error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
