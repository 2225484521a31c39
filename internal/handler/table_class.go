package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// TableClassHandler serves the public catalog and availability endpoints.
type TableClassHandler struct {
	Sched *scheduler.Scheduler
}

// NewTableClassHandler panics on a nil scheduler.
func NewTableClassHandler(s *scheduler.Scheduler) *TableClassHandler {
	if s == nil {
		panic("nil scheduler passed to NewTableClassHandler")
	}
	return &TableClassHandler{Sched: s}
}

// List handles GET /v1/table-classes.
func (h *TableClassHandler) List(c echo.Context) error {
	classes, err := h.Sched.ListClasses(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"table_classes": classes})
}

// Demand handles GET /v1/table-classes/:id/demand?party_size=N.
func (h *TableClassHandler) Demand(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table class id"})
	}
	party, err := queryInt(c, "party_size", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party_size"})
	}
	units, err := h.Sched.SizeDemand(c.Request().Context(), party, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"class_id": id, "party_size": party, "units_required": units})
}

// Feasible handles GET /v1/table-classes/feasible?party_size=N.
func (h *TableClassHandler) Feasible(c echo.Context) error {
	party, err := queryInt(c, "party_size", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party_size"})
	}
	classes, err := h.Sched.FeasibleClasses(c.Request().Context(), party)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"party_size": party, "options": classes})
}

// Busy handles GET /v1/table-classes/:id/busy?date=&exclude=&units=.
// units defaults to 1; exclude leaves one reservation out of the sweep.
func (h *TableClassHandler) Busy(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table class id"})
	}
	date, err := parseDate(c.QueryParam("date"), h.Sched.Location())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD or RFC3339"})
	}
	units, err := queryInt(c, "units", 1)
	if err != nil || units < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid units"})
	}
	var exclude uint64
	if s := c.QueryParam("exclude"); s != "" {
		exclude, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid exclude"})
		}
	}
	busy, err := h.Sched.GetBusyIntervals(c.Request().Context(), id, date, exclude, units)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"class_id": id, "date": date.Format("2006-01-02"), "busy": busy})
}
