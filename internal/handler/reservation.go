package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// ReservationHandler serves booking, editing and check-in endpoints.  All
// methods assume JWTAuth and RequireRole already ran.
type ReservationHandler struct {
	Sched *scheduler.Scheduler
}

// NewReservationHandler panics on a nil scheduler.
func NewReservationHandler(s *scheduler.Scheduler) *ReservationHandler {
	if s == nil {
		panic("nil scheduler passed to NewReservationHandler")
	}
	return &ReservationHandler{Sched: s}
}

// reservationRequest is the body of create, edit and validate calls.
// Times are RFC3339.
type reservationRequest struct {
	ClassID      uint64    `json:"class_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	PartySize    int       `json:"party_size"`
	DepositCents uint32    `json:"deposit_cents"`
	UserID       uint64    `json:"user_id"`
}

func (r reservationRequest) candidate() scheduler.Candidate {
	return scheduler.Candidate{ClassID: r.ClassID, StartsAt: r.StartsAt, EndsAt: r.EndsAt, PartySize: r.PartySize}
}

func bindReservation(c echo.Context) (reservationRequest, bool) {
	var body reservationRequest
	if err := c.Bind(&body); err != nil {
		return body, false
	}
	return body, true
}

// ValidateNew handles POST /v1/reservations/validate.  A rejected
// candidate is a 200 with accepted=false and the conflicting windows.
func (h *ReservationHandler) ValidateNew(c echo.Context) error {
	body, ok := bindReservation(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	d, err := h.Sched.ValidateNewReservation(c.Request().Context(), body.candidate())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return writeError(c, err)
	}
	body, ok := bindReservation(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	r, err := h.Sched.Create(c.Request().Context(), actor, scheduler.CreateRequest{
		Candidate:    body.candidate(),
		UserID:       body.UserID,
		DepositCents: body.DepositCents,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return writeError(c, err)
	}
	rs, err := h.Sched.ListMine(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": rs})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.Get(c.Request().Context(), actor, id)
	})
}

// Update handles PUT /v1/reservations/:id.  class_id may be omitted to
// keep the current class.
func (h *ReservationHandler) Update(c echo.Context) error {
	body, ok := bindReservation(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.Edit(c.Request().Context(), actor, id, body.candidate())
	})
}

// ValidateEdit handles POST /v1/reservations/:id/validate.
func (h *ReservationHandler) ValidateEdit(c echo.Context) error {
	body, ok := bindReservation(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.ValidateEditedReservation(c.Request().Context(), actor, id, body.candidate())
	})
}

// Confirm handles POST /v1/reservations/:id/confirm with an optional
// {"deposit_cents": n} top-up.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	var body struct {
		DepositCents uint32 `json:"deposit_cents"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.Confirm(c.Request().Context(), actor, id, body.DepositCents)
	})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.Cancel(c.Request().Context(), actor, id)
	})
}

// CheckIn handles POST /v1/staff/reservations/:id/check-in.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.CheckIn(c.Request().Context(), actor, id)
	})
}

// Complete handles POST /v1/staff/reservations/:id/complete.
func (h *ReservationHandler) Complete(c echo.Context) error {
	return h.byID(c, func(actor model.Actor, id uint64) (any, error) {
		return h.Sched.Complete(c.Request().Context(), actor, id)
	})
}

// byID resolves the caller and the :id parameter, runs fn and writes its
// result as 200 JSON.
func (h *ReservationHandler) byID(c echo.Context, fn func(actor model.Actor, id uint64) (any, error)) error {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		return writeError(c, err)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	out, err := fn(actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
