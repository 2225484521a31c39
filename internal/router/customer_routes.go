package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// RegisterCustomer registers booking endpoints.  They require a valid JWT
// with the CUSTOMER or STAFF role; ownership of a reservation is checked
// by the scheduler.
func RegisterCustomer(g *echo.Group, d Deps) {
	a := g.Group("",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleStaff),
	)
	h := d.Reservations
	a.POST("/reservations/validate", h.ValidateNew)
	a.POST("/reservations", h.Create)
	a.GET("/my-reservations", h.ListMine)
	a.GET("/reservations/:id", h.Get)
	a.PUT("/reservations/:id", h.Update)
	a.POST("/reservations/:id/validate", h.ValidateEdit)
	a.POST("/reservations/:id/confirm", h.Confirm)
	a.DELETE("/reservations/:id", h.Cancel)
}
