package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// RegisterStaff registers floor operations under /staff.  Only STAFF
// tokens pass.
func RegisterStaff(g *echo.Group, d Deps) {
	s := g.Group("/staff",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleStaff),
	)
	s.POST("/reservations/:id/check-in", d.Reservations.CheckIn)
	s.POST("/reservations/:id/complete", d.Reservations.Complete)
}
