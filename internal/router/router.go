// Package router registers the HTTP routes of the reservation API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
)

// Deps bundles what the route groups need.  Redis may be nil, which turns
// off the catalog cache and moves rate limiting in process.
type Deps struct {
	Health       handler.Health
	Classes      *handler.TableClassHandler
	Reservations *handler.ReservationHandler
	JWTSecret    string
	Redis        *redis.Client
	Cache        config.CacheConfig
}

// RegisterRoutes registers the health check.  It carries no middleware so
// health checks are never rate limited.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Check)
}

// RegisterPublic registers the unauthenticated catalog and availability
// endpoints.  Only the catalog listing is cached; availability changes
// with every booking.
func RegisterPublic(g *echo.Group, d Deps) {
	g.GET("/table-classes", d.Classes.List, middleware.NewRedisCache(d.Cache, d.Redis))
	g.GET("/table-classes/feasible", d.Classes.Feasible)
	g.GET("/table-classes/:id/demand", d.Classes.Demand)
	g.GET("/table-classes/:id/busy", d.Classes.Busy)
}
