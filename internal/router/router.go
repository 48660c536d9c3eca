// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/auth"
	"github.com/iliyamo/cinema-booking-core/internal/handler"
	"github.com/iliyamo/cinema-booking-core/internal/middleware"
)

// Deps is what the route table needs.  RateLimit may be nil, in which
// case booking routes are not rate limited.
type Deps struct {
	JWTSecret string
	Bookings  *handler.BookingHandler
	Inventory *handler.InventoryHandler
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers unauthenticated routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/showtimes/:id/seats", d.Inventory.ListSeats)
	e.GET("/v1/showtimes/:id/seats/stats", d.Inventory.Stats)
}

// RegisterCustomer registers the booking flow.  All routes require a
// valid JWT and the CUSTOMER role.
func RegisterCustomer(e *echo.Echo, d Deps) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(auth.RoleCustomer),
	}
	if d.RateLimit != nil {
		mw = append(mw, d.RateLimit)
	}
	g := e.Group("/v1/bookings", mw...)
	g.POST("", d.Bookings.Create)
	g.GET("", d.Bookings.List)
	g.GET("/:id", d.Bookings.Get)
	g.POST("/:id/hold", d.Bookings.Hold)
	g.POST("/:id/release", d.Bookings.Release)
	g.POST("/:id/confirm", d.Bookings.Confirm)
	g.POST("/:id/cancel", d.Bookings.Cancel)
}

// RegisterOwner registers inventory management for the OWNER role.
func RegisterOwner(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/owner",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(auth.RoleOwner),
	)
	g.POST("/showtimes", d.Inventory.Schedule)
	g.POST("/showtimes/:id/seats", d.Inventory.Materialize)
	g.DELETE("/showtimes/:id/seats", d.Inventory.Release)
}

// Register installs every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterCustomer(e, d)
	RegisterOwner(e, d)
}
