package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/service"
)

// InventoryHandler exposes a showtime's seat slots.  Reads are public;
// materializing, releasing and scheduling are owner operations.
type InventoryHandler struct {
	Inventory *service.InventoryService
}

// NewInventoryHandler panics on a nil service.
func NewInventoryHandler(inv *service.InventoryService) *InventoryHandler {
	if inv == nil {
		panic("nil service passed to NewInventoryHandler")
	}
	return &InventoryHandler{Inventory: inv}
}

type materializeRequest struct {
	PriceCents *int64 `json:"price_cents" validate:"required,gte=0"`
}

type scheduleRequest struct {
	MovieID    string    `json:"movie_id" validate:"required,uuid"`
	ScreenID   string    `json:"screen_id" validate:"required,uuid"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" validate:"required"`
	PriceCents *int64    `json:"price_cents" validate:"required,gte=0"`
}

// ListSeats handles GET /v1/showtimes/:id/seats.
func (h *InventoryHandler) ListSeats(c echo.Context) error {
	showtimeID, ok := pathUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	seats, err := h.Inventory.ListSeats(c.Request().Context(), showtimeID)
	if err != nil {
		return fail(c, err)
	}
	if seats == nil {
		seats = []model.SeatSlot{}
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": showtimeID, "seats": seats})
}

// Stats handles GET /v1/showtimes/:id/seats/stats.
func (h *InventoryHandler) Stats(c echo.Context) error {
	showtimeID, ok := pathUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	stats, err := h.Inventory.AvailabilityStats(c.Request().Context(), showtimeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Materialize handles POST /v1/owner/showtimes/:id/seats and creates one
// AVAILABLE slot per active seat of the screen at a single price.
func (h *InventoryHandler) Materialize(c echo.Context) error {
	showtimeID, ok := pathUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	var req materializeRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, msg)
	}
	n, err := h.Inventory.Materialize(c.Request().Context(), showtimeID, *req.PriceCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"showtime_id": showtimeID, "seats_created": n})
}

// Release handles DELETE /v1/owner/showtimes/:id/seats.  Bookings that
// still hold or own seats are cancelled first.
func (h *InventoryHandler) Release(c echo.Context) error {
	showtimeID, ok := pathUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	report, err := h.Inventory.Release(c.Request().Context(), showtimeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id":        showtimeID,
		"seats_deleted":      report.SeatsDeleted,
		"bookings_cancelled": report.BookingsCancelled,
	})
}

// Schedule handles POST /v1/owner/showtimes: it adds a showtime to a
// screen and materializes its seats in one call.
func (h *InventoryHandler) Schedule(c echo.Context) error {
	var req scheduleRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, msg)
	}
	st := model.Showtime{
		MovieID:  uuid.MustParse(req.MovieID),
		ScreenID: uuid.MustParse(req.ScreenID),
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
	created, n, err := h.Inventory.Schedule(c.Request().Context(), st, *req.PriceCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"showtime": created, "seats_created": n})
}
