package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/service"
)

// BookingHandler serves the customer booking flow: open a booking, hold
// and release seats, confirm or cancel, and read bookings back.  Every
// route sits behind JWTAuth, and booking-scoped routes check that the
// caller owns the booking before touching it.
type BookingHandler struct {
	Bookings *service.BookingService
}

// NewBookingHandler panics on a nil service.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

type createBookingRequest struct {
	ShowtimeID string `json:"showtime_id" validate:"required,uuid"`
}

type seatRequest struct {
	SeatID     string `json:"seat_id" validate:"required,uuid"`
	ShowtimeID string `json:"showtime_id" validate:"required,uuid"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createBookingRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, msg)
	}
	summary, err := h.Bookings.Create(c.Request().Context(), uuid.MustParse(req.ShowtimeID), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, summary)
}

// Hold handles POST /v1/bookings/:id/hold.
func (h *BookingHandler) Hold(c echo.Context) error {
	return h.seatAction(c, h.Bookings.Hold)
}

// Release handles POST /v1/bookings/:id/release.
func (h *BookingHandler) Release(c echo.Context) error {
	return h.seatAction(c, h.Bookings.Release)
}

type seatFunc func(ctx context.Context, bookingID, seatID, showtimeID, callerID uuid.UUID) (model.BookingSummary, error)

func (h *BookingHandler) seatAction(c echo.Context, do seatFunc) error {
	userID, bookingID, ok, err := h.owned(c)
	if !ok {
		return err
	}
	var req seatRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, msg)
	}
	summary, err := do(c.Request().Context(), bookingID, uuid.MustParse(req.SeatID), uuid.MustParse(req.ShowtimeID), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	_, bookingID, ok, err := h.owned(c)
	if !ok {
		return err
	}
	detail, err := h.Bookings.Confirm(c.Request().Context(), bookingID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	_, bookingID, ok, err := h.owned(c)
	if !ok {
		return err
	}
	summary, err := h.Bookings.Cancel(c.Request().Context(), bookingID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Get handles GET /v1/bookings/:id and returns the booking with its seats.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	bookingID, ok := pathUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	detail, err := h.Bookings.Detail(c.Request().Context(), bookingID, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// List handles GET /v1/bookings?page=&size=.  Missing or malformed paging
// parameters fall back to the defaults.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	result, err := h.Bookings.ListByUser(c.Request().Context(), userID, page, size)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// owned resolves the caller and the :id booking and checks ownership.
// When ok is false the response has already been written and err is what
// the handler must return.
func (h *BookingHandler) owned(c echo.Context) (userID, bookingID uuid.UUID, ok bool, err error) {
	userID, err = getUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, false, unauthorized(c)
	}
	bookingID, ok = pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false, badRequest(c, "invalid booking id")
	}
	b, err := h.Bookings.Get(c.Request().Context(), bookingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, false, fail(c, err)
	}
	if b.UserID != userID {
		return uuid.Nil, uuid.Nil, false, fail(c, service.ErrForbidden)
	}
	return userID, bookingID, true, nil
}
