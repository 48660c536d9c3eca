package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/service"
)

// lockRetryAfter is the Retry-After hint, in seconds, sent with 503 when a
// row lock could not be taken.
const lockRetryAfter = "1"

// statusFor maps a service error onto an HTTP status.  Unknown errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrShowtimeNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrSeatNotFound),
		errors.Is(err, service.ErrScreenNotFound),
		errors.Is(err, service.ErrMovieNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSeatUnavailable),
		errors.Is(err, service.ErrAlreadyMaterialized),
		errors.Is(err, service.ErrScheduleConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrBookingExpired),
		errors.Is(err, service.ErrInvalidBookingState),
		errors.Is(err, service.ErrHoldLimitExceeded),
		errors.Is(err, service.ErrSeatNotHeldByBooking),
		errors.Is(err, service.ErrNoSeatsHeld),
		errors.Is(err, service.ErrCancellationWindowClosed),
		errors.Is(err, service.ErrEmptyLayout),
		errors.Is(err, service.ErrMissingReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}.  Internal errors are logged with the
// request-scoped logger and never leak their text to the client.
func fail(c echo.Context, err error) error {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		logger.FromContext(c.Request().Context(), nil).WithError(err).Error("request failed")
		return c.JSON(status, echo.Map{"error": "internal error"})
	case http.StatusServiceUnavailable:
		c.Response().Header().Set("Retry-After", lockRetryAfter)
		return c.JSON(status, echo.Map{"error": "resource busy, retry later"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
