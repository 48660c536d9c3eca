package service

import (
	"errors"

	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// Business-rule failures.  They are expected outcomes, never fatal, and
// none of them leaves a half-applied change behind.
var (
	ErrSeatUnavailable          = errors.New("seat is not available")
	ErrBookingExpired           = errors.New("booking has expired")
	ErrHoldLimitExceeded        = errors.New("hold limit reached for this booking")
	ErrSeatNotHeldByBooking     = errors.New("seat is not held by this booking")
	ErrInvalidBookingState      = errors.New("booking is not in a valid state for this operation")
	ErrNoSeatsHeld              = errors.New("no held seats found for this booking")
	ErrCancellationWindowClosed = errors.New("booking can no longer be cancelled this close to the showtime")
	ErrForbidden                = errors.New("access denied to this booking")

	ErrAlreadyMaterialized = errors.New("seats already materialized for this showtime")
	ErrEmptyLayout         = errors.New("screen has no active seats")
	ErrInvalidPrice        = errors.New("price must not be negative")
	ErrInvalidSchedule     = errors.New("showtime must end after it starts")
)

// Re-exported so callers of this package need a single import to
// classify errors.
var (
	ErrShowtimeNotFound = store.ErrShowtimeNotFound
	ErrBookingNotFound  = store.ErrBookingNotFound
	ErrSeatNotFound     = store.ErrSeatNotFound
	ErrScreenNotFound   = store.ErrScreenNotFound
	ErrMovieNotFound    = store.ErrMovieNotFound
	ErrMissingReference = store.ErrMissingReference
	ErrScheduleConflict = store.ErrScheduleConflict
	ErrLockTimeout      = store.ErrLockTimeout
)
