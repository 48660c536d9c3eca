package store

import "errors"

// Lookup and locking errors shared by every Store implementation.
// Callers compare with errors.Is.
var (
	ErrShowtimeNotFound = errors.New("showtime not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrSeatNotFound     = errors.New("seat not found in showtime")
	ErrScreenNotFound   = errors.New("screen not found")
	ErrMovieNotFound    = errors.New("movie not found")

	// ErrDuplicate is returned when an insert collides with an existing
	// (showtime, seat) slot or booking id.
	ErrDuplicate = errors.New("duplicate record")

	// ErrMissingReference is returned when a write points at a parent row
	// that does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")

	// ErrScheduleConflict is returned when a showtime would overlap
	// another one on the same screen.
	ErrScheduleConflict = errors.New("showtime overlaps an existing showtime on this screen")

	// ErrLockTimeout is returned when a row lock could not be acquired in
	// time or the transaction was picked as a deadlock victim.  The whole
	// operation may be retried.
	ErrLockTimeout = errors.New("lock wait timeout")
)
