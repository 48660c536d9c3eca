package model

import (
	"time"

	"github.com/google/uuid"
)

// Showtime is the catalog's view of one scheduled screening.  Only the
// fields the reservation core reads are carried here.
type Showtime struct {
	ID         uuid.UUID `db:"id" json:"showtime_id"`
	MovieID    uuid.UUID `db:"movie_id" json:"movie_id"`
	ScreenID   uuid.UUID `db:"screen_id" json:"screen_id"`
	MovieTitle string    `db:"movie_title" json:"movie_title"`
	CinemaName string    `db:"cinema_name" json:"cinema_name"`
	ScreenName string    `db:"screen_name" json:"screen_name"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	EndsAt     time.Time `db:"ends_at" json:"ends_at"`
}

// Overlaps reports whether two screenings on the same screen collide.
// Intervals are half-open, so a showtime ending at 20:00 and another
// starting at 20:00 do not overlap.
func (s Showtime) Overlaps(other Showtime) bool {
	return Overlaps(s.StartsAt, s.EndsAt, other.StartsAt, other.EndsAt)
}

// Overlaps is the interval form of Showtime.Overlaps: [aStart, aEnd) and
// [bStart, bEnd) overlap when each starts before the other ends.  Both
// sides are truncated to the second, the precision of the schedule.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	aStart, aEnd = aStart.Truncate(time.Second), aEnd.Truncate(time.Second)
	bStart, bEnd = bStart.Truncate(time.Second), bEnd.Truncate(time.Second)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ScreenSeat is one physical seat of a screen's layout.
type ScreenSeat struct {
	ID         uuid.UUID `db:"id" json:"seat_id"`
	ScreenID   uuid.UUID `db:"screen_id" json:"screen_id"`
	SeatNumber string    `db:"seat_number" json:"seat_number"`
	SeatType   string    `db:"seat_type" json:"seat_type"`
	Active     bool      `db:"is_active" json:"active"`
}

// Confirmation is everything a notification about a confirmed booking
// needs: the booking, its showtime and the seats that were sold.
type Confirmation struct {
	Booking  Booking
	Showtime Showtime
	Seats    []SeatSlot
}
