// Package store declares the persistence contract of the reservation
// core.  The MySQL implementation lives in internal/repository and an
// in-process one in internal/memstore.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// Store is the transactional record of bookings and seat slots.
//
// Plain methods are snapshot reads and take no locks.  Anything that
// mutates state runs inside WithinTx; if fn returns an error every write
// made through tx is discarded.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetBooking(ctx context.Context, id uuid.UUID) (model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Booking, int, error)
	ExpiredBookingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	ListSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error)
	SeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error)
	SeatStats(ctx context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, error)
}

// Tx is one atomic unit of work.  Lock* methods take an exclusive lock
// that is held until the transaction ends.  Locks are always taken
// booking first, then seat slots.
type Tx interface {
	LockBooking(ctx context.Context, id uuid.UUID) (model.Booking, error)
	InsertBooking(ctx context.Context, b model.Booking) error
	UpdateBooking(ctx context.Context, b model.Booking) error

	LockSeat(ctx context.Context, showtimeID, seatID uuid.UUID) (model.SeatSlot, error)
	// LockSeatsByBooking locks every slot HELD or BOOKED under the booking.
	LockSeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error)
	CountHeld(ctx context.Context, bookingID uuid.UUID) (int, error)
	UpdateSeat(ctx context.Context, s model.SeatSlot) error

	// LockShowtime serializes inventory changes (materialize, release)
	// for one showtime.
	LockShowtime(ctx context.Context, showtimeID uuid.UUID) error
	LockShowtimeSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error)
	InsertSeats(ctx context.Context, slots []model.SeatSlot) error
	DeleteSeats(ctx context.Context, showtimeID uuid.UUID) (int64, error)
}
