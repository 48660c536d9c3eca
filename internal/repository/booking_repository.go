package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

const bookingColumns = `id, user_id, showtime_id, status, seat_count, total_price_cents,
	expires_at, confirmed_at, created_at, updated_at`

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	var b model.Booking
	if err := s.db.GetContext(ctx, &b, q, id); err != nil {
		return model.Booking{}, notFound(err, store.ErrBookingNotFound)
	}
	return b, nil
}

// ListBookingsByUser returns one page of the user's bookings, newest first,
// and the user's total booking count.
func (s *Store) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Booking, int, error) {
	const countQ = `SELECT COUNT(*) FROM bookings WHERE user_id = ?`
	var total int
	if err := s.db.GetContext(ctx, &total, countQ, userID); err != nil {
		return nil, 0, err
	}

	const q = `SELECT ` + bookingColumns + ` FROM bookings
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`
	items := []model.Booking{}
	if err := s.db.SelectContext(ctx, &items, q, userID, limit, offset); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExpiredBookingIDs uses idx_bookings_status_expiry.  CONFIRMED bookings
// never match.
func (s *Store) ExpiredBookingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const q = `SELECT id FROM bookings
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at, id
		LIMIT ?`
	ids := []uuid.UUID{}
	if err := s.db.SelectContext(ctx, &ids, q, model.BookingPending, now.UTC(), limit); err != nil {
		return nil, err
	}
	return ids, nil
}

func (t *sqlTx) LockBooking(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	var b model.Booking
	if err := t.tx.GetContext(ctx, &b, q, id); err != nil {
		return model.Booking{}, notFound(err, store.ErrBookingNotFound)
	}
	return b, nil
}

func (t *sqlTx) InsertBooking(ctx context.Context, b model.Booking) error {
	const q = `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :user_id, :showtime_id, :status, :seat_count, :total_price_cents,
			:expires_at, :confirmed_at, :created_at, :updated_at)`
	_, err := t.tx.NamedExecContext(ctx, q, b)
	return err
}

// UpdateBooking writes the mutable columns.  The row is expected to be
// locked by LockBooking earlier in the same transaction.
func (t *sqlTx) UpdateBooking(ctx context.Context, b model.Booking) error {
	const q = `UPDATE bookings SET
			status = :status,
			seat_count = :seat_count,
			total_price_cents = :total_price_cents,
			confirmed_at = :confirmed_at,
			updated_at = :updated_at
		WHERE id = :id`
	_, err := t.tx.NamedExecContext(ctx, q, b)
	return err
}
