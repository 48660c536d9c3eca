package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

const seatSlotColumns = `showtime_id, seat_id, seat_number, seat_type, status,
	booking_id, held_until, price_cents, created_at, updated_at`

// insertChunk keeps a bulk insert well below max_allowed_packet and the
// 65535 placeholder limit.
const insertChunk = 500

func (s *Store) ListSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	const q = `SELECT ` + seatSlotColumns + ` FROM seat_slots
		WHERE showtime_id = ?
		ORDER BY seat_number, seat_id`
	slots := []model.SeatSlot{}
	if err := s.db.SelectContext(ctx, &slots, q, showtimeID); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Store) SeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error) {
	const q = `SELECT ` + seatSlotColumns + ` FROM seat_slots
		WHERE booking_id = ? AND status IN ('HELD', 'BOOKED')
		ORDER BY seat_number, seat_id`
	slots := []model.SeatSlot{}
	if err := s.db.SelectContext(ctx, &slots, q, bookingID); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Store) SeatStats(ctx context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, error) {
	const q = `SELECT status, COUNT(*) AS n FROM seat_slots WHERE showtime_id = ? GROUP BY status`
	var rows []struct {
		Status model.SeatStatus `db:"status"`
		N      int              `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, q, showtimeID); err != nil {
		return model.AvailabilityStats{}, err
	}
	stats := model.AvailabilityStats{ShowtimeID: showtimeID}
	for _, r := range rows {
		stats.Add(r.Status, r.N)
	}
	return stats, nil
}

func (t *sqlTx) LockSeat(ctx context.Context, showtimeID, seatID uuid.UUID) (model.SeatSlot, error) {
	const q = `SELECT ` + seatSlotColumns + ` FROM seat_slots
		WHERE showtime_id = ? AND seat_id = ?
		FOR UPDATE`
	var slot model.SeatSlot
	if err := t.tx.GetContext(ctx, &slot, q, showtimeID, seatID); err != nil {
		return model.SeatSlot{}, notFound(err, store.ErrSeatNotFound)
	}
	return slot, nil
}

// LockSeatsByBooking locks through idx_seat_slots_booking in primary key
// order, the same order LockShowtimeSeats uses.
func (t *sqlTx) LockSeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error) {
	const q = `SELECT ` + seatSlotColumns + ` FROM seat_slots
		WHERE booking_id = ? AND status IN ('HELD', 'BOOKED')
		ORDER BY showtime_id, seat_id
		FOR UPDATE`
	slots := []model.SeatSlot{}
	if err := t.tx.SelectContext(ctx, &slots, q, bookingID); err != nil {
		return nil, err
	}
	return slots, nil
}

func (t *sqlTx) CountHeld(ctx context.Context, bookingID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM seat_slots WHERE booking_id = ? AND status = 'HELD'`
	var n int
	err := t.tx.GetContext(ctx, &n, q, bookingID)
	return n, err
}

func (t *sqlTx) UpdateSeat(ctx context.Context, s model.SeatSlot) error {
	const q = `UPDATE seat_slots SET
			status = :status,
			booking_id = :booking_id,
			held_until = :held_until,
			updated_at = :updated_at
		WHERE showtime_id = :showtime_id AND seat_id = :seat_id`
	_, err := t.tx.NamedExecContext(ctx, q, s)
	return err
}

func (t *sqlTx) LockShowtime(ctx context.Context, showtimeID uuid.UUID) error {
	const q = `SELECT id FROM showtimes WHERE id = ? FOR UPDATE`
	var id uuid.UUID
	if err := t.tx.GetContext(ctx, &id, q, showtimeID); err != nil {
		return notFound(err, store.ErrShowtimeNotFound)
	}
	return nil
}

func (t *sqlTx) LockShowtimeSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	const q = `SELECT ` + seatSlotColumns + ` FROM seat_slots
		WHERE showtime_id = ?
		ORDER BY showtime_id, seat_id
		FOR UPDATE`
	slots := []model.SeatSlot{}
	if err := t.tx.SelectContext(ctx, &slots, q, showtimeID); err != nil {
		return nil, err
	}
	return slots, nil
}

// InsertSeats bulk-inserts in chunks.  A duplicate (showtime, seat) pair
// fails the whole transaction with store.ErrDuplicate.
func (t *sqlTx) InsertSeats(ctx context.Context, slots []model.SeatSlot) error {
	const q = `INSERT INTO seat_slots (` + seatSlotColumns + `)
		VALUES (:showtime_id, :seat_id, :seat_number, :seat_type, :status,
			:booking_id, :held_until, :price_cents, :created_at, :updated_at)`
	for start := 0; start < len(slots); start += insertChunk {
		end := min(start+insertChunk, len(slots))
		if _, err := t.tx.NamedExecContext(ctx, q, slots[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) DeleteSeats(ctx context.Context, showtimeID uuid.UUID) (int64, error) {
	const q = `DELETE FROM seat_slots WHERE showtime_id = ?`
	res, err := t.tx.ExecContext(ctx, q, showtimeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
