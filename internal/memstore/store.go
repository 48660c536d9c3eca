// Package memstore is an in-process implementation of store.Store.  Row
// locks are emulated with a keyed mutex (one key per booking, per seat
// slot and per showtime) and each transaction stages its writes, applying
// them in one step on commit.  It backs the unit tests and the
// STORE_DRIVER=memory development mode; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

type seatKey struct {
	showtimeID uuid.UUID
	seatID     uuid.UUID
}

// Store keeps bookings and seat slots in maps guarded by an RWMutex.
type Store struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]model.Booking
	seats    map[seatKey]model.SeatSlot
	locks    *keyedMutex
}

// Option customizes a Store.
type Option func(*Store)

// WithLockWait bounds how long a transaction waits for a row lock before
// failing with store.ErrLockTimeout.
func WithLockWait(d time.Duration) Option {
	return func(s *Store) { s.locks.wait = d }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		bookings: make(map[uuid.UUID]model.Booking),
		seats:    make(map[seatKey]model.SeatSlot),
		locks:    newKeyedMutex(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// WithinTx runs fn in a transaction.  Staged writes are applied only if fn
// returns nil; locks are released either way.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx := newTx(s)
	defer tx.unlockAll()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, store.ErrBookingNotFound
	}
	return b, nil
}

func (s *Store) ListBookingsByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Booking, int, error) {
	s.mu.RLock()
	var all []model.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			all = append(all, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	if offset >= total {
		return []model.Booking{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) ExpiredBookingIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	var expired []model.Booking
	for _, b := range s.bookings {
		if b.Status == model.BookingPending && b.ExpiresAt.Before(now) {
			expired = append(expired, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].ExpiresAt.Equal(expired[j].ExpiresAt) {
			return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
		}
		return expired[i].ID.String() < expired[j].ID.String()
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]uuid.UUID, len(expired))
	for i, b := range expired {
		ids[i] = b.ID
	}
	return ids, nil
}

func (s *Store) ListSeats(_ context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortSeats(s.filterSeats(func(slot model.SeatSlot) bool { return slot.ShowtimeID == showtimeID })), nil
}

func (s *Store) SeatsByBooking(_ context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortSeats(s.filterSeats(func(slot model.SeatSlot) bool { return slot.OwnedBy(bookingID) })), nil
}

func (s *Store) SeatStats(_ context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.AvailabilityStats{ShowtimeID: showtimeID}
	for k, slot := range s.seats {
		if k.showtimeID == showtimeID {
			stats.Add(slot.Status, 1)
		}
	}
	return stats, nil
}

// filterSeats must be called with s.mu held.
func (s *Store) filterSeats(keep func(model.SeatSlot) bool) []model.SeatSlot {
	out := []model.SeatSlot{}
	for _, slot := range s.seats {
		if keep(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func sortSeats(slots []model.SeatSlot) []model.SeatSlot {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].SeatNumber != slots[j].SeatNumber {
			return slots[i].SeatNumber < slots[j].SeatNumber
		}
		return slots[i].SeatID.String() < slots[j].SeatID.String()
	})
	return slots
}
