package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// tx stages writes on top of the committed maps.  A nil entry in seatW
// marks a deleted slot.
type tx struct {
	s        *Store
	held     map[string]struct{}
	order    []string
	bookingW map[uuid.UUID]model.Booking
	seatW    map[seatKey]*model.SeatSlot
}

func newTx(s *Store) *tx {
	return &tx{
		s:        s,
		held:     make(map[string]struct{}),
		bookingW: make(map[uuid.UUID]model.Booking),
		seatW:    make(map[seatKey]*model.SeatSlot),
	}
}

var _ store.Tx = (*tx)(nil)

func bookingLockKey(id uuid.UUID) string  { return "booking:" + id.String() }
func showtimeLockKey(id uuid.UUID) string { return "showtime:" + id.String() }
func seatLockKey(k seatKey) string {
	return "seat:" + k.showtimeID.String() + ":" + k.seatID.String()
}

// lock is re-entrant within the transaction.
func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.s.locks.Lock(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *tx) unlockAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.Unlock(t.order[i])
	}
	t.order = nil
	t.held = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, b := range t.bookingW {
		t.s.bookings[id] = b
	}
	for k, slot := range t.seatW {
		if slot == nil {
			delete(t.s.seats, k)
			continue
		}
		t.s.seats[k] = *slot
	}
}

func (t *tx) booking(id uuid.UUID) (model.Booking, bool) {
	if b, ok := t.bookingW[id]; ok {
		return b, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	return b, ok
}

func (t *tx) seat(k seatKey) (model.SeatSlot, bool) {
	if slot, ok := t.seatW[k]; ok {
		if slot == nil {
			return model.SeatSlot{}, false
		}
		return *slot, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	slot, ok := t.s.seats[k]
	return slot, ok
}

// seatView merges committed slots with this transaction's staged writes.
func (t *tx) seatView(keep func(model.SeatSlot) bool) []model.SeatSlot {
	t.s.mu.RLock()
	merged := make(map[seatKey]model.SeatSlot, len(t.s.seats))
	for k, slot := range t.s.seats {
		merged[k] = slot
	}
	t.s.mu.RUnlock()
	for k, slot := range t.seatW {
		if slot == nil {
			delete(merged, k)
			continue
		}
		merged[k] = *slot
	}
	out := []model.SeatSlot{}
	for _, slot := range merged {
		if keep(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func (t *tx) LockBooking(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	if err := t.lock(ctx, bookingLockKey(id)); err != nil {
		return model.Booking{}, err
	}
	b, ok := t.booking(id)
	if !ok {
		return model.Booking{}, store.ErrBookingNotFound
	}
	return b, nil
}

func (t *tx) InsertBooking(ctx context.Context, b model.Booking) error {
	if _, ok := t.booking(b.ID); ok {
		return store.ErrDuplicate
	}
	if err := t.lock(ctx, bookingLockKey(b.ID)); err != nil {
		return err
	}
	t.bookingW[b.ID] = b
	return nil
}

func (t *tx) UpdateBooking(_ context.Context, b model.Booking) error {
	if _, ok := t.booking(b.ID); !ok {
		return store.ErrBookingNotFound
	}
	t.bookingW[b.ID] = b
	return nil
}

func (t *tx) LockSeat(ctx context.Context, showtimeID, seatID uuid.UUID) (model.SeatSlot, error) {
	k := seatKey{showtimeID: showtimeID, seatID: seatID}
	if err := t.lock(ctx, seatLockKey(k)); err != nil {
		return model.SeatSlot{}, err
	}
	slot, ok := t.seat(k)
	if !ok {
		return model.SeatSlot{}, store.ErrSeatNotFound
	}
	return slot, nil
}

// LockSeatsByBooking relies on the caller already holding the booking
// lock: every transition into or out of a booking's ownership takes that
// lock first, so the set found before locking the seats cannot change.
func (t *tx) LockSeatsByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SeatSlot, error) {
	owned := t.seatView(func(slot model.SeatSlot) bool { return slot.OwnedBy(bookingID) })
	return t.lockSlots(ctx, owned)
}

func (t *tx) CountHeld(_ context.Context, bookingID uuid.UUID) (int, error) {
	return len(t.seatView(func(slot model.SeatSlot) bool { return slot.HeldBy(bookingID) })), nil
}

func (t *tx) UpdateSeat(_ context.Context, s model.SeatSlot) error {
	k := seatKey{showtimeID: s.ShowtimeID, seatID: s.SeatID}
	if _, ok := t.seat(k); !ok {
		return store.ErrSeatNotFound
	}
	slot := s
	t.seatW[k] = &slot
	return nil
}

func (t *tx) LockShowtime(ctx context.Context, showtimeID uuid.UUID) error {
	return t.lock(ctx, showtimeLockKey(showtimeID))
}

func (t *tx) LockShowtimeSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	slots := t.seatView(func(slot model.SeatSlot) bool { return slot.ShowtimeID == showtimeID })
	return t.lockSlots(ctx, slots)
}

func (t *tx) InsertSeats(_ context.Context, slots []model.SeatSlot) error {
	seen := make(map[seatKey]struct{}, len(slots))
	for _, slot := range slots {
		k := seatKey{showtimeID: slot.ShowtimeID, seatID: slot.SeatID}
		if _, dup := seen[k]; dup {
			return store.ErrDuplicate
		}
		if _, ok := t.seat(k); ok {
			return store.ErrDuplicate
		}
		seen[k] = struct{}{}
	}
	for _, slot := range slots {
		s := slot
		t.seatW[seatKey{showtimeID: s.ShowtimeID, seatID: s.SeatID}] = &s
	}
	return nil
}

func (t *tx) DeleteSeats(_ context.Context, showtimeID uuid.UUID) (int64, error) {
	slots := t.seatView(func(slot model.SeatSlot) bool { return slot.ShowtimeID == showtimeID })
	for _, slot := range slots {
		t.seatW[seatKey{showtimeID: slot.ShowtimeID, seatID: slot.SeatID}] = nil
	}
	return int64(len(slots)), nil
}

// lockSlots locks in a stable order and re-reads each slot once locked.
func (t *tx) lockSlots(ctx context.Context, slots []model.SeatSlot) ([]model.SeatSlot, error) {
	sort.Slice(slots, func(i, j int) bool {
		return seatLockKey(seatKey{slots[i].ShowtimeID, slots[i].SeatID}) <
			seatLockKey(seatKey{slots[j].ShowtimeID, slots[j].SeatID})
	})
	out := make([]model.SeatSlot, 0, len(slots))
	for _, slot := range slots {
		k := seatKey{showtimeID: slot.ShowtimeID, seatID: slot.SeatID}
		if err := t.lock(ctx, seatLockKey(k)); err != nil {
			return nil, err
		}
		if fresh, ok := t.seat(k); ok {
			out = append(out, fresh)
		}
	}
	return sortSeats(out), nil
}
