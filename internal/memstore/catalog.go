package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// Catalog is an in-memory showtime and seat-layout source.
type Catalog struct {
	mu        sync.RWMutex
	showtimes map[uuid.UUID]model.Showtime
	layouts   map[uuid.UUID][]model.ScreenSeat
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		showtimes: make(map[uuid.UUID]model.Showtime),
		layouts:   make(map[uuid.UUID][]model.ScreenSeat),
	}
}

// AddScreen registers the seat layout of a screen, replacing any previous
// one.
func (c *Catalog) AddScreen(screenID uuid.UUID, seats []model.ScreenSeat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	layout := make([]model.ScreenSeat, len(seats))
	for i, s := range seats {
		s.ScreenID = screenID
		layout[i] = s
	}
	c.layouts[screenID] = layout
}

// ScheduleShowtime adds st unless it overlaps another showtime on the same
// screen.
func (c *Catalog) ScheduleShowtime(_ context.Context, st model.Showtime) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.layouts[st.ScreenID]; !ok {
		return store.ErrScreenNotFound
	}
	if _, ok := c.showtimes[st.ID]; ok {
		return store.ErrDuplicate
	}
	for _, other := range c.showtimes {
		if other.ScreenID == st.ScreenID && other.Overlaps(st) {
			return store.ErrScheduleConflict
		}
	}
	c.showtimes[st.ID] = st
	return nil
}

// UnscheduleShowtime removes a showtime.  Removing an unknown one is a
// no-op.
func (c *Catalog) UnscheduleShowtime(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.showtimes, id)
	return nil
}

func (c *Catalog) GetShowtime(_ context.Context, id uuid.UUID) (model.Showtime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.showtimes[id]
	if !ok {
		return model.Showtime{}, store.ErrShowtimeNotFound
	}
	return st, nil
}

func (c *Catalog) SeatsForScreen(_ context.Context, screenID uuid.UUID) ([]model.ScreenSeat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	layout, ok := c.layouts[screenID]
	if !ok {
		return nil, store.ErrScreenNotFound
	}
	seats := append([]model.ScreenSeat(nil), layout...)
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
	return seats, nil
}
