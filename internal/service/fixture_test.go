package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/memstore"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/service"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) BookingConfirmed(ctx context.Context, c model.Confirmation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type fixture struct {
	t       *testing.T
	store   *memstore.Store
	catalog *memstore.Catalog
	clock   *fakeClock
	inv     *service.InventoryService
	svc     *service.BookingService
	show    model.Showtime
	layout  []model.ScreenSeat
}

// newFixture schedules one showtime a day ahead on a screen with seatCount
// active seats.  Nothing is materialized yet.
func newFixture(t *testing.T, seatCount int, opts ...service.Option) *fixture {
	t.Helper()
	clock := newFakeClock()
	st := memstore.New()
	catalog := memstore.NewCatalog()

	screenID := uuid.New()
	layout := make([]model.ScreenSeat, seatCount)
	for i := range layout {
		layout[i] = model.ScreenSeat{
			ID:         uuid.New(),
			SeatNumber: fmt.Sprintf("A%02d", i+1),
			SeatType:   "STANDARD",
			Active:     true,
		}
	}
	catalog.AddScreen(screenID, layout)

	show := model.Showtime{
		ID:         uuid.New(),
		MovieID:    uuid.New(),
		ScreenID:   screenID,
		MovieTitle: "Heat",
		CinemaName: "Odeon",
		ScreenName: "Screen 1",
		StartsAt:   clock.Now().Add(24 * time.Hour),
		EndsAt:     clock.Now().Add(27 * time.Hour),
	}
	require.NoError(t, catalog.ScheduleShowtime(context.Background(), show))

	base := []service.Option{service.WithClock(clock.Now), service.WithLogger(logger.Discard())}
	opts = append(base, opts...)
	return &fixture{
		t:       t,
		store:   st,
		catalog: catalog,
		clock:   clock,
		inv:     service.NewInventoryService(st, catalog, opts...),
		svc:     service.NewBookingService(st, catalog, opts...),
		show:    show,
		layout:  layout,
	}
}

// materialize creates the showtime's slots at one price.
func (f *fixture) materialize(priceCents int64) []model.SeatSlot {
	f.t.Helper()
	_, err := f.inv.Materialize(context.Background(), f.show.ID, priceCents)
	require.NoError(f.t, err)
	slots, err := f.store.ListSeats(context.Background(), f.show.ID)
	require.NoError(f.t, err)
	return slots
}

// seedSlots inserts one AVAILABLE slot per price, bypassing Materialize so
// seats can be priced individually.
func (f *fixture) seedSlots(prices ...int64) []model.SeatSlot {
	f.t.Helper()
	require.LessOrEqual(f.t, len(prices), len(f.layout))
	slots := make([]model.SeatSlot, len(prices))
	for i, p := range prices {
		slots[i] = model.SeatSlot{
			ShowtimeID: f.show.ID,
			SeatID:     f.layout[i].ID,
			SeatNumber: f.layout[i].SeatNumber,
			SeatType:   f.layout[i].SeatType,
			Status:     model.SeatAvailable,
			PriceCents: p,
			CreatedAt:  f.clock.Now(),
			UpdatedAt:  f.clock.Now(),
		}
	}
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertSeats(ctx, slots)
	})
	require.NoError(f.t, err)
	return slots
}

func (f *fixture) newBooking(userID uuid.UUID) model.BookingSummary {
	f.t.Helper()
	b, err := f.svc.Create(context.Background(), f.show.ID, userID)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) hold(bookingID uuid.UUID, slot model.SeatSlot) (model.BookingSummary, error) {
	return f.svc.Hold(context.Background(), bookingID, slot.SeatID, slot.ShowtimeID, uuid.New())
}

func (f *fixture) booking(id uuid.UUID) model.Booking {
	f.t.Helper()
	b, err := f.store.GetBooking(context.Background(), id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) slot(seatID uuid.UUID) model.SeatSlot {
	f.t.Helper()
	slots, err := f.store.ListSeats(context.Background(), f.show.ID)
	require.NoError(f.t, err)
	for _, s := range slots {
		if s.SeatID == seatID {
			return s
		}
	}
	f.t.Fatalf("seat %s not found", seatID)
	return model.SeatSlot{}
}

// requireConserved checks that every booking's counters match the seats it
// owns and that every slot is internally consistent.
func (f *fixture) requireConserved(bookingIDs ...uuid.UUID) {
	f.t.Helper()
	ctx := context.Background()
	slots, err := f.store.ListSeats(ctx, f.show.ID)
	require.NoError(f.t, err)
	for _, s := range slots {
		require.NoError(f.t, s.Validate())
	}
	for _, id := range bookingIDs {
		b := f.booking(id)
		count, sum := 0, int64(0)
		for _, s := range slots {
			if s.OwnedBy(id) {
				count++
				sum += s.PriceCents
			}
		}
		require.Equal(f.t, count, b.SeatCount, "seat count of booking %s", id)
		require.Equal(f.t, sum, b.TotalPriceCents, "total price of booking %s", id)
		if b.Status == model.BookingCancelled || b.Status == model.BookingExpired {
			require.Zero(f.t, count, "terminal booking %s still owns seats", id)
		}
	}
}
