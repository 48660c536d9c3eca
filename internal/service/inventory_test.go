package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/service"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// staleStore serves an empty seat listing for the first stale reads, as
// if every hold had landed just after the snapshot.
type staleStore struct {
	store.Store
	stale int
	reads int
}

func (s *staleStore) ListSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	s.reads++
	if s.reads <= s.stale {
		return nil, nil
	}
	return s.Store.ListSeats(ctx, showtimeID)
}

type statsCacheMock struct {
	mock.Mock
}

func (m *statsCacheMock) Get(ctx context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, string, bool) {
	args := m.Called(ctx, showtimeID)
	return args.Get(0).(model.AvailabilityStats), args.String(1), args.Bool(2)
}

func (m *statsCacheMock) Set(ctx context.Context, stats model.AvailabilityStats, gen string) {
	m.Called(ctx, stats, gen)
}

func (m *statsCacheMock) Invalidate(ctx context.Context, showtimeID uuid.UUID) {
	m.Called(ctx, showtimeID)
}

func TestMaterialize_CreatesOneAvailableSlotPerActiveSeat(t *testing.T) {
	f := newFixture(t, 4)
	f.layout[2].Active = false
	f.catalog.AddScreen(f.show.ScreenID, f.layout)

	n, err := f.inv.Materialize(context.Background(), f.show.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	slots, err := f.inv.ListSeats(context.Background(), f.show.ID)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, model.SeatAvailable, s.Status)
		assert.Equal(t, int64(1500), s.PriceCents)
		assert.Nil(t, s.BookingID)
		assert.Nil(t, s.HeldUntil)
		assert.NotEqual(t, f.layout[2].ID, s.SeatID)
	}
}

func TestMaterialize_SecondCallIsRejected(t *testing.T) {
	f := newFixture(t, 2)
	f.materialize(1000)

	_, err := f.inv.Materialize(context.Background(), f.show.ID, 1000)
	assert.ErrorIs(t, err, service.ErrAlreadyMaterialized)

	slots, err := f.inv.ListSeats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestMaterialize_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown showtime", func(t *testing.T) {
		f := newFixture(t, 2)
		_, err := f.inv.Materialize(ctx, uuid.New(), 1000)
		assert.ErrorIs(t, err, service.ErrShowtimeNotFound)
	})

	t.Run("negative price", func(t *testing.T) {
		f := newFixture(t, 2)
		_, err := f.inv.Materialize(ctx, f.show.ID, -1)
		assert.ErrorIs(t, err, service.ErrInvalidPrice)
	})

	t.Run("no active seats", func(t *testing.T) {
		f := newFixture(t, 2)
		for i := range f.layout {
			f.layout[i].Active = false
		}
		f.catalog.AddScreen(f.show.ScreenID, f.layout)
		_, err := f.inv.Materialize(ctx, f.show.ID, 1000)
		assert.ErrorIs(t, err, service.ErrEmptyLayout)
	})
}

func TestAvailabilityStats_CountsByStatus(t *testing.T) {
	f := newFixture(t, 5)
	slots := f.materialize(1000)

	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)
	_, err = f.hold(b.BookingID, slots[1])
	require.NoError(t, err)

	other := f.newBooking(uuid.New())
	_, err = f.hold(other.BookingID, slots[2])
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), other.BookingID)
	require.NoError(t, err)

	stats, err := f.inv.AvailabilityStats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityStats{ShowtimeID: f.show.ID, Total: 5, Available: 2, Held: 2, Booked: 1}, stats)
}

func TestAvailabilityStats_ServedFromCache(t *testing.T) {
	cache := &statsCacheMock{}
	f := newFixture(t, 3, service.WithStatsCache(cache))
	cache.On("Invalidate", mock.Anything, f.show.ID).Return()
	f.materialize(1000)

	cached := model.AvailabilityStats{ShowtimeID: f.show.ID, Total: 3, Available: 3}
	cache.On("Get", mock.Anything, f.show.ID).Return(cached, "1", true).Once()

	stats, err := f.inv.AvailabilityStats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, stats)

	cache.On("Get", mock.Anything, f.show.ID).Return(model.AvailabilityStats{}, "7", false).Once()
	cache.On("Set", mock.Anything, cached, "7").Return().Once()

	stats, err = f.inv.AvailabilityStats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, stats)
	cache.AssertExpectations(t)
}

func TestAvailabilityStats_InvalidatedByHold(t *testing.T) {
	cache := &statsCacheMock{}
	f := newFixture(t, 2, service.WithStatsCache(cache))
	cache.On("Invalidate", mock.Anything, f.show.ID).Return()
	slots := f.materialize(1000)

	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)

	cache.AssertNumberOfCalls(t, "Invalidate", 2)
}

func TestRelease_DeletesFreeInventory(t *testing.T) {
	f := newFixture(t, 3)
	f.materialize(1000)

	report, err := f.inv.Release(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.SeatsDeleted)
	assert.Empty(t, report.BookingsCancelled)

	slots, err := f.inv.ListSeats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = f.inv.Materialize(context.Background(), f.show.ID, 1200)
	assert.NoError(t, err)
}

func TestRelease_CancelsOwningBookings(t *testing.T) {
	f := newFixture(t, 4)
	slots := f.materialize(1000)
	ctx := context.Background()

	held := f.newBooking(uuid.New())
	_, err := f.hold(held.BookingID, slots[0])
	require.NoError(t, err)

	confirmed := f.newBooking(uuid.New())
	_, err = f.hold(confirmed.BookingID, slots[1])
	require.NoError(t, err)
	_, err = f.hold(confirmed.BookingID, slots[2])
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, confirmed.BookingID)
	require.NoError(t, err)

	idle := f.newBooking(uuid.New())

	report, err := f.inv.Release(ctx, f.show.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, report.SeatsDeleted)
	assert.ElementsMatch(t, []uuid.UUID{held.BookingID, confirmed.BookingID}, report.BookingsCancelled)

	for _, id := range []uuid.UUID{held.BookingID, confirmed.BookingID} {
		b := f.booking(id)
		assert.Equal(t, model.BookingCancelled, b.Status)
		assert.Zero(t, b.SeatCount)
		assert.Zero(t, b.TotalPriceCents)
	}
	assert.Equal(t, model.BookingPending, f.booking(idle.BookingID).Status)

	left, err := f.inv.ListSeats(ctx, f.show.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	f.requireConserved(held.BookingID, confirmed.BookingID, idle.BookingID)
}

func TestRelease_RetriesWhenOwnersChange(t *testing.T) {
	f := newFixture(t, 2)
	slots := f.materialize(1000)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)

	stale := &staleStore{Store: f.store, stale: 1}
	inv := service.NewInventoryService(stale, f.catalog,
		service.WithClock(f.clock.Now), service.WithLogger(logger.Discard()))

	report, err := inv.Release(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stale.reads)
	assert.EqualValues(t, 2, report.SeatsDeleted)
	assert.Equal(t, []uuid.UUID{b.BookingID}, report.BookingsCancelled)
	f.requireConserved(b.BookingID)
}

func TestRelease_GivesUpWhenOwnersKeepChanging(t *testing.T) {
	f := newFixture(t, 2)
	slots := f.materialize(1000)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)

	stale := &staleStore{Store: f.store, stale: 100}
	inv := service.NewInventoryService(stale, f.catalog,
		service.WithClock(f.clock.Now), service.WithLogger(logger.Discard()))

	_, err = inv.Release(context.Background(), f.show.ID)
	assert.ErrorIs(t, err, service.ErrLockTimeout)

	left, err := f.inv.ListSeats(context.Background(), f.show.ID)
	require.NoError(t, err)
	assert.Len(t, left, 2)
	assert.Equal(t, model.BookingPending, f.booking(b.BookingID).Status)
	f.requireConserved(b.BookingID)
}

func TestSchedule_MaterializesNewShowtime(t *testing.T) {
	f := newFixture(t, 4)
	next := model.Showtime{
		MovieID:  uuid.New(),
		ScreenID: f.show.ScreenID,
		StartsAt: f.show.EndsAt,
		EndsAt:   f.show.EndsAt.Add(2 * time.Hour),
	}

	created, n, err := f.inv.Schedule(context.Background(), next, 900)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NotEqual(t, uuid.Nil, created.ID)

	stats, err := f.inv.AvailabilityStats(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Available)
}

func TestSchedule_Rejections(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, _, err := f.inv.Schedule(ctx, model.Showtime{
		ScreenID: f.show.ScreenID,
		StartsAt: f.show.StartsAt.Add(-time.Hour),
		EndsAt:   f.show.StartsAt.Add(time.Second),
	}, 900)
	assert.ErrorIs(t, err, service.ErrScheduleConflict)

	_, _, err = f.inv.Schedule(ctx, model.Showtime{
		ScreenID: f.show.ScreenID,
		StartsAt: f.show.EndsAt,
		EndsAt:   f.show.EndsAt,
	}, 900)
	assert.ErrorIs(t, err, service.ErrInvalidSchedule)

	_, _, err = f.inv.Schedule(ctx, model.Showtime{
		ScreenID: uuid.New(),
		StartsAt: f.show.EndsAt,
		EndsAt:   f.show.EndsAt.Add(time.Hour),
	}, 900)
	assert.ErrorIs(t, err, service.ErrScreenNotFound)

	bare := uuid.New()
	f.catalog.AddScreen(bare, nil)
	_, _, err = f.inv.Schedule(ctx, model.Showtime{
		ScreenID: bare,
		StartsAt: f.show.EndsAt,
		EndsAt:   f.show.EndsAt.Add(time.Hour),
	}, 900)
	assert.ErrorIs(t, err, service.ErrEmptyLayout)
}

// brokenStore fails every transaction.
type brokenStore struct {
	store.Store
}

func (brokenStore) WithinTx(context.Context, func(context.Context, store.Tx) error) error {
	return errors.New("connection reset")
}

func TestSchedule_RemovesShowtimeWhenSeatsFail(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	next := model.Showtime{
		ID:       uuid.New(),
		MovieID:  uuid.New(),
		ScreenID: f.show.ScreenID,
		StartsAt: f.show.EndsAt,
		EndsAt:   f.show.EndsAt.Add(2 * time.Hour),
	}

	inv := service.NewInventoryService(brokenStore{Store: f.store}, f.catalog,
		service.WithClock(f.clock.Now), service.WithLogger(logger.Discard()))
	created, n, err := inv.Schedule(ctx, next, 900)
	assert.EqualError(t, err, "connection reset")
	assert.Zero(t, n)
	assert.Equal(t, uuid.Nil, created.ID)

	_, err = f.catalog.GetShowtime(ctx, next.ID)
	assert.ErrorIs(t, err, service.ErrShowtimeNotFound)

	created, n, err = f.inv.Schedule(ctx, next, 900)
	require.NoError(t, err)
	assert.Equal(t, next.ID, created.ID)
	assert.Equal(t, 3, n)
}
