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

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/service"
)

func TestConfirm_SellsHeldSeatsAndNotifies(t *testing.T) {
	notifier := &notifierMock{}
	f := newFixture(t, 3, service.WithNotifier(notifier))
	slots := f.seedSlots(1500, 1250, 900)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)
	_, err = f.hold(b.BookingID, slots[1])
	require.NoError(t, err)

	notifier.On("BookingConfirmed", mock.Anything, mock.MatchedBy(func(c model.Confirmation) bool {
		return c.Booking.ID == b.BookingID &&
			c.Showtime.ID == f.show.ID &&
			c.Showtime.MovieTitle == "Heat" &&
			len(c.Seats) == 2
	})).Return(nil).Once()

	detail, err := f.svc.Confirm(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, detail.Status)
	assert.Equal(t, 2, detail.SeatCount)
	assert.Equal(t, int64(2750), detail.TotalPriceCents)
	require.NotNil(t, detail.ConfirmedAt)
	assert.Equal(t, f.clock.Now(), *detail.ConfirmedAt)
	require.Len(t, detail.Seats, 2)

	for _, s := range slots[:2] {
		got := f.slot(s.SeatID)
		assert.Equal(t, model.SeatBooked, got.Status)
		assert.Nil(t, got.HeldUntil)
		require.NotNil(t, got.BookingID)
		assert.Equal(t, b.BookingID, *got.BookingID)
	}
	assert.Equal(t, model.SeatAvailable, f.slot(slots[2].SeatID).Status)
	notifier.AssertExpectations(t)
	f.requireConserved(b.BookingID)
}

func TestConfirm_NotificationFailureKeepsConfirmation(t *testing.T) {
	notifier := &notifierMock{}
	f := newFixture(t, 1, service.WithNotifier(notifier))
	slots := f.materialize(1000)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)

	notifier.On("BookingConfirmed", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	_, err = f.svc.Confirm(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, f.booking(b.BookingID).Status)
	assert.Equal(t, model.SeatBooked, f.slot(slots[0].SeatID).Status)
	notifier.AssertExpectations(t)
}

func TestConfirm_NotificationOutlivesCancelledRequest(t *testing.T) {
	notifier := &notifierMock{}
	f := newFixture(t, 1, service.WithNotifier(notifier))
	slots := f.materialize(1000)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	notifier.On("BookingConfirmed", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
		assert.NoError(t, args.Get(0).(context.Context).Err())
	}).Return(nil).Once()

	_, err = f.svc.Confirm(ctx, b.BookingID)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestConfirm_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("no seats held", func(t *testing.T) {
		f := newFixture(t, 1)
		f.materialize(1000)
		b := f.newBooking(uuid.New())
		_, err := f.svc.Confirm(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrNoSeatsHeld)
		assert.Equal(t, model.BookingPending, f.booking(b.BookingID).Status)
	})

	t.Run("already confirmed", func(t *testing.T) {
		f := newFixture(t, 1)
		slots := f.materialize(1000)
		b := f.newBooking(uuid.New())
		_, err := f.hold(b.BookingID, slots[0])
		require.NoError(t, err)
		_, err = f.svc.Confirm(ctx, b.BookingID)
		require.NoError(t, err)

		_, err = f.svc.Confirm(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrInvalidBookingState)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t, 1)
		_, err := f.svc.Confirm(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrBookingNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		notifier := &notifierMock{}
		f := newFixture(t, 2, service.WithNotifier(notifier))
		slots := f.materialize(1000)
		b := f.newBooking(uuid.New())
		_, err := f.hold(b.BookingID, slots[0])
		require.NoError(t, err)
		_, err = f.hold(b.BookingID, slots[1])
		require.NoError(t, err)

		f.clock.Advance(16 * time.Minute)
		_, err = f.svc.Confirm(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrBookingExpired)

		assert.Equal(t, model.BookingExpired, f.booking(b.BookingID).Status)
		for _, s := range slots {
			assert.Equal(t, model.SeatAvailable, f.slot(s.SeatID).Status)
		}
		notifier.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything)
		f.requireConserved(b.BookingID)
	})
}

func TestCancel_HeldSeatsOfPendingBooking(t *testing.T) {
	f := newFixture(t, 3)
	slots := f.seedSlots(1500, 1250, 900)
	b := f.newBooking(uuid.New())
	_, err := f.hold(b.BookingID, slots[0])
	require.NoError(t, err)
	_, err = f.hold(b.BookingID, slots[2])
	require.NoError(t, err)

	summary, err := f.svc.Cancel(context.Background(), b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, summary.Status)
	assert.Zero(t, summary.SeatCount)
	assert.Zero(t, summary.TotalPriceCents)

	for _, s := range slots {
		got := f.slot(s.SeatID)
		assert.Equal(t, model.SeatAvailable, got.Status)
		assert.Nil(t, got.BookingID)
	}
	f.requireConserved(b.BookingID)
}

func TestCancel_CutoffBeforeShowtime(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, model.BookingSummary, []model.SeatSlot) {
		f := newFixture(t, 2)
		slots := f.seedSlots(1500, 1250)
		b := f.newBooking(uuid.New())
		for _, s := range slots {
			_, err := f.hold(b.BookingID, s)
			require.NoError(t, err)
		}
		_, err := f.svc.Confirm(ctx, b.BookingID)
		require.NoError(t, err)
		return f, b, slots
	}

	t.Run("59 minutes before start", func(t *testing.T) {
		f, b, slots := setup(t)
		f.clock.Advance(f.show.StartsAt.Sub(f.clock.Now()) - 59*time.Minute)

		_, err := f.svc.Cancel(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrCancellationWindowClosed)
		assert.Equal(t, model.BookingConfirmed, f.booking(b.BookingID).Status)
		assert.Equal(t, model.SeatBooked, f.slot(slots[0].SeatID).Status)
	})

	t.Run("exactly 60 minutes before start", func(t *testing.T) {
		f, b, _ := setup(t)
		f.clock.Advance(f.show.StartsAt.Sub(f.clock.Now()) - time.Hour)

		_, err := f.svc.Cancel(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrCancellationWindowClosed)
	})

	t.Run("61 minutes before start", func(t *testing.T) {
		f, b, slots := setup(t)
		f.clock.Advance(f.show.StartsAt.Sub(f.clock.Now()) - 61*time.Minute)

		summary, err := f.svc.Cancel(ctx, b.BookingID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, summary.Status)
		for _, s := range slots {
			assert.Equal(t, model.SeatAvailable, f.slot(s.SeatID).Status)
		}
		f.requireConserved(b.BookingID)
	})
}

func TestCancel_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("twice", func(t *testing.T) {
		f := newFixture(t, 1)
		slots := f.materialize(1000)
		b := f.newBooking(uuid.New())
		_, err := f.hold(b.BookingID, slots[0])
		require.NoError(t, err)
		_, err = f.svc.Cancel(ctx, b.BookingID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrInvalidBookingState)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t, 1)
		_, err := f.svc.Cancel(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrBookingNotFound)
	})

	t.Run("lapsed pending booking", func(t *testing.T) {
		f := newFixture(t, 1)
		slots := f.materialize(1000)
		b := f.newBooking(uuid.New())
		_, err := f.hold(b.BookingID, slots[0])
		require.NoError(t, err)
		f.clock.Advance(20 * time.Minute)

		_, err = f.svc.Cancel(ctx, b.BookingID)
		assert.ErrorIs(t, err, service.ErrBookingExpired)
		assert.Equal(t, model.BookingExpired, f.booking(b.BookingID).Status)
		assert.Equal(t, model.SeatAvailable, f.slot(slots[0].SeatID).Status)
	})
}

func TestCancel_FreedSeatsCanBeHeldAgain(t *testing.T) {
	f := newFixture(t, 1)
	slots := f.materialize(1000)
	first := f.newBooking(uuid.New())
	_, err := f.hold(first.BookingID, slots[0])
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), first.BookingID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), first.BookingID)
	require.NoError(t, err)

	second := f.newBooking(uuid.New())
	summary, err := f.hold(second.BookingID, slots[0])
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SeatCount)
	f.requireConserved(first.BookingID, second.BookingID)
}

func TestDetail_OnlyForOwner(t *testing.T) {
	f := newFixture(t, 2)
	slots := f.materialize(1000)
	owner := uuid.New()
	b := f.newBooking(owner)
	_, err := f.hold(b.BookingID, slots[1])
	require.NoError(t, err)

	detail, err := f.svc.Detail(context.Background(), b.BookingID, owner)
	require.NoError(t, err)
	assert.Equal(t, b.BookingID, detail.ID)
	require.Len(t, detail.Seats, 1)
	assert.Equal(t, slots[1].SeatID, detail.Seats[0].SeatID)

	_, err = f.svc.Detail(context.Background(), b.BookingID, uuid.New())
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.svc.Detail(context.Background(), uuid.New(), owner)
	assert.ErrorIs(t, err, service.ErrBookingNotFound)
}

func TestListByUser_PagesNewestFirst(t *testing.T) {
	f := newFixture(t, 1)
	user := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, f.newBooking(user).BookingID)
		f.clock.Advance(time.Second)
	}
	f.newBooking(uuid.New())

	page, err := f.svc.ListByUser(context.Background(), user, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.Equal(t, ids[1], page.Items[1].ID)

	page, err = f.svc.ListByUser(context.Background(), user, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)

	page, err = f.svc.ListByUser(context.Background(), user, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)

	page, err = f.svc.ListByUser(context.Background(), user, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.Size)
	assert.Len(t, page.Items, 3)
}
