package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// errBookingLapsed aborts a transaction that found its PENDING booking
// past expiry.  The caller reclaims the booking in a transaction of its
// own and reports ErrBookingExpired.
var errBookingLapsed = errors.New("booking lapsed")

// Hold places seatID of showtimeID into the booking's cart.  The booking
// and the seat slot are both locked for the whole check-and-set, so of
// several concurrent holds on one seat exactly one wins and the rest see
// ErrSeatUnavailable.
//
// callerID is only used for logging; ownership is checked by the caller.
func (s *BookingService) Hold(ctx context.Context, bookingID, seatID, showtimeID, callerID uuid.UUID) (model.BookingSummary, error) {
	var summary model.BookingSummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		slot, err := tx.LockSeat(ctx, showtimeID, seatID)
		if err != nil {
			return err
		}
		if b.ShowtimeID != showtimeID {
			return ErrSeatNotFound
		}

		now := s.clock()
		if err := checkOpen(b, now); err != nil {
			return err
		}
		if slot.Status != model.SeatAvailable {
			return ErrSeatUnavailable
		}
		held, err := tx.CountHeld(ctx, bookingID)
		if err != nil {
			return err
		}
		if held >= s.rules.MaxHeldSeats {
			return ErrHoldLimitExceeded
		}

		slot.Hold(b.ID, b.ExpiresAt, now)
		b.AddSeat(slot.PriceCents)
		b.UpdatedAt = now
		if err := tx.UpdateSeat(ctx, slot); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		summary = b.Summary()
		return nil
	})
	if errors.Is(err, errBookingLapsed) {
		return model.BookingSummary{}, s.reclaimLapsed(ctx, bookingID)
	}
	if err != nil {
		return model.BookingSummary{}, err
	}

	s.invalidate(ctx, showtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"seat_id":    seatID,
		"caller_id":  callerID,
		"seat_count": summary.SeatCount,
	}).Info("seat held")
	return summary, nil
}

// Release gives a held seat back.  Only the booking that holds the seat
// may release it.
func (s *BookingService) Release(ctx context.Context, bookingID, seatID, showtimeID, callerID uuid.UUID) (model.BookingSummary, error) {
	var summary model.BookingSummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		slot, err := tx.LockSeat(ctx, showtimeID, seatID)
		if err != nil {
			return err
		}

		now := s.clock()
		if b.Status == model.BookingPending && b.IsExpired(now) {
			return errBookingLapsed
		}
		if !slot.HeldBy(b.ID) {
			return ErrSeatNotHeldByBooking
		}

		slot.Free(now)
		b.RemoveSeat(slot.PriceCents)
		b.UpdatedAt = now
		if err := tx.UpdateSeat(ctx, slot); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		summary = b.Summary()
		return nil
	})
	if errors.Is(err, errBookingLapsed) {
		return model.BookingSummary{}, s.reclaimLapsed(ctx, bookingID)
	}
	if err != nil {
		return model.BookingSummary{}, err
	}

	s.invalidate(ctx, showtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"seat_id":    seatID,
		"caller_id":  callerID,
		"seat_count": summary.SeatCount,
	}).Info("seat released")
	return summary, nil
}

// checkOpen accepts only PENDING bookings whose window is still open.
func checkOpen(b model.Booking, now time.Time) error {
	switch {
	case b.Status == model.BookingExpired:
		return ErrBookingExpired
	case b.Status != model.BookingPending:
		return ErrInvalidBookingState
	case b.IsExpired(now):
		return errBookingLapsed
	}
	return nil
}

// reclaimLapsed expires a booking found past its deadline and always
// reports ErrBookingExpired; a failed reclamation is left to the sweeper.
func (s *BookingService) reclaimLapsed(ctx context.Context, bookingID uuid.UUID) error {
	if _, err := s.ExpireBooking(ctx, bookingID); err != nil {
		logger.WithBooking(s.logger(ctx), bookingID).WithError(err).
			Warn("inline reclamation of expired booking failed")
	}
	return ErrBookingExpired
}
