package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// Confirm sells every seat the booking holds.  The seat and booking
// transitions commit together; the notification is sent afterwards and
// its failure does not undo the confirmation.
func (s *BookingService) Confirm(ctx context.Context, bookingID uuid.UUID) (model.BookingDetail, error) {
	var (
		booking model.Booking
		sold    []model.SeatSlot
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return ErrInvalidBookingState
		}
		now := s.clock()
		if b.IsExpired(now) {
			return errBookingLapsed
		}

		owned, err := tx.LockSeatsByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		sold = sold[:0]
		for _, slot := range owned {
			if !slot.HeldBy(b.ID) {
				continue
			}
			slot.Book(now)
			if err := tx.UpdateSeat(ctx, slot); err != nil {
				return err
			}
			sold = append(sold, slot)
		}
		if len(sold) == 0 {
			return ErrNoSeatsHeld
		}

		b.Status = model.BookingConfirmed
		b.ConfirmedAt = &now
		b.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if errors.Is(err, errBookingLapsed) {
		return model.BookingDetail{}, s.reclaimLapsed(ctx, bookingID)
	}
	if err != nil {
		return model.BookingDetail{}, err
	}

	s.invalidate(ctx, booking.ShowtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"seats":      len(sold),
	}).Info("booking confirmed")

	s.notifyConfirmed(ctx, booking, sold)
	return model.BookingDetail{Booking: booking, Seats: sold}, nil
}

func (s *BookingService) notifyConfirmed(ctx context.Context, b model.Booking, seats []model.SeatSlot) {
	if s.notifier == nil {
		return
	}
	log := logger.WithBooking(s.logger(ctx), b.ID)

	// The request may finish before the broker answers.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTO)
	defer cancel()

	st, err := s.catalog.GetShowtime(ctx, b.ShowtimeID)
	if err != nil {
		log.WithError(err).Warn("confirmation not sent: showtime lookup failed")
		return
	}
	if err := s.notifier.BookingConfirmed(ctx, model.Confirmation{Booking: b, Showtime: st, Seats: seats}); err != nil {
		log.WithError(err).Warn("confirmation notification failed")
	}
}

// Cancel gives back every seat of the booking, sold or held.  It is only
// allowed while the showtime is more than the cancel cutoff away.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID) (model.BookingSummary, error) {
	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.BookingSummary{}, err
	}
	st, err := s.catalog.GetShowtime(ctx, current.ShowtimeID)
	if err != nil {
		return model.BookingSummary{}, err
	}
	if !s.clock().Before(st.StartsAt.Add(-s.rules.CancelCutoff)) {
		return model.BookingSummary{}, ErrCancellationWindowClosed
	}

	var (
		summary  model.BookingSummary
		released int
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCancelled || b.Status == model.BookingExpired {
			return ErrInvalidBookingState
		}
		now := s.clock()
		if b.Status == model.BookingPending && b.IsExpired(now) {
			return errBookingLapsed
		}

		owned, err := tx.LockSeatsByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		for _, slot := range owned {
			slot.Free(now)
			if err := tx.UpdateSeat(ctx, slot); err != nil {
				return err
			}
		}
		released = len(owned)

		b.Close(model.BookingCancelled, now)
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

	s.invalidate(ctx, current.ShowtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"released":   released,
	}).Info("booking cancelled")
	return summary, nil
}
