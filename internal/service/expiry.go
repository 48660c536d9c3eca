package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Found   int `json:"found"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// ExpireBooking reclaims one booking whose hold window has lapsed: its
// HELD seats go back to AVAILABLE and it becomes EXPIRED.  Bookings that
// are not PENDING or not yet due are left alone, so calling it again is a
// no-op.  It reports whether this call did the transition.
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var (
		expired    bool
		released   int
		showtimeID uuid.UUID
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		now := s.clock()
		if b.Status != model.BookingPending || !b.IsExpired(now) {
			return nil
		}

		owned, err := tx.LockSeatsByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		for _, slot := range owned {
			if !slot.HeldBy(b.ID) {
				continue
			}
			slot.Free(now)
			if err := tx.UpdateSeat(ctx, slot); err != nil {
				return err
			}
			released++
		}

		b.Close(model.BookingExpired, now)
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		expired = true
		showtimeID = b.ShowtimeID
		return nil
	})
	if err != nil || !expired {
		return false, err
	}

	s.invalidate(ctx, showtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"released":   released,
	}).Info("released held seats for expired booking")
	return true, nil
}

// SweepExpired reclaims every PENDING booking past its expiry.  Ids are
// read in pages of SweepBatch until a short page comes back.  Each booking
// is its own transaction; a failure is logged and the sweep moves on.
// Failed bookings are skipped on later pages and widen the page so they
// cannot starve the rest.  CONFIRMED bookings are never selected.
func (s *BookingService) SweepExpired(ctx context.Context) (SweepReport, error) {
	log := s.logger(ctx)
	now := s.clock()
	failed := make(map[uuid.UUID]struct{})

	var report SweepReport
	for ctx.Err() == nil {
		limit := s.rules.SweepBatch + len(failed)
		ids, err := s.store.ExpiredBookingIDs(ctx, now, limit)
		if err != nil {
			return report, err
		}

		fresh := 0
		for _, id := range ids {
			if _, seen := failed[id]; seen {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			fresh++
			report.Found++
			ok, err := s.ExpireBooking(ctx, id)
			if err != nil {
				report.Failed++
				failed[id] = struct{}{}
				logger.WithBooking(log, id).WithError(err).Error("failed to expire booking")
				continue
			}
			if ok {
				report.Expired++
			}
		}
		if len(ids) < limit || fresh == 0 {
			break
		}
	}

	log.WithFields(logrus.Fields{
		"found":   report.Found,
		"expired": report.Expired,
		"failed":  report.Failed,
	}).Info("expired booking sweep finished")
	return report, ctx.Err()
}
