package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// InventoryService owns the per-showtime seat slots.
type InventoryService struct {
	store   store.Store
	catalog Catalog
	options
}

// NewInventoryService wires an InventoryService.
func NewInventoryService(st store.Store, catalog Catalog, opts ...Option) *InventoryService {
	return &InventoryService{store: st, catalog: catalog, options: buildOptions(opts)}
}

// Materialize creates one AVAILABLE slot per active seat of the
// showtime's screen, all at priceCents.  It may run once per showtime.
func (s *InventoryService) Materialize(ctx context.Context, showtimeID uuid.UUID, priceCents int64) (int, error) {
	if priceCents < 0 {
		return 0, ErrInvalidPrice
	}
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return 0, err
	}
	layout, err := s.catalog.SeatsForScreen(ctx, st.ScreenID)
	if err != nil {
		return 0, fmt.Errorf("load layout for screen %s: %w", st.ScreenID, err)
	}

	now := s.clock()
	slots := make([]model.SeatSlot, 0, len(layout))
	for _, seat := range layout {
		if !seat.Active {
			continue
		}
		slots = append(slots, model.SeatSlot{
			ShowtimeID: showtimeID,
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			Status:     model.SeatAvailable,
			PriceCents: priceCents,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if len(slots) == 0 {
		s.logger(ctx).WithField("screen_id", st.ScreenID).Warn("no active seats found for screen")
		return 0, ErrEmptyLayout
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockShowtime(ctx, showtimeID); err != nil {
			return err
		}
		existing, err := tx.LockShowtimeSeats(ctx, showtimeID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrAlreadyMaterialized
		}
		if err := tx.InsertSeats(ctx, slots); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyMaterialized
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, showtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"showtime_id": showtimeID,
		"seats":       len(slots),
	}).Info("initialized seat availability for showtime")
	return len(slots), nil
}

// ListSeats returns every slot of the showtime regardless of status.
func (s *InventoryService) ListSeats(ctx context.Context, showtimeID uuid.UUID) ([]model.SeatSlot, error) {
	if _, err := s.catalog.GetShowtime(ctx, showtimeID); err != nil {
		return nil, err
	}
	return s.store.ListSeats(ctx, showtimeID)
}

// AvailabilityStats counts slots by status.  The numbers are a snapshot
// and may trail concurrent holds, more so when served from the cache.
func (s *InventoryService) AvailabilityStats(ctx context.Context, showtimeID uuid.UUID) (model.AvailabilityStats, error) {
	var gen string
	if s.stats != nil {
		cached, g, ok := s.stats.Get(ctx, showtimeID)
		if ok {
			return cached, nil
		}
		gen = g
	}
	if _, err := s.catalog.GetShowtime(ctx, showtimeID); err != nil {
		return model.AvailabilityStats{}, err
	}
	stats, err := s.store.SeatStats(ctx, showtimeID)
	if err != nil {
		return model.AvailabilityStats{}, err
	}
	if s.stats != nil {
		s.stats.Set(ctx, stats, gen)
	}
	return stats, nil
}

// ReleaseReport summarizes one Release.
type ReleaseReport struct {
	SeatsDeleted      int64       `json:"seats_deleted"`
	BookingsCancelled []uuid.UUID `json:"bookings_cancelled"`
}

// errOwnersChanged marks a release attempt that found a seat owned by a
// booking it had not locked.
var errOwnersChanged = errors.New("seat owners changed during release")

const releaseAttempts = 3

// Release withdraws a showtime's inventory.  Every PENDING or CONFIRMED
// booking that holds or owns one of its seats is cancelled with its
// counters zeroed, then all slots are deleted, in one transaction.
func (s *InventoryService) Release(ctx context.Context, showtimeID uuid.UUID) (ReleaseReport, error) {
	var (
		report ReleaseReport
		err    error
	)
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		report, err = s.release(ctx, showtimeID)
		if !errors.Is(err, errOwnersChanged) {
			break
		}
	}
	if errors.Is(err, errOwnersChanged) {
		return ReleaseReport{}, ErrLockTimeout
	}
	if err != nil {
		return ReleaseReport{}, err
	}

	s.invalidate(ctx, showtimeID)
	s.logger(ctx).WithFields(logrus.Fields{
		"showtime_id":        showtimeID,
		"seats":              report.SeatsDeleted,
		"bookings_cancelled": len(report.BookingsCancelled),
	}).Info("deleted seat slots for showtime")
	return report, nil
}

// release locks the owning bookings before any seat.  The owners are read
// from a snapshot, so once the seats are locked the set is checked again
// and the attempt is abandoned if a new owner slipped in.
func (s *InventoryService) release(ctx context.Context, showtimeID uuid.UUID) (ReleaseReport, error) {
	var report ReleaseReport
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockShowtime(ctx, showtimeID); err != nil {
			return err
		}
		snapshot, err := s.store.ListSeats(ctx, showtimeID)
		if err != nil {
			return err
		}
		owners := ownersOf(snapshot)

		now := s.clock()
		locked := make(map[uuid.UUID]struct{}, len(owners))
		var cancelled []uuid.UUID
		for _, id := range owners {
			b, err := tx.LockBooking(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = struct{}{}
			if b.Status != model.BookingPending && b.Status != model.BookingConfirmed {
				continue
			}
			b.Close(model.BookingCancelled, now)
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
			cancelled = append(cancelled, id)
		}

		slots, err := tx.LockShowtimeSeats(ctx, showtimeID)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			if slot.BookingID == nil {
				continue
			}
			if _, ok := locked[*slot.BookingID]; !ok {
				return errOwnersChanged
			}
		}
		deleted, err := tx.DeleteSeats(ctx, showtimeID)
		if err != nil {
			return err
		}
		report = ReleaseReport{SeatsDeleted: deleted, BookingsCancelled: cancelled}
		return nil
	})
	return report, err
}

func ownersOf(slots []model.SeatSlot) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, slot := range slots {
		if slot.BookingID == nil {
			continue
		}
		if _, ok := seen[*slot.BookingID]; ok {
			continue
		}
		seen[*slot.BookingID] = struct{}{}
		ids = append(ids, *slot.BookingID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Schedule adds a showtime to the catalog and materializes its seats.  The
// layout is checked first so an empty screen never gets a showtime.  The
// two steps commit separately; when materializing fails the showtime is
// removed again.  If that removal fails too, the showtime stays without
// seats and POST /v1/owner/showtimes/:id/seats completes it.
func (s *InventoryService) Schedule(ctx context.Context, st model.Showtime, priceCents int64) (model.Showtime, int, error) {
	if priceCents < 0 {
		return model.Showtime{}, 0, ErrInvalidPrice
	}
	if !st.EndsAt.After(st.StartsAt) {
		return model.Showtime{}, 0, ErrInvalidSchedule
	}
	layout, err := s.catalog.SeatsForScreen(ctx, st.ScreenID)
	if err != nil {
		return model.Showtime{}, 0, fmt.Errorf("load layout for screen %s: %w", st.ScreenID, err)
	}
	active := 0
	for _, seat := range layout {
		if seat.Active {
			active++
		}
	}
	if active == 0 {
		return model.Showtime{}, 0, ErrEmptyLayout
	}

	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	st.StartsAt, st.EndsAt = st.StartsAt.UTC(), st.EndsAt.UTC()
	if err := s.catalog.ScheduleShowtime(ctx, st); err != nil {
		return model.Showtime{}, 0, err
	}
	created, err := s.catalog.GetShowtime(ctx, st.ID)
	if err != nil {
		return model.Showtime{}, 0, err
	}
	n, err := s.Materialize(ctx, st.ID, priceCents)
	if errors.Is(err, ErrAlreadyMaterialized) {
		return created, 0, err
	}
	if err != nil {
		s.unschedule(ctx, st.ID, err)
		return model.Showtime{}, 0, err
	}
	return created, n, nil
}

func (s *InventoryService) unschedule(ctx context.Context, showtimeID uuid.UUID, cause error) {
	entry := s.logger(ctx).WithFields(logrus.Fields{
		"showtime_id": showtimeID,
		"cause":       cause.Error(),
	})
	if err := s.catalog.UnscheduleShowtime(context.WithoutCancel(ctx), showtimeID); err != nil {
		entry.WithError(err).Error("failed to remove showtime without seats")
		return
	}
	entry.Warn("removed showtime after seat materialization failed")
}
