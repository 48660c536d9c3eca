package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/model"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// BookingService runs the booking lifecycle: create, hold and release
// seats, confirm, cancel and expire.
type BookingService struct {
	store   store.Store
	catalog Catalog
	options
}

// NewBookingService wires a BookingService.
func NewBookingService(st store.Store, catalog Catalog, opts ...Option) *BookingService {
	return &BookingService{store: st, catalog: catalog, options: buildOptions(opts)}
}

// Rules returns the rules the service was built with.
func (s *BookingService) Rules() Rules { return s.rules }

// Create opens an empty PENDING booking for userID on the showtime.  No
// seats are touched.
func (s *BookingService) Create(ctx context.Context, showtimeID, userID uuid.UUID) (model.BookingSummary, error) {
	if _, err := s.catalog.GetShowtime(ctx, showtimeID); err != nil {
		return model.BookingSummary{}, err
	}

	b := model.NewBooking(showtimeID, userID, s.clock(), s.rules.HoldWindow)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		return model.BookingSummary{}, err
	}

	s.logger(ctx).WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"showtime_id": showtimeID,
		"user_id":     userID,
		"expires_at":  b.ExpiresAt,
	}).Info("booking created")
	return b.Summary(), nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, bookingID uuid.UUID) (model.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

// Detail returns the booking with its seats, provided userID owns it.
func (s *BookingService) Detail(ctx context.Context, bookingID, userID uuid.UUID) (model.BookingDetail, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	if b.UserID != userID {
		return model.BookingDetail{}, ErrForbidden
	}
	seats, err := s.store.SeatsByBooking(ctx, bookingID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	return model.BookingDetail{Booking: b, Seats: seats}, nil
}

// ListByUser pages through a user's bookings, newest first.  Pages are
// 1-based; out of range values fall back to the defaults.
func (s *BookingService) ListByUser(ctx context.Context, userID uuid.UUID, page, size int) (model.BookingPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	items, total, err := s.store.ListBookingsByUser(ctx, userID, size, (page-1)*size)
	if err != nil {
		return model.BookingPage{}, err
	}
	return model.BookingPage{Items: items, Page: page, Size: size, Total: total}, nil
}
