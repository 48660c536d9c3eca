package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// IsValid reports whether s is one of the known statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingConfirmed || s == BookingCancelled || s == BookingExpired
}

// Booking is a user's cart of held seats for one showtime.  It is created
// PENDING with a fixed expiry and ends in exactly one of CONFIRMED,
// CANCELLED or EXPIRED.
//
// Fields:
//
//	SeatCount       – number of seat slots HELD or BOOKED under this booking.
//	TotalPriceCents – sum of the prices of those slots.
//	ExpiresAt       – hold deadline fixed at creation; never extended.
//	ConfirmedAt     – set only when the booking is CONFIRMED.
type Booking struct {
	ID              uuid.UUID     `db:"id" json:"booking_id"`                       // bookings.id
	UserID          uuid.UUID     `db:"user_id" json:"user_id"`                     // bookings.user_id
	ShowtimeID      uuid.UUID     `db:"showtime_id" json:"showtime_id"`             // bookings.showtime_id
	Status          BookingStatus `db:"status" json:"status"`                       // bookings.status
	SeatCount       int           `db:"seat_count" json:"seat_count"`               // bookings.seat_count
	TotalPriceCents int64         `db:"total_price_cents" json:"total_price_cents"` // bookings.total_price_cents
	ExpiresAt       time.Time     `db:"expires_at" json:"expires_at"`               // bookings.expires_at
	ConfirmedAt     *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"` // bookings.confirmed_at (nullable)
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`               // bookings.created_at
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`               // bookings.updated_at
}

// NewBooking returns a PENDING booking with no seats that expires after
// window.
func NewBooking(showtimeID, userID uuid.UUID, now time.Time, window time.Duration) Booking {
	now = now.UTC()
	return Booking{
		ID:         uuid.New(),
		UserID:     userID,
		ShowtimeID: showtimeID,
		Status:     BookingPending,
		ExpiresAt:  now.Add(window),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsExpired reports whether the hold window has lapsed at now.  A booking
// is usable only while its expiry is strictly after now.
func (b Booking) IsExpired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// AddSeat accounts for one more seat held under the booking.
func (b *Booking) AddSeat(priceCents int64) {
	b.SeatCount++
	b.TotalPriceCents += priceCents
}

// RemoveSeat reverses AddSeat.
func (b *Booking) RemoveSeat(priceCents int64) {
	b.SeatCount--
	b.TotalPriceCents -= priceCents
}

// Close moves the booking into a terminal status that owns no seats.
func (b *Booking) Close(status BookingStatus, now time.Time) {
	b.Status = status
	b.SeatCount = 0
	b.TotalPriceCents = 0
	b.UpdatedAt = now.UTC()
}

// Summary is the projection returned by hold/release and create.
func (b Booking) Summary() BookingSummary {
	return BookingSummary{
		BookingID:       b.ID,
		ShowtimeID:      b.ShowtimeID,
		SeatCount:       b.SeatCount,
		TotalPriceCents: b.TotalPriceCents,
		ExpiresAt:       b.ExpiresAt,
		Status:          b.Status,
	}
}

// BookingSummary is the small view of a booking handed back after every
// cart mutation.
type BookingSummary struct {
	BookingID       uuid.UUID     `json:"booking_id"`
	ShowtimeID      uuid.UUID     `json:"showtime_id"`
	SeatCount       int           `json:"seat_count"`
	TotalPriceCents int64         `json:"total_price_cents"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Status          BookingStatus `json:"status"`
}

// BookingDetail is a booking together with the seat slots it currently
// owns.
type BookingDetail struct {
	Booking
	Seats []SeatSlot `json:"seats"`
}

// BookingPage is one page of a user's bookings, newest first.
type BookingPage struct {
	Items []Booking `json:"items"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
	Total int       `json:"total"`
}
