package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeatStatus is the availability of a seat slot.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
)

// SeatSlot is the bookable unit for one physical seat in one showtime.
// There is exactly one slot per (showtime, seat) pair, created when the
// showtime's inventory is materialized.  SeatNumber, SeatType and
// PriceCents are copied from the layout at that moment and never change.
type SeatSlot struct {
	ShowtimeID uuid.UUID  `db:"showtime_id" json:"showtime_id"`         // seat_slots.showtime_id
	SeatID     uuid.UUID  `db:"seat_id" json:"seat_id"`                 // seat_slots.seat_id
	SeatNumber string     `db:"seat_number" json:"seat_number"`         // seat_slots.seat_number
	SeatType   string     `db:"seat_type" json:"seat_type"`             // seat_slots.seat_type
	Status     SeatStatus `db:"status" json:"status"`                   // seat_slots.status
	BookingID  *uuid.UUID `db:"booking_id" json:"-"`                    // seat_slots.booking_id (nullable)
	HeldUntil  *time.Time `db:"held_until" json:"held_until,omitempty"` // seat_slots.held_until (nullable)
	PriceCents int64      `db:"price_cents" json:"price_cents"`         // seat_slots.price_cents
	CreatedAt  time.Time  `db:"created_at" json:"-"`                    // seat_slots.created_at
	UpdatedAt  time.Time  `db:"updated_at" json:"-"`                    // seat_slots.updated_at
}

// HeldBy reports whether the slot is HELD under bookingID.
func (s SeatSlot) HeldBy(bookingID uuid.UUID) bool {
	return s.Status == SeatHeld && s.BookingID != nil && *s.BookingID == bookingID
}

// OwnedBy reports whether the slot is HELD or BOOKED under bookingID.
func (s SeatSlot) OwnedBy(bookingID uuid.UUID) bool {
	return s.Status != SeatAvailable && s.BookingID != nil && *s.BookingID == bookingID
}

// Hold marks the slot HELD by bookingID until the given deadline.
func (s *SeatSlot) Hold(bookingID uuid.UUID, until, now time.Time) {
	id := bookingID
	u := until.UTC()
	s.Status = SeatHeld
	s.BookingID = &id
	s.HeldUntil = &u
	s.UpdatedAt = now.UTC()
}

// Book turns a held slot into a sold one.  The holder is kept.
func (s *SeatSlot) Book(now time.Time) {
	s.Status = SeatBooked
	s.HeldUntil = nil
	s.UpdatedAt = now.UTC()
}

// Free returns the slot to AVAILABLE and clears the holder.
func (s *SeatSlot) Free(now time.Time) {
	s.Status = SeatAvailable
	s.BookingID = nil
	s.HeldUntil = nil
	s.UpdatedAt = now.UTC()
}

// Validate checks that holder and hold expiry agree with the status.
func (s SeatSlot) Validate() error {
	switch s.Status {
	case SeatAvailable:
		if s.BookingID != nil || s.HeldUntil != nil {
			return fmt.Errorf("seat %s: available slot carries a holder", s.SeatID)
		}
	case SeatHeld:
		if s.BookingID == nil || s.HeldUntil == nil {
			return fmt.Errorf("seat %s: held slot without holder or deadline", s.SeatID)
		}
	case SeatBooked:
		if s.BookingID == nil || s.HeldUntil != nil {
			return fmt.Errorf("seat %s: booked slot must have a holder and no deadline", s.SeatID)
		}
	default:
		return fmt.Errorf("seat %s: unknown status %q", s.SeatID, s.Status)
	}
	return nil
}

// AvailabilityStats counts the slots of one showtime by status.
type AvailabilityStats struct {
	ShowtimeID uuid.UUID `json:"showtime_id"`
	Total      int       `json:"total"`
	Available  int       `json:"available"`
	Held       int       `json:"held"`
	Booked     int       `json:"booked"`
}

// Add counts one slot in the given status.
func (a *AvailabilityStats) Add(status SeatStatus, n int) {
	switch status {
	case SeatAvailable:
		a.Available += n
	case SeatHeld:
		a.Held += n
	case SeatBooked:
		a.Booked += n
	}
	a.Total += n
}
