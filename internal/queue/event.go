// Package queue publishes booking confirmations to a message broker and
// consumes them back into a log file.  RabbitMQ and Kafka publishers
// share one JSON payload.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// BookingConfirmedEvent is published when a booking is confirmed.  It
// carries enough for downstream consumers to log, notify or trigger
// analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID       string      `json:"booking_id"`
	UserID          string      `json:"user_id"`
	ShowtimeID      string      `json:"showtime_id"`
	CinemaName      string      `json:"cinema_name"`
	ScreenName      string      `json:"screen_name"`
	MovieTitle      string      `json:"movie_title"`
	StartsAt        string      `json:"starts_at"`
	EndsAt          string      `json:"ends_at"`
	SeatCount       int         `json:"seat_count"`
	Seats           []EventSeat `json:"seats"`
	TotalPriceCents int64       `json:"total_price_cents"`
	ConfirmedAt     string      `json:"confirmed_at"`
}

// EventSeat is one sold seat as it appears in the event.
type EventSeat struct {
	SeatID     string `json:"seat_id"`
	SeatNumber string `json:"seat_number"`
	Type       string `json:"type"`
	PriceCents int64  `json:"price_cents"`
}

// seatNumbers lists the seat numbers in event order.
func (e BookingConfirmedEvent) seatNumbers() []string {
	out := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		out[i] = s.SeatNumber
	}
	return out
}

// NewBookingConfirmedEvent flattens a confirmation into the wire payload.
// Times are RFC 3339 in UTC.
func NewBookingConfirmedEvent(c model.Confirmation) BookingConfirmedEvent {
	seats := make([]EventSeat, len(c.Seats))
	for i, s := range c.Seats {
		seats[i] = EventSeat{
			SeatID:     s.SeatID.String(),
			SeatNumber: s.SeatNumber,
			Type:       s.SeatType,
			PriceCents: s.PriceCents,
		}
	}
	confirmedAt := c.Booking.UpdatedAt
	if c.Booking.ConfirmedAt != nil {
		confirmedAt = *c.Booking.ConfirmedAt
	}
	return BookingConfirmedEvent{
		BookingID:       c.Booking.ID.String(),
		UserID:          c.Booking.UserID.String(),
		ShowtimeID:      c.Booking.ShowtimeID.String(),
		CinemaName:      c.Showtime.CinemaName,
		ScreenName:      c.Showtime.ScreenName,
		MovieTitle:      c.Showtime.MovieTitle,
		StartsAt:        c.Showtime.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          c.Showtime.EndsAt.UTC().Format(time.RFC3339),
		SeatCount:       len(seats),
		Seats:           seats,
		TotalPriceCents: c.Booking.TotalPriceCents,
		ConfirmedAt:     confirmedAt.UTC().Format(time.RFC3339),
	}
}
