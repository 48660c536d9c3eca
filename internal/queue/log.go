package queue

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// LogNotifier writes confirmations to the application log.  It is the
// default when no broker is configured.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log.WithField("component", "notifier")}
}

func (n *LogNotifier) BookingConfirmed(_ context.Context, c model.Confirmation) error {
	ev := NewBookingConfirmedEvent(c)
	n.log.WithFields(logrus.Fields{
		"booking_id":  ev.BookingID,
		"user_id":     ev.UserID,
		"showtime_id": ev.ShowtimeID,
		"movie":       ev.MovieTitle,
		"seat_count":  ev.SeatCount,
		"seats":       ev.seatNumbers(),
		"total_cents": ev.TotalPriceCents,
	}).Info("booking confirmed")
	return nil
}
