// Package service implements the seat-reservation core: seat inventory,
// the booking ledger, the lock-and-hold engine, confirmation/cancellation
// and expiry reclamation.  All state lives behind store.Store; every
// mutation is one store transaction.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// Catalog is the read side of movies, screens and showtimes, plus the one
// write the owner flow needs.
type Catalog interface {
	GetShowtime(ctx context.Context, id uuid.UUID) (model.Showtime, error)
	SeatsForScreen(ctx context.Context, screenID uuid.UUID) ([]model.ScreenSeat, error)
	ScheduleShowtime(ctx context.Context, st model.Showtime) error
	// UnscheduleShowtime removes a showtime that has no seat slots yet.
	UnscheduleShowtime(ctx context.Context, id uuid.UUID) error
}

// Notifier receives confirmed bookings once they are committed.  Delivery
// is best effort.
type Notifier interface {
	BookingConfirmed(ctx context.Context, c model.Confirmation) error
}

// StatsCache fronts AvailabilityStats.  Implementations must tolerate
// being unavailable: a miss or failed write only costs a store read.
//
// Get returns a generation token even on a miss.  Set must drop the write
// when Invalidate ran after that token was read, otherwise a snapshot
// taken before a seat change could outlive it.
type StatsCache interface {
	Get(ctx context.Context, showtimeID uuid.UUID) (stats model.AvailabilityStats, gen string, ok bool)
	Set(ctx context.Context, stats model.AvailabilityStats, gen string)
	Invalidate(ctx context.Context, showtimeID uuid.UUID)
}

// Rules are the fixed business parameters of the reservation flow.
type Rules struct {
	HoldWindow   time.Duration // booking lifetime before it expires
	MaxHeldSeats int           // seats one booking may hold at once
	CancelCutoff time.Duration // no cancellation closer than this to showtime start
	SweepBatch   int           // expired bookings reclaimed per sweep
}

// DefaultRules returns 15 minute holds, 12 seats, a 1 hour cancel cutoff.
func DefaultRules() Rules {
	return Rules{
		HoldWindow:   15 * time.Minute,
		MaxHeldSeats: 12,
		CancelCutoff: time.Hour,
		SweepBatch:   500,
	}
}

type options struct {
	now      func() time.Time
	log      *logrus.Entry
	rules    Rules
	notifier Notifier
	stats    StatsCache
	notifyTO time.Duration
}

// Option customizes a service.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the base logger; request-scoped entries found in the
// context take precedence.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRules overrides DefaultRules.  Zero fields keep their default.
func WithRules(r Rules) Option {
	return func(o *options) {
		if r.HoldWindow > 0 {
			o.rules.HoldWindow = r.HoldWindow
		}
		if r.MaxHeldSeats > 0 {
			o.rules.MaxHeldSeats = r.MaxHeldSeats
		}
		if r.CancelCutoff > 0 {
			o.rules.CancelCutoff = r.CancelCutoff
		}
		if r.SweepBatch > 0 {
			o.rules.SweepBatch = r.SweepBatch
		}
	}
}

// WithNotifier sets where confirmations are sent.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithStatsCache sets the availability cache.
func WithStatsCache(c StatsCache) Option {
	return func(o *options) { o.stats = c }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		rules:    DefaultRules(),
		notifyTO: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time { return o.now().UTC() }

func (o options) logger(ctx context.Context) *logrus.Entry {
	return logger.FromContext(ctx, o.log)
}

func (o options) invalidate(ctx context.Context, showtimeID uuid.UUID) {
	if o.stats != nil {
		o.stats.Invalidate(ctx, showtimeID)
	}
}
