// Package sweeper runs the expired-booking sweep on a fixed interval.
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/service"
)

// Expirer is the part of the booking service the sweeper drives.
type Expirer interface {
	SweepExpired(ctx context.Context) (service.SweepReport, error)
}

// Lease keeps replicas from sweeping at the same moment.  Losing the race
// only skips one tick.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Runner sweeps once on start and then every interval until its context
// is cancelled.
type Runner struct {
	expirer  Expirer
	interval time.Duration
	lease    Lease
	log      *logrus.Entry
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLease makes every tick try the lease first.
func WithLease(l Lease) Option { return func(r *Runner) { r.lease = l } }

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option { return func(r *Runner) { r.log = l } }

// New returns a Runner.  A non-positive interval falls back to 30 minutes.
func New(expirer Expirer, interval time.Duration, opts ...Option) *Runner {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	r := &Runner{
		expirer:  expirer,
		interval: interval,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "sweeper")
	return r
}

// Run blocks until ctx is done and then returns nil.  Sweep failures are
// logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.log.WithField("interval", r.interval.String()).Info("expiry sweeper started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one sweep, under the lease when one is configured.  It
// reports whether a sweep actually ran.
func (r *Runner) Tick(ctx context.Context) bool {
	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx)
		if err != nil {
			// Redis trouble must not stop expiry; sweeping twice is harmless.
			r.log.WithError(err).Warn("sweep lease unavailable, sweeping anyway")
		} else if !ok {
			r.log.Debug("another replica holds the sweep lease")
			return false
		} else {
			defer func() {
				if err := r.lease.Release(context.WithoutCancel(ctx)); err != nil {
					r.log.WithError(err).Warn("sweep lease release failed")
				}
			}()
		}
	}

	report, err := r.expirer.SweepExpired(ctx)
	if err != nil && ctx.Err() == nil {
		r.log.WithError(err).Error("expiry sweep failed")
	}
	if report.Failed > 0 {
		r.log.WithField("failed", report.Failed).Warn("some expired bookings were not reclaimed")
	}
	return true
}
