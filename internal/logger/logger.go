// Package logger configures the process-wide logrus logger and carries
// request-scoped entries through context.Context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config selects level and output format.  Format is "json" or "text";
// when empty, production environments get JSON and everything else text.
type Config struct {
	Level  string
	Format string
	Env    string
	Output io.Writer
}

// New builds a logger from cfg.  Unknown levels fall back to info.
func New(cfg Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "text"
		if strings.EqualFold(cfg.Env, "prod") || strings.EqualFold(cfg.Env, "production") {
			format = "json"
		}
	}
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

type ctxKey struct{}

// ToContext stores entry in ctx for FromContext.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by ToContext, or fallback when
// there is none.  A nil fallback means the standard logger.
func FromContext(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && e != nil {
			return e
		}
	}
	if fallback != nil {
		return fallback
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// WithRequestID tags every line logged through the returned entry.
func WithRequestID(entry *logrus.Entry, requestID string) *logrus.Entry {
	return entry.WithField("request_id", requestID)
}

// WithUserID tags the entry with the authenticated caller.
func WithUserID(entry *logrus.Entry, userID string) *logrus.Entry {
	return entry.WithField("user_id", userID)
}

// WithBooking tags the entry with the booking being worked on.
func WithBooking(entry *logrus.Entry, bookingID uuid.UUID) *logrus.Entry {
	return entry.WithField("booking_id", bookingID.String())
}

// Discard is an entry that drops everything; handy in tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
