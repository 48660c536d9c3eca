package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/logger"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = echo.HeaderXRequestID

// RequestLogger attaches a request-scoped logrus entry to the request
// context and logs one line per request once the handler has finished.
// An incoming X-Request-ID is reused, otherwise a new one is generated.
func RequestLogger(base *logrus.Entry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := req.Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, rid)

			entry := logger.WithRequestID(base, rid)
			c.SetRequest(req.WithContext(logger.ToContext(req.Context(), entry)))

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is known.
				c.Error(err)
			}

			// JWTAuth may have replaced the entry with a user-tagged one.
			fields := logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			}
			log := logger.FromContext(c.Request().Context(), entry).WithFields(fields)
			switch status := c.Response().Status; {
			case status >= 500:
				log.WithError(err).Error("request failed")
			case status >= 400:
				log.Info("request rejected")
			default:
				log.Debug("request served")
			}
			return nil
		}
	}
}
