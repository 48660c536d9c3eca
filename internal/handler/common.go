// Package handler adapts the reservation services to JSON over HTTP.
package handler

import (
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/middleware"
)

var errNoCaller = errors.New("invalid user_id in context")

// getUserID returns the caller stored by the JWT middleware.
func getUserID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(middleware.UserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errNoCaller
	}
	return id, nil
}

// pathUUID parses the named path parameter.
func pathUUID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
