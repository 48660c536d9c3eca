package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-core/internal/auth"
	"github.com/iliyamo/cinema-booking-core/internal/logger"
)

// Context keys set by JWTAuth.
const (
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// JWTAuth validates a Bearer access token and injects the caller into the
// echo context: "user_id" holds a uuid.UUID and "role" a string.  The
// request-scoped logger is tagged with the user id as well, so service
// logs can be traced back to the caller.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(RoleKey, claims.Role)

			req := c.Request()
			ctx := req.Context()
			entry := logger.WithUserID(logger.FromContext(ctx, nil), claims.UserID.String())
			c.SetRequest(req.WithContext(logger.ToContext(ctx, entry)))
			return next(c)
		}
	}
}
