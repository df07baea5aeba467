package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireWritable rejects requests with 503 when canWrite reports that
// transactions cannot be signed.
func RequireWritable(canWrite func() bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !canWrite() {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "marketplace is read-only"})
			}
			return next(c)
		}
	}
}
