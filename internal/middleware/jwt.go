package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/adspace-marketplace/internal/utils"
)

// UserIDKey is the echo context key JWTAuth stores the token subject under.
const UserIDKey = "user_id"

// JWTAuth validates a Bearer access token and stores its subject under
// UserIDKey.  Handlers read it with UserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			sub, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(UserIDKey, sub)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(UserIDKey).(string)
	return s
}
