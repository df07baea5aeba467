package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness and whether contract writes are enabled.
func Health(canWrite func() bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":    "ok",
			"read_only": !canWrite(),
		})
	}
}
