package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// errorEnvelope writes the API error shape without importing the parent package.
func errorEnvelope(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]interface{}{
		"status":  status,
		"message": http.StatusText(status),
		"data": []map[string]string{
			{"code": code, "message": message},
		},
	})
}
