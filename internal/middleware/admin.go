package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"
)

// AdminKeyHeader carries the administrator API key.
const AdminKeyHeader = "X-Admin-Key"

// AdminMiddleware guards the administrator surface with a static API key.
// With no key configured the surface is disabled entirely.
func AdminMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			if apiKey == "" {
				log.Warn("Admin surface disabled: no ADMIN_API_KEY configured")
				prometheus.RecordError("admin_disabled")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin surface disabled"})
			}

			provided := c.Request().Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				log.Warn("Admin authentication failed")
				prometheus.RecordError("admin_auth_failed")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid admin key"})
			}

			c.Set("email", "admin")
			return next(c)
		}
	}
}
