package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Limiter grants or refuses one request for key.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit refuses requests beyond the per-client budget with 429. Only
// paths under prefix are limited.
func RateLimit(lim Limiter, prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if lim == nil || !strings.HasPrefix(c.Request().URL.Path, prefix) {
				return next(c)
			}
			if !lim.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
