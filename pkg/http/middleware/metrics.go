package middleware

import (
	"github.com/labstack/echo/v4"

	pkgmetrics "EdgeScan/pkg/metrics"
)

// Metrics records request count, latency and size per route template.
func Metrics(m *pkgmetrics.HTTP) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			done := m.Begin(route(c), c.Request().Method)
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			res := c.Response()
			done(res.Status, res.Size)
			return nil
		}
	}
}
