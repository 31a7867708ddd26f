package server

import (
	"strconv"
	"time"

	"credit-risk-engine/internal/common/metrics"

	"github.com/labstack/echo/v4"
)

// requestLogger logs each request and observes its latency.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)

		status := c.Response().Status
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
			Observe(duration.Seconds())

		if route == "/metrics" || route == "/health" {
			return nil
		}
		s.logger.Info("http request", map[string]interface{}{
			"method":     c.Request().Method,
			"uri":        c.Request().RequestURI,
			"status":     status,
			"duration":   duration.String(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		return nil
	}
}
