package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/metrics"
)

// RequestID reuses the incoming X-Request-Id or generates one, echoes it in
// the response and attaches it to the request logger.
func RequestID(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqID := req.Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)
			if log != nil {
				c.SetRequest(req.WithContext(log.WithField(req.Context(), "request_id", reqID)))
			}
			return next(c)
		}
	}
}

// RequestLogger logs one request.complete line per request and records it
// in m.  Errors are passed to echo's error handler first so the logged
// status is the one the client sees.
func RequestLogger(log *logger.Logger, m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			m.Observe(req.Method, route, status, elapsed)

			if log != nil {
				ctx := log.WithFields(req.Context(), map[string]any{
					"method":      req.Method,
					"route":       route,
					"status":      status,
					"duration_ms": elapsed.Milliseconds(),
				})
				if status >= 500 {
					log.Warn(ctx, "request.complete", nil)
				} else {
					log.Info(ctx, "request.complete")
				}
			}
			// the error has been rendered already
			return nil
		}
	}
}
