package middleware

import (
	"calcReco/business/recommendation"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Trace propagates X-Request-ID (or a fresh uuid) into the request context.
func Trace() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tid := c.Request().Header.Get(echo.HeaderXRequestID)
			if tid == "" {
				tid = uuid.NewString()
			}

			req := c.Request()
			c.SetRequest(req.WithContext(recommendation.WithTraceID(req.Context(), tid)))
			c.Response().Header().Set(echo.HeaderXRequestID, tid)

			return next(c)
		}
	}
}
