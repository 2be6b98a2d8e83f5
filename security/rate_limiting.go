// Package security provides rate-limit middleware for the surrounding web
// layer, backed by the same sliding-window limiter the core endpoints use.
package security

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v5"

	"guestpass/services"
)

type RateLimitMiddleware struct {
	limiter     *services.RateLimiter
	maxAttempts int
	window      time.Duration
}

func NewRateLimitMiddleware(limiter *services.RateLimiter, maxAttempts int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:     limiter,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Limit gates an echo route under the given action name. Keys are per user
// when authenticated, per IP otherwise. The middleware fails open when the
// limiter's store is unreachable.
func (m *RateLimitMiddleware) Limit(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("%s:%s", action, identify(c))

			decision, err := m.limiter.Check(c.Request().Context(), key, m.maxAttempts, m.window)
			if err != nil {
				return next(c)
			}
			if !decision.Allowed {
				return c.JSON(429, map[string]any{
					"error":       "Rate limit exceeded. Please try again later.",
					"retry_after": decision.ResetAt,
				})
			}

			return next(c)
		}
	}
}

func identify(c echo.Context) string {
	// Rate limit by user id for authenticated requests, IP otherwise
	if userID := c.Get("user_id"); userID != nil {
		return fmt.Sprintf("user:%v", userID)
	}
	return c.RealIP()
}
