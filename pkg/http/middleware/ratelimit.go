package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Allower decides whether a request from key may proceed.
type Allower interface {
	Allow(key string) bool
}

// RateLimit rejects requests with 429 once the client's budget is spent.
// Clients are keyed by real IP. skip exempts paths such as /health and /metrics.
func RateLimit(a Allower, skip ...string) echo.MiddlewareFunc {
	exempt := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		exempt[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := exempt[c.Path()]; ok {
				return next(c)
			}
			if !a.Allow(c.RealIP()) {
				return errorEnvelope(c, http.StatusTooManyRequests, "ERR_RATE_LIMITED", "too many requests")
			}
			return next(c)
		}
	}
}
