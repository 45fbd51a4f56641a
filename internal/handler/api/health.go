package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	xhttp "FinCast/pkg/http"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// CacheSizer reports the number of models held in memory.
type CacheSizer interface {
	Len() int
}

// HealthHandler serves /health. Any failing check reports 503 "degraded".
type HealthHandler struct {
	checks  map[string]HealthCheck
	cache   CacheSizer
	timeout time.Duration
	started time.Time
}

func NewHealthHandler(cache CacheSizer, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, cache: cache, timeout: 2 * time.Second, started: time.Now()}
}

type healthResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks,omitempty"`
	CachedModels  int               `json:"cachedModels"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	// Checks report through statuses, so the group never cancels a sibling.
	statuses := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = "ok"
			if err := h.checks[name](ctx); err != nil {
				statuses[i] = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]string, len(names))
	for i, name := range names {
		results[name] = statuses[i]
	}

	res := healthResponse{Status: "ok", UptimeSeconds: int64(time.Since(h.started).Seconds())}
	if h.cache != nil {
		res.CachedModels = h.cache.Len()
	}
	if len(results) > 0 {
		res.Checks = results
	}
	for _, s := range results {
		if s != "ok" {
			res.Status = "degraded"
			break
		}
	}
	if res.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}
