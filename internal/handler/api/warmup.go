package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

// WarmupQueuer queues background training for symbols and timeframes.
type WarmupQueuer func(ctx context.Context, symbols []string, tfs []domrepo.Timeframe) (int, error)

// WarmupHandler accepts warm-up requests for the shared model cache.
type WarmupHandler struct {
	logger *xlogger.Logger
	queue  WarmupQueuer
}

func NewWarmupHandler(logger *xlogger.Logger, q WarmupQueuer) *WarmupHandler {
	return &WarmupHandler{logger: logger, queue: q}
}

func (h *WarmupHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/models/warmup", h.Warmup)
}

type warmupResponse struct {
	Queued int `json:"queued"`
}

func (h *WarmupHandler) Warmup(c echo.Context) error {
	req := &models.WarmupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tfs := make([]domrepo.Timeframe, 0, len(req.Timeframes))
	for _, raw := range req.Timeframes {
		tf, err := domrepo.ParseTimeframe(raw)
		if err != nil {
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		tfs = append(tfs, tf)
	}

	n, err := h.queue(c.Request().Context(), req.Symbols, tfs)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			appErr = xhttp.ServiceUnavailableError("warm-up queue unavailable").WithError(err)
			h.logger.Error("enqueue warmup", xlogger.Int("queued", n), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.AcceptedResponse(c, warmupResponse{Queued: n})
}
