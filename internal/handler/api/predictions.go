package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

// PredictionService is the use case surface served over HTTP.
type PredictionService interface {
	Predict(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.PredictionReport, error)
	Compare(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.ModelComparison, error)
	Analyze(ctx context.Context, symbol string) (*models.TimeframeAnalysis, error)
	Refresh(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.RefreshResult, error)
	Invalidate(ctx context.Context, symbol string, tf domrepo.Timeframe) error
	Importance(ctx context.Context, symbol string, tf domrepo.Timeframe, top int) (*models.ImportanceReport, error)
}

// PredictionsHandler exposes forecasts, model comparison and model maintenance.
type PredictionsHandler struct {
	logger *xlogger.Logger
	svc    PredictionService
}

func NewPredictionsHandler(logger *xlogger.Logger, svc PredictionService) *PredictionsHandler {
	return &PredictionsHandler{logger: logger, svc: svc}
}

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	live := e.Group("/live/stocks")
	live.GET("/:symbol/predict", h.Predict)
	live.GET("/:symbol/analysis", h.Analysis)

	m := e.Group("/models")
	m.GET("/compare-all/:symbol", h.Compare)
	m.POST("/:symbol/refresh", h.Refresh)
	m.DELETE("/:symbol", h.Invalidate)
	m.GET("/:symbol/importance", h.Importance)
}

func (h *PredictionsHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return h.fail(c, "predict", err)
	}

	res, err := h.svc.Predict(c.Request().Context(), req.Symbol, tf)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Compare(c echo.Context) error {
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return h.fail(c, "compare", err)
	}

	res, err := h.svc.Compare(c.Request().Context(), req.Symbol, tf)
	if err != nil {
		return h.fail(c, "compare", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.Analyze(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return h.fail(c, "refresh", err)
	}

	res, err := h.svc.Refresh(c.Request().Context(), req.Symbol, tf)
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Invalidate(c echo.Context) error {
	req := &models.InvalidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return h.fail(c, "invalidate", err)
	}

	if err := h.svc.Invalidate(c.Request().Context(), req.Symbol, tf); err != nil {
		return h.fail(c, "invalidate", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PredictionsHandler) Importance(c echo.Context) error {
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := domrepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return h.fail(c, "importance", err)
	}

	res, err := h.svc.Importance(c.Request().Context(), req.Symbol, tf, req.Top)
	if err != nil {
		return h.fail(c, "importance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	fields := []xlogger.Field{
		xlogger.String("op", op),
		xlogger.String("symbol", c.Param("symbol")),
		xlogger.Int("status", appErr.Status),
		xlogger.Error(err),
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("prediction usecase error", fields...)
	} else {
		h.logger.Debug("prediction request rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain failures onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var (
		ih *models.InsufficientHistoryError
		is *models.InsufficientSamplesError
		ii *models.InvalidInputError
	)
	switch {
	case errors.As(err, &ih):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", ih.Error(), http.StatusBadRequest).
			WithParam("have", ih.Have).WithParam("need", ih.Need).WithError(err)
	case errors.As(err, &is):
		return xhttp.NewAppError("ERR_INSUFFICIENT_SAMPLES", "", is.Error(), http.StatusBadRequest).
			WithParam("have", is.Have).WithParam("need", is.Need).WithError(err)
	case errors.Is(err, models.ErrUnknownTimeframe):
		return xhttp.BadRequestError(err.Error()).WithField("timeframe").
			WithParam("options", domrepo.AllTimeframes()).WithError(err)
	case errors.As(err, &ii):
		return xhttp.BadRequestError(ii.Error()).WithField(ii.Field).WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.NewAppError("ERR_MODEL_NOT_TRAINED", "", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrSymbolNotFound):
		return xhttp.NotFoundError(err.Error()).WithField("symbol").WithError(err)
	case errors.Is(err, models.ErrTrainingTimeout), errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("model training did not finish in time, retry later").WithError(err)
	default:
		return xhttp.InternalError("prediction failed").WithError(err)
	}
}
