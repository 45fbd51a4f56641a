package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

type fakeService struct {
	err       error
	symbol    string
	timeframe domrepo.Timeframe
	top       int
	calls     int
}

func (f *fakeService) record(symbol string, tf domrepo.Timeframe) {
	f.calls++
	f.symbol = symbol
	f.timeframe = tf
}

func (f *fakeService) Predict(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.PredictionReport, error) {
	f.record(symbol, tf)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PredictionReport{
		Symbol:       symbol,
		Timeframe:    tf.String(),
		CurrentPrice: 2850.50,
		Predictions: []models.Prediction{{
			Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), DaysAhead: 1,
			Predicted: 2860, UpperBound: 2900, LowerBound: 2820, Confidence: 99.8,
		}},
		Trend:            models.TrendBullish,
		PriceTargets:     models.PriceTargets{Conservative: 3420.60, ConservativePct: 20},
		Recommendation:   models.RecommendHold,
		Confidence:       models.ConfidenceMedium,
		PredictionPoints: 1,
	}, nil
}

func (f *fakeService) Compare(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.ModelComparison, error) {
	f.record(symbol, tf)
	if f.err != nil {
		return nil, f.err
	}
	return &models.ModelComparison{Symbol: symbol, Timeframe: tf.String(), BestModel: "Ridge Regression", BestR2: 0.8,
		Models: []models.ModelComparisonEntry{{Name: "CNN", Family: "cnn"}}}, nil
}

func (f *fakeService) Analyze(_ context.Context, symbol string) (*models.TimeframeAnalysis, error) {
	f.record(symbol, "")
	if f.err != nil {
		return nil, f.err
	}
	return &models.TimeframeAnalysis{
		Symbol:      symbol,
		Predictions: map[string]*models.PredictionReport{"1M": {Symbol: symbol}, "5Y": nil},
		Errors:      map[string]string{"5Y": "insufficient samples"},
	}, nil
}

func (f *fakeService) Refresh(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.RefreshResult, error) {
	f.record(symbol, tf)
	if f.err != nil {
		return nil, f.err
	}
	return &models.RefreshResult{Symbol: symbol, Timeframe: tf.String(), Model: "Random Forest"}, nil
}

func (f *fakeService) Invalidate(_ context.Context, symbol string, tf domrepo.Timeframe) error {
	f.record(symbol, tf)
	return f.err
}

func (f *fakeService) Importance(_ context.Context, symbol string, tf domrepo.Timeframe, top int) (*models.ImportanceReport, error) {
	f.record(symbol, tf)
	f.top = top
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImportanceReport{Symbol: symbol, Timeframe: tf.String(),
		Importances: []models.FeatureImportance{{Feature: "lag1", Importance: 0.4}}}, nil
}

func newTestServer(svc PredictionService) *echo.Echo {
	e := echo.New()
	xhttp.Handlers{
		NewPredictionsHandler(xlogger.Nop(), svc),
		NewHealthHandler(nil, nil),
	}.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestPredict_OK(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, body := do(t, e, http.MethodGet, "/live/stocks/RELIANCE/predict?timeframe=1y")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RELIANCE", svc.symbol)
	assert.Equal(t, domrepo.TF1Y, svc.timeframe)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "1Y", data["timeframe"])
	assert.Equal(t, 2850.5, data["currentPrice"])
	assert.Equal(t, "Bullish", data["trend"])
	assert.Equal(t, "HOLD", data["recommendation"])
	preds := data["predictions"].([]interface{})
	require.Len(t, preds, 1)
	first := preds[0].(map[string]interface{})
	assert.Equal(t, "2024-07-01", first["date"])
	assert.Contains(t, first, "upperBound")
	targets := data["priceTargets"].(map[string]interface{})
	assert.Equal(t, 3420.6, targets["conservative"])
}

func TestPredict_DefaultTimeframe(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, _ := do(t, e, http.MethodGet, "/live/stocks/TCS/predict")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domrepo.TF1M, svc.timeframe)
}

func TestPredict_UnknownTimeframe(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, body := do(t, e, http.MethodGet, "/live/stocks/TCS/predict?timeframe=2W")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
	errs := body["data"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "timeframe", errs[0].(map[string]interface{})["field"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"history", &models.InsufficientHistoryError{Have: 30, Need: 51}, http.StatusBadRequest, "ERR_INSUFFICIENT_HISTORY"},
		{"samples", fmt.Errorf("train: %w", &models.InsufficientSamplesError{Timeframe: "5Y", Have: 19, Need: 50}), http.StatusBadRequest, "ERR_INSUFFICIENT_SAMPLES"},
		{"input", &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}, http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{"not trained", &models.ModelNotTrainedError{Symbol: "TCS", Timeframe: "1M"}, http.StatusNotFound, "ERR_MODEL_NOT_TRAINED"},
		{"no symbol", fmt.Errorf("TCS: %w", models.ErrSymbolNotFound), http.StatusNotFound, "ERR_NOT_FOUND"},
		{"timeout", fmt.Errorf("train model:TCS:1M: %w", models.ErrTrainingTimeout), http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(&fakeService{err: tc.err})
			rec, body := do(t, e, http.MethodGet, "/live/stocks/TCS/predict")
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, float64(tc.status), body["status"])
			errs := body["data"].([]interface{})
			require.Len(t, errs, 1)
			assert.Equal(t, tc.code, errs[0].(map[string]interface{})["code"])
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestCompare(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, body := do(t, e, http.MethodGet, "/models/compare-all/INFY?timeframe=6M")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INFY", svc.symbol)
	assert.Equal(t, domrepo.TF6M, svc.timeframe)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Ridge Regression", data["bestModel"])
	entries := data["models"].([]interface{})
	assert.Equal(t, false, entries[0].(map[string]interface{})["available"])
}

func TestAnalysis_KeepsNullTimeframes(t *testing.T) {
	e := newTestServer(&fakeService{})

	rec, body := do(t, e, http.MethodGet, "/live/stocks/TCS/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	preds := data["predictions"].(map[string]interface{})
	assert.Contains(t, preds, "5Y")
	assert.Nil(t, preds["5Y"])
	assert.Equal(t, "insufficient samples", data["errors"].(map[string]interface{})["5Y"])
}

func TestRefresh_ReadsQueryOnPost(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, body := do(t, e, http.MethodPost, "/models/HDFC/refresh?timeframe=5Y")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domrepo.TF5Y, svc.timeframe)
	assert.Equal(t, "Random Forest", body["data"].(map[string]interface{})["model"])
}

func TestInvalidate(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, _ := do(t, e, http.MethodDelete, "/models/HDFC?timeframe=6M")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domrepo.TF6M, svc.timeframe)
}

func TestImportance(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc)

	rec, _ := do(t, e, http.MethodGet, "/models/TCS/importance?timeframe=1M&top=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.top)

	rec, _ = do(t, e, http.MethodGet, "/models/TCS/importance")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, svc.top)

	calls := svc.calls
	rec, body := do(t, e, http.MethodGet, "/models/TCS/importance?top=500")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, calls, svc.calls)
	errs := body["data"].([]interface{})
	assert.Equal(t, "ERR_LTE", errs[0].(map[string]interface{})["code"])
	assert.Equal(t, "top", errs[0].(map[string]interface{})["field"])
}

func TestHealth(t *testing.T) {
	e := echo.New()
	NewHealthHandler(nil, map[string]HealthCheck{
		"clickhouse": func(context.Context) error { return nil },
	}).RegisterRoutes(e)
	rec, body := do(t, e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["data"].(map[string]interface{})["status"])

	e = echo.New()
	NewHealthHandler(nil, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}).RegisterRoutes(e)
	rec, body = do(t, e, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "connection refused", data["checks"].(map[string]interface{})["redis"])
}

func TestHealthRunsChecksConcurrently(t *testing.T) {
	aStarted, bStarted := make(chan struct{}), make(chan struct{})
	wait := func(self, other chan struct{}) HealthCheck {
		return func(ctx context.Context) error {
			close(self)
			select {
			case <-other:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	e := echo.New()
	NewHealthHandler(nil, map[string]HealthCheck{
		"clickhouse": wait(aStarted, bStarted),
		"redis":      wait(bStarted, aStarted),
		"kafka":      func(context.Context) error { return errors.New("no brokers") },
	}).RegisterRoutes(e)

	rec, body := do(t, e, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks := body["data"].(map[string]interface{})["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["clickhouse"])
	assert.Equal(t, "ok", checks["redis"])
	assert.Equal(t, "no brokers", checks["kafka"])
}
