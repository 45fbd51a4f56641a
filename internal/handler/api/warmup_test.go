package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xlogger "FinCast/pkg/logger"
)

func postJSON(t *testing.T, e *echo.Echo, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestWarmup(t *testing.T) {
	var gotSymbols []string
	var gotTFs []domrepo.Timeframe
	queue := func(_ context.Context, symbols []string, tfs []domrepo.Timeframe) (int, error) {
		gotSymbols, gotTFs = symbols, tfs
		return len(symbols) * 2, nil
	}
	e := echo.New()
	NewWarmupHandler(xlogger.Nop(), queue).RegisterRoutes(e)

	rec, body := postJSON(t, e, "/models/warmup", `{"symbols":["TCS","INFY"],"timeframes":["1m","5Y"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, float64(4), body["data"].(map[string]interface{})["queued"])
	assert.Equal(t, []string{"TCS", "INFY"}, gotSymbols)
	assert.Equal(t, []domrepo.Timeframe{domrepo.TF1M, domrepo.TF5Y}, gotTFs)
}

func TestWarmup_Rejects(t *testing.T) {
	called := false
	queue := func(context.Context, []string, []domrepo.Timeframe) (int, error) {
		called = true
		return 0, nil
	}
	e := echo.New()
	NewWarmupHandler(xlogger.Nop(), queue).RegisterRoutes(e)

	for _, body := range []string{`{}`, `{"symbols":[]}`, `{"symbols":["TCS"],"timeframes":["2W"]}`, `{"symbols":`} {
		rec, _ := postJSON(t, e, "/models/warmup", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.False(t, called)
}

func TestWarmup_QueueErrors(t *testing.T) {
	e := echo.New()
	NewWarmupHandler(xlogger.Nop(), func(context.Context, []string, []domrepo.Timeframe) (int, error) {
		return 0, &models.InvalidInputError{Field: "symbols", Reason: `"a b" is not a ticker`}
	}).RegisterRoutes(e)
	rec, _ := postJSON(t, e, "/models/warmup", `{"symbols":["a b"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e = echo.New()
	NewWarmupHandler(xlogger.Nop(), func(context.Context, []string, []domrepo.Timeframe) (int, error) {
		return 0, errors.New("redis: connection refused")
	}).RegisterRoutes(e)
	rec, body := postJSON(t, e, "/models/warmup", `{"symbols":["TCS"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	errs := body["data"].([]interface{})
	assert.Equal(t, "ERR_UNAVAILABLE", errs[0].(map[string]interface{})["code"])
}
