package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

const defaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		// Yahoo emits null for halted sessions.
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// YahooConfig configures the chart API provider.
type YahooConfig struct {
	BaseURL  string
	Suffix   string // appended to bare tickers, e.g. ".NS"
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration // base delay, grows linearly per attempt
}

// YahooHistoryProvider fetches daily bars from the Yahoo chart API.
type YahooHistoryProvider struct {
	cfg    YahooConfig
	client *xhttp.Client
	l      *applogger.Logger
	now    func() time.Time
}

// staleFeedDays widens the request window so a feed that stopped updating still
// covers the whole lookback measured from its last bar.
const staleFeedDays = 30

func NewYahooHistoryProvider(cfg YahooConfig, l *applogger.Logger) *YahooHistoryProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYahooURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &YahooHistoryProvider{
		cfg: cfg,
		client: xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithUserAgent("Mozilla/5.0 (compatible; fincast/1.0)"),
			xhttp.WithBackoff(cfg.Backoff),
		),
		l:   l,
		now: time.Now,
	}
}

func (p *YahooHistoryProvider) ticker(symbol string) string {
	if p.cfg.Suffix == "" || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + p.cfg.Suffix
}

func (p *YahooHistoryProvider) GetHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error) {
	start := time.Now()
	end := p.now()
	ticker := p.ticker(symbol)

	var resp yahooChartResponse
	err := p.client.SendAndParseWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.cfg.BaseURL + url.PathEscape(ticker),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(end.AddDate(0, 0, -lookbackDays-staleFeedDays).Unix(), 10)},
			"period2":  {strconv.FormatInt(end.Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &resp, p.cfg.Attempts)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		p.l.Error("yahoo chart request failed", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		if strings.EqualFold(resp.Chart.Error.Code, "Not Found") {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	// The window is measured back from the last bar, not the wall clock.
	points := clipLookback(decodeChart(resp.Chart.Result[0]), lookbackDays)
	p.l.Debug("yahoo chart ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(points)),
		applogger.Duration("duration_ms", time.Since(start)))
	return points, nil
}

// decodeChart keeps complete bars only and collapses them to one per calendar day.
func decodeChart(res yahooResult) []models.PricePoint {
	q := res.Indicators.Quote[0]
	out := make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) || i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Volume) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil || *q.Close[i] <= 0 {
			continue
		}
		vol := 0.0
		if q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		day := util.Day(time.Unix(ts, 0))
		pt := models.PricePoint{Date: day, Open: *q.Open[i], High: *q.High[i], Low: *q.Low[i], Close: *q.Close[i], Volume: vol}
		if n := len(out); n > 0 && !day.After(out[n-1].Date) {
			out[n-1] = pt
			continue
		}
		out = append(out, pt)
	}
	return out
}
