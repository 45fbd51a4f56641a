package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

type staticBar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type staticStock struct {
	Name   string               `json:"name"`
	Sector string               `json:"sector"`
	Data   map[string]staticBar `json:"data"`
}

type staticFile struct {
	Stocks map[string]staticStock `json:"stocks"`
}

// StaticHistoryProvider serves daily history from a JSON snapshot keyed by date
// (YYYY-MM-DD, RFC3339 or unix seconds).
type StaticHistoryProvider struct {
	history map[string][]models.PricePoint
	extend  int
	l       *applogger.Logger
}

type StaticOption func(*StaticHistoryProvider)

// WithExtension appends days of seeded random-walk bars after each stock's last real bar.
func WithExtension(days int) StaticOption {
	return func(p *StaticHistoryProvider) { p.extend = days }
}

// WithStaticLogger injects a structured logger.
func WithStaticLogger(l *applogger.Logger) StaticOption {
	return func(p *StaticHistoryProvider) { p.l = l }
}

// NewStaticHistoryProvider loads path into memory.
func NewStaticHistoryProvider(path string, opts ...StaticOption) (*StaticHistoryProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static data: %w", err)
	}
	return NewStaticHistoryProviderFromJSON(raw, opts...)
}

// NewStaticHistoryProviderFromJSON parses an in-memory snapshot.
func NewStaticHistoryProviderFromJSON(raw []byte, opts ...StaticOption) (*StaticHistoryProvider, error) {
	var f staticFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode static data: %w", err)
	}
	p := &StaticHistoryProvider{history: make(map[string][]models.PricePoint, len(f.Stocks))}
	for _, opt := range opts {
		opt(p)
	}
	for sym, st := range f.Stocks {
		points := make([]models.PricePoint, 0, len(st.Data)+p.extend)
		for d, bar := range st.Data {
			date, ok := util.ParseTime(d)
			if !ok {
				return nil, fmt.Errorf("static data %s: bad date %q", sym, d)
			}
			date = util.Day(date)
			points = append(points, models.PricePoint{
				Date: date, Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close, Volume: bar.Volume,
			})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		if p.extend > 0 && len(points) > 0 {
			points = extendWalk(sym, points, p.extend)
		}
		p.history[strings.ToUpper(sym)] = points
	}
	if p.l != nil {
		p.l.Info("static history loaded", applogger.Int("symbols", len(p.history)), applogger.Int("extension_days", p.extend))
	}
	return p, nil
}

func (p *StaticHistoryProvider) GetHistory(_ context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error) {
	points, ok := p.history[strings.ToUpper(symbol)]
	if !ok {
		return nil, nil
	}
	return clipLookback(points, lookbackDays), nil
}

// Symbols lists the loaded tickers in order.
func (p *StaticHistoryProvider) Symbols() []string {
	out := make([]string, 0, len(p.history))
	for s := range p.history {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// extendWalk continues the series with +-5% daily moves seeded by the symbol.
func extendWalk(symbol string, points []models.PricePoint, days int) []models.PricePoint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	last := points[len(points)-1]
	price, date := last.Close, last.Date
	for i := 0; i < days; i++ {
		date = date.AddDate(0, 0, 1)
		next := price * (1 + (rng.Float64()*0.1 - 0.05))
		open, cl := price, next
		points = append(points, models.PricePoint{
			Date:   date,
			Open:   round2(open),
			High:   round2(math.Max(open, cl) * (1 + rng.Float64()*0.02)),
			Low:    round2(math.Min(open, cl) * (1 - rng.Float64()*0.02)),
			Close:  round2(cl),
			Volume: float64(500000 + rng.Intn(1500000)),
		})
		price = next
	}
	return points
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// clipLookback keeps points no older than lookbackDays before the last point.
func clipLookback(points []models.PricePoint, lookbackDays int) []models.PricePoint {
	if len(points) == 0 || lookbackDays <= 0 {
		return points
	}
	from := points[len(points)-1].Date.AddDate(0, 0, -lookbackDays)
	i := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(from) })
	out := make([]models.PricePoint, len(points)-i)
	copy(out, points[i:])
	return out
}
