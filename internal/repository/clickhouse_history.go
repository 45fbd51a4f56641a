package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

const DefaultCandleTable = "fincast.daily_candles"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CandleSchema returns the DDL for the daily candle table.
func CandleSchema(table string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS fincast`,
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol LowCardinality(String),
            day    Date,
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, day)`, table),
	}
}

// CHHistoryStore implements HistoryProvider backed by a ClickHouse daily candle table.
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, table string, l *applogger.Logger) (*CHHistoryStore, error) {
	if table == "" {
		table = DefaultCandleTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid candle table %q", table)
	}
	return &CHHistoryStore{db: ch.DB(), table: table, l: l}, nil
}

func (s *CHHistoryStore) GetHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error) {
	start := time.Now()
	const qtpl = `
        SELECT day, open, high, low, close, volume
        FROM %[1]s FINAL
        WHERE symbol = ?
          AND day >= (SELECT max(day) FROM %[1]s WHERE symbol = ?) - ?
        ORDER BY day ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, symbol, lookbackDays)
	if err != nil {
		s.l.Error("clickhouse get_history query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, lookbackDays)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			s.l.Error("clickhouse get_history scan error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		p.Date = p.Date.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_history ok",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// StoreBatch upserts daily candles for a symbol. Rows are inserted in chunks with a
// multi-row VALUES list; ReplacingMergeTree collapses re-ingested days.
func (s *CHHistoryStore) StoreBatch(ctx context.Context, symbol string, points []models.PricePoint) (int, error) {
	const chunkSize = 2000
	stored := 0
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, p := range points[start:end] {
			if p.Date.IsZero() || p.Close <= 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, p.Date.UTC(), p.Open, p.High, p.Low, p.Close, p.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, day, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return stored, fmt.Errorf("insert candles: %w", err)
		}
		stored += len(values)
	}
	s.l.Info("clickhouse candles stored",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", stored))
	return stored, nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
