package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"FinCast/internal/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

type ingestResult struct {
	Table   string         `json:"table"`
	Symbols int            `json:"symbols"`
	Rows    int            `json:"rows"`
	Stored  map[string]int `json:"stored"`
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		table   string
		host    string
		port    int
		symbols []string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the static snapshot into the ClickHouse candle table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			ch := cfg.ClickHouse
			if host != "" {
				ch.Host = host
			}
			if port > 0 {
				ch.Port = port
			}
			if table == "" {
				table = cfg.MarketData.Table
			}

			l := opts.logger()
			h, err := opts.history(l)
			if err != nil {
				return err
			}
			if len(symbols) == 0 {
				symbols = h.Symbols()
			}

			client, err := pkgch.NewClient(
				pkgch.WithHost(ch.Host),
				pkgch.WithPort(ch.Port),
				pkgch.WithDatabase(ch.Database),
				pkgch.WithCredentials(ch.User, ch.Password),
				pkgch.WithHTTP(ch.UseHTTP),
				pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
				pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
			)
			if err != nil {
				return fmt.Errorf("clickhouse client: %w", err)
			}
			defer func() {
				if err := client.Close(); err != nil {
					l.Warn("clickhouse close", applogger.Error(err))
				}
			}()

			ctx := cmd.Context()
			schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err = client.InitSchema(schemaCtx, repository.CandleSchema(table))
			cancel()
			if err != nil {
				return fmt.Errorf("clickhouse schema: %w", err)
			}
			store, err := repository.NewCHHistoryStore(client, table, l)
			if err != nil {
				return err
			}

			res := ingestResult{Table: table, Stored: make(map[string]int, len(symbols))}
			for _, raw := range symbols {
				sym := strings.ToUpper(strings.TrimSpace(raw))
				points, err := h.GetHistory(ctx, sym, 0)
				if err != nil {
					return err
				}
				if len(points) == 0 {
					return fmt.Errorf("symbol %s not in %s", sym, opts.dataPath)
				}
				n, err := store.StoreBatch(ctx, sym, points)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", sym, err)
				}
				res.Stored[sym] = n
				res.Rows += n
			}
			res.Symbols = len(res.Stored)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&table, "table", "", "candle table (default from config)")
	f.StringVar(&host, "clickhouse-host", "", "ClickHouse host (default from config or CLICKHOUSE_HOST)")
	f.IntVar(&port, "clickhouse-port", 0, "ClickHouse port")
	f.StringSliceVar(&symbols, "symbols", nil, "subset of tickers to load")
	return cmd
}
