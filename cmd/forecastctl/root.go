package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/services/features"
	"FinCast/internal/services/registry"
	"FinCast/internal/services/synth"
	"FinCast/internal/services/trainer"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
)

type rootOptions struct {
	dataPath   string
	configPath string
	extension  int
	workers    int
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "forecastctl",
		Short: "Multi-timeframe stock forecasts from the command line",
		Long: `forecastctl trains and queries the forecasting engine in-process
against a static price snapshot, loads snapshots into ClickHouse and
queues model warm-up jobs for running servers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.dataPath, "data", "data/stocks.json", "static price snapshot (JSON)")
	f.StringVar(&opts.configPath, "config", "", "config file; environment overrides apply either way")
	f.IntVar(&opts.extension, "extension", 0, "days of seeded random-walk bars appended to each series")
	f.IntVar(&opts.workers, "workers", 0, "parallel training workers (default from config)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newPredictCmd(opts),
		newCompareCmd(opts),
		newAnalyzeCmd(opts),
		newImportanceCmd(opts),
		newSymbolsCmd(opts),
		newIngestCmd(opts),
		newWarmCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger() *applogger.Logger {
	if !o.verbose {
		return applogger.Nop()
	}
	l, err := applogger.New(&applogger.Config{Level: "debug", Format: "console", Output: "stderr"})
	if err != nil {
		return applogger.Nop()
	}
	return l
}

func (o *rootOptions) settings() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) history(l *applogger.Logger) (*repository.StaticHistoryProvider, error) {
	return repository.NewStaticHistoryProvider(o.dataPath,
		repository.WithExtension(o.extension),
		repository.WithStaticLogger(l),
	)
}

// engine builds an in-process prediction use case over the static snapshot
// with a memory-only model cache.
func (o *rootOptions) engine() (*usecase.PredictionUseCase, error) {
	l := o.logger()
	cfg, err := o.settings()
	if err != nil {
		return nil, err
	}
	h, err := o.history(l)
	if err != nil {
		return nil, err
	}

	regOpts := make([]registry.Option, 0, len(cfg.Targets))
	for key, t := range cfg.Targets {
		tf, err := domrepo.ParseTimeframe(key)
		if err != nil {
			return nil, fmt.Errorf("targets: %w", err)
		}
		regOpts = append(regOpts, registry.WithTargets(tf, registry.Triplet{
			Conservative: t.Conservative,
			Moderate:     t.Moderate,
			Aggressive:   t.Aggressive,
		}))
	}

	workers := cfg.Engine.Workers
	if o.workers > 0 {
		workers = o.workers
	}
	rec := metrics.New(prometheus.NewRegistry())
	mc := icache.NewModelCache(icache.Config{
		TTL:          cfg.Cache.TTL,
		Capacity:     cfg.Cache.Capacity,
		TrainTimeout: cfg.Engine.TrainTimeout,
	}, nil, rec, l)
	profiles := registry.New(regOpts...)

	return usecase.NewPredictionUseCase(h, profiles, trainer.New(workers, rec, l), mc, synth.New(cfg.Policy), rec, l,
		usecase.WithFeatureOptions(features.WithMaxGap(cfg.Engine.MaxGap)),
	), nil
}

func timeframeArg(raw string) (domrepo.Timeframe, error) {
	tf, err := domrepo.ParseTimeframe(raw)
	if err != nil {
		return "", fmt.Errorf("--timeframe: %w", err)
	}
	return tf, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
