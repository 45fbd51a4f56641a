package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/usecase"
	pkgcache "FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

type warmResult struct {
	Queued  int   `json:"queued"`
	Pending int64 `json:"pending"`
}

func newWarmCmd(opts *rootOptions) *cobra.Command {
	var (
		addr       string
		timeframes []string
	)
	cmd := &cobra.Command{
		Use:   "warm SYMBOL...",
		Short: "Queue model warm-up jobs for the servers sharing a Redis instance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			rc := cfg.Cache.Redis
			if addr != "" {
				host, port, found := strings.Cut(addr, ":")
				rc.Host = host
				if found {
					if rc.Port, err = strconv.Atoi(port); err != nil {
						return fmt.Errorf("--redis: bad port %q", port)
					}
				}
			}

			tfs := make([]domrepo.Timeframe, 0, len(timeframes))
			for _, raw := range timeframes {
				tf, err := timeframeArg(raw)
				if err != nil {
					return err
				}
				tfs = append(tfs, tf)
			}

			l := opts.logger()
			rdb, err := pkgcache.NewRedisCache(
				pkgcache.WithRedisHost(rc.Host),
				pkgcache.WithRedisPort(rc.Port),
				pkgcache.WithRedisPassword(rc.Password),
				pkgcache.WithRedisDB(rc.DB),
				pkgcache.WithRedisPrefix(rc.Prefix),
			)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer rdb.Close()

			q := queue.New(queue.NewRedisBackend(rdb.Client()), queue.Config{}, l,
				queue.WithMode(queue.ModeProducerOnly),
				queue.WithKeyPrefix(rc.Prefix+":queue"),
			)
			if err := q.Start(); err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := q.Stop(ctx); err != nil {
					l.Warn("queue stop", applogger.Error(err))
				}
			}()

			n, err := usecase.EnqueueWarmup(cmd.Context(), q, args, tfs)
			if err != nil {
				return err
			}
			pending, err := q.Pending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), warmResult{Queued: n, Pending: pending})
		},
	}
	cmd.Flags().StringVar(&addr, "redis", "", "Redis host:port (default from config or REDIS_ADDR)")
	cmd.Flags().StringSliceVarP(&timeframes, "timeframe", "t", nil, "timeframes to warm (default all)")
	return cmd
}
