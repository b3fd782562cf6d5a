package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/config"
	"github.com/goatkit/pesflow/internal/database"
	"github.com/goatkit/pesflow/internal/notifications"
	"github.com/goatkit/pesflow/internal/repository"
	"github.com/goatkit/pesflow/internal/services/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the background jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return runScheduler(cmd.Context(), cfg, logger)
	},
}

func runScheduler(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.Scheduler.Enabled {
		logger.Info("scheduler disabled by configuration")
		return nil
	}
	loc, err := cfg.Policy.TimeLocation()
	if err != nil {
		return err
	}

	store, cleanup, err := openInspectionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := scheduler.NewService(
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithRecords(store),
		scheduler.WithReminderHub(notifications.GetHub()),
		scheduler.WithLocation(loc),
		scheduler.WithJobs(buildSchedulerJobs(cfg)),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	logger.Info("scheduler running", zap.Int("jobs", len(svc.Jobs())))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return svc.Stop(stopCtx)
}

// openInspectionStore returns the SQL store when a DSN is configured and the
// in-memory store otherwise. The Redis feed is attached when configured.
func openInspectionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.InspectionStore, func(), error) {
	opts := []repository.Option{repository.WithLogger(logger)}
	closers := []func() error{}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	if cfg.Redis.Enabled() {
		feed, err := repository.DialRedisFeed(ctx, cfg.Redis.FeedConfig(), repository.WithLogger(logger))
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect change feed: %w", err)
		}
		closers = append(closers, feed.Close)
		opts = append(opts, repository.WithFeed(feed))
	}

	if !cfg.Database.UsesSQL() {
		logger.Warn("database.dsn not set, using in-memory inspection store")
		return repository.NewMemoryInspectionStore(opts...), cleanup, nil
	}

	pool, err := database.Open(ctx, cfg.Database.PoolConfig(), logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	closers = append(closers, pool.Close)
	return repository.NewInspectionSQLRepository(pool, opts...), cleanup, nil
}
