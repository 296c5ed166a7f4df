package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"autoshorts/internal/adapter/repo"
	"autoshorts/internal/db"
	"autoshorts/internal/infra"
	"autoshorts/internal/queue"
	"autoshorts/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: db connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: schema migration failed")
	}

	sched := scheduler.New(scheduler.Options{
		Series:      repo.NewSeriesRepository(pool),
		Videos:      repo.NewVideoRepository(pool),
		Users:       repo.NewUserRepository(pool),
		Connections: repo.NewConnectionRepository(pool),
		Enqueuer:    queue.New(pool, logger, cfg.TaskMaxAttempts),
		Refresher:   scheduler.NewOAuthRefresher(cfg.YouTubeClientID, cfg.YouTubeClientSecret),
		Logger:      logger,
	})

	sched.Run(ctx, cfg.ScheduleInterval)
}
