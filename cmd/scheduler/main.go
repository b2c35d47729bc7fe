package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/config"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/db"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/scheduler"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/logger"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

func main() {
	cfg := config.Load()
	logger.Init()
	metric.Init()

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()

	pool, err := db.Init(initCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer pool.Close()
	if err := db.EnsureSchema(initCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	rdb, err := queue.Connect(initCtx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rdb.Close()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.Timezone).Msg("invalid timezone, using UTC")
		location = time.UTC
	}

	store := repo.NewPG(pool)
	executions := service.NewExecutionService(store, service.RedisEnqueuer{Rdb: rdb}, cfg.QueueNames[0])
	sched := scheduler.New(
		store,
		executions,
		scheduler.RedisLocker{Rdb: rdb},
		scheduler.RedisTickRecorder{Rdb: rdb},
		uuid.NewString(),
		cfg.SchedulerTick,
		location,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("tick", cfg.SchedulerTick).Msg("scheduler started")
	sched.Run(ctx)
	log.Info().Msg("scheduler stopped")
}
