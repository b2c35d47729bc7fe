package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/config"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/db"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/http/handler"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/logger"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

func main() {
	cfg := config.Load()
	logger.Init()
	metric.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Init(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	rdb, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rdb.Close()

	store := repo.NewPG(pool)
	enqueue := service.RedisEnqueuer{Rdb: rdb}
	executions := service.NewExecutionService(store, enqueue, cfg.QueueNames[0])
	workflows := service.NewWorkflowService(store)
	schedules := service.NewScheduleService(store)

	engine := gin.Default()
	hh := handler.NewHealthHandler(pool, rdb)
	eh := handler.NewExecutionHandler(executions)
	wh := handler.NewWorkflowHandler(workflows)
	sh := handler.NewScheduleHandler(schedules)
	qh := handler.NewQueueHandler(rdb)
	wkh := handler.NewWorkerHandler(rdb)
	mh := handler.NewMetricsHandler(rdb)

	engine.GET("/healthz", hh.Healthz)
	engine.GET("/readyz", hh.Readyz)

	api := engine.Group("/api/v1")
	{
		api.POST("/workflows", wh.CreateWorkflow)
		api.GET("/workflows/:id", wh.GetWorkflow)
		api.POST("/executions", eh.CreateExecution)
		api.GET("/executions/:id", eh.GetExecution)
		api.POST("/schedules", sh.CreateSchedule)
		api.GET("/schedules", sh.ListSchedules)
		api.GET("/queues/:name", qh.GetQueueDepths)
		api.GET("/queues/:name/dlq", qh.ListDLQ)
		api.POST("/queues/:name/dlq/replay", qh.ReplayDLQ)
		api.GET("/workers", wkh.ListWorkers)
		api.GET("/metrics/scheduler", mh.GetSchedulerMetrics)
	}

	log.Info().Str("port", cfg.HTTPPort).Msg("starting api server")
	if err := engine.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("api server exited")
	}
}
