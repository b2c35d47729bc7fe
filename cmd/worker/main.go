package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/artifact"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/config"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/db"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/executor"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/genapi"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/http/handler"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/lease"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/orchestrator"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/ratelimit"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/retry"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/worker"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/logger"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

// delayedRequeuer parks a job on its queue's delayed zset for a later
// delivery attempt.
type delayedRequeuer struct {
	rdb      *redis.Client
	fallback string
}

func (r delayedRequeuer) RequeueDelayed(ctx context.Context, job domain.JobMessage, delay time.Duration) error {
	queueName := job.QueueName
	if queueName == "" {
		queueName = r.fallback
	}
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	return queue.EnqueueDelayed(ctx, r.rdb, queueName, payload, time.Now().Add(delay))
}

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

	workerID := uuid.NewString()
	store := repo.NewPG(pool)
	leases := lease.NewManager(rdb)

	limiterConfigs := make(map[domain.ResourceClass]ratelimit.Config, len(cfg.RateLimits))
	for class, rl := range cfg.RateLimits {
		limiterConfigs[class] = ratelimit.Config{MaxRequests: rl.MaxRequests, Window: rl.Window}
	}
	registry := ratelimit.NewRegistry(limiterConfigs, cfg.DefaultClass)

	gen := genapi.NewClient(genapi.Config{
		URL:     cfg.GenAPIURL,
		APIKey:  cfg.GenAPIKey,
		Timeout: cfg.GenAPITimeout,
	})
	artifacts := artifact.NewHTTPStore(cfg.ArtifactBaseURL)
	policy := retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay}
	batches := executor.New(store, gen, artifacts, registry, policy, cfg.BatchConcurrency)

	requeue := delayedRequeuer{rdb: rdb, fallback: cfg.QueueNames[0]}
	orc := orchestrator.New(store, batches, leases, requeue, workerID, cfg.LeaseTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.StartHeartbeat(ctx, rdb, workerID, 3*cfg.LeaseTTL, cfg.LeaseTTL)
	go worker.StartDelayedMover(ctx, rdb, cfg.QueueNames, workerID, 2*time.Second)

	reaper := worker.NewReaper(store, leases, service.RedisEnqueuer{Rdb: rdb}, cfg.LeaseTTL)
	go reaper.Start(ctx, cfg.LeaseTTL)

	// liveness probe plus limiter visibility
	go func() {
		gin.SetMode(gin.ReleaseMode)
		engine := gin.New()
		hh := handler.NewHealthHandler(pool, rdb)
		lh := handler.NewLimiterHandler(registry)
		engine.GET("/healthz", hh.Healthz)
		engine.GET("/readyz", hh.Readyz)
		engine.GET("/api/v1/ratelimits", lh.GetLimiterStats)
		if err := engine.Run(":" + cfg.HTTPPort); err != nil {
			log.Error().Err(err).Msg("worker http server exited")
		}
	}()

	jobs := worker.NewPool(cfg.WorkerConcurrency)
	jobs.Start()
	defer jobs.Stop()

	keys := make([]string, 0, len(cfg.QueueNames))
	for _, q := range cfg.QueueNames {
		keys = append(keys, queue.ReadyKey(q))
	}
	log.Info().Str("worker_id", workerID).Strs("queues", cfg.QueueNames).Msg("worker started")

	for {
		res, err := rdb.BLPop(ctx, 5*time.Second, keys...).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				log.Info().Msg("worker shutting down")
				return
			}
			log.Error().Err(err).Msg("queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}
		queueKey, payload := res[0], res[1]
		jobs.Submit(func(jobCtx context.Context) {
			if err := orc.Handle(jobCtx, payload); err != nil {
				if errors.Is(err, orchestrator.ErrBadPayload) {
					queueName := queueNameFromReadyKey(queueKey)
					metric.Incr(metric.DLQCount, "queue:"+queueName)
					if dlqErr := queue.EnqueueDLQ(context.Background(), rdb, queueName, payload); dlqErr != nil {
						log.Error().Err(dlqErr).Msg("dead-lettering job failed")
					}
					log.Error().Err(err).Str("queue", queueName).Msg("job dead-lettered")
					return
				}
				log.Error().Err(err).Msg("job handling failed")
			}
		})
	}
}

func queueNameFromReadyKey(key string) string {
	// "queue:<name>:ready"
	if len(key) > len("queue:")+len(":ready") {
		return key[len("queue:") : len(key)-len(":ready")]
	}
	return "default"
}
