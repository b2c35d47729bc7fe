package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

const moverBatchSize = 100

// StartDelayedMover promotes due jobs from each queue's delayed zset to
// its ready list. A per-queue lock keeps the move single-writer across
// worker processes.
func StartDelayedMover(ctx context.Context, rdb *redis.Client, queues []string, workerID string, interval time.Duration) {
	tkr := time.NewTicker(interval)
	defer tkr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tkr.C:
			for _, q := range queues {
				lockKey := "lock:delayed_mover:" + q
				got, err := queue.AcquireLock(ctx, rdb, lockKey, workerID, 5*time.Second)
				if err != nil || !got {
					continue
				}
				moved, err := queue.MoveDueDelayedToReady(ctx, rdb, q, moverBatchSize)
				if err != nil {
					log.Error().Err(err).Str("queue", q).Msg("moving delayed jobs failed")
				} else if moved > 0 {
					metric.Incr(metric.DelayedMovedCount, "queue:"+q)
					log.Debug().Str("queue", q).Int("count", moved).Msg("delayed jobs ready")
				}
				_, _ = queue.ReleaseLock(ctx, rdb, lockKey, workerID)
			}
		}
	}
}
