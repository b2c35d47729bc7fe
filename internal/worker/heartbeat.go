package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatKeyPattern matches all worker heartbeat keys; the API scans it
// to list live workers.
const HeartbeatKeyPattern = "worker:*:heartbeat"

func HeartbeatKey(workerID string) string {
	return "worker:" + workerID + ":heartbeat"
}

// StartHeartbeat refreshes the worker's liveness key every interval with
// the given TTL; the key expiring means the worker is gone.
func StartHeartbeat(ctx context.Context, rdb *redis.Client, workerID string, ttl, interval time.Duration) {
	tkr := time.NewTicker(interval)
	defer tkr.Stop()
	_ = rdb.Set(ctx, HeartbeatKey(workerID), "1", ttl).Err()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tkr.C:
			_ = rdb.Set(ctx, HeartbeatKey(workerID), "1", ttl).Err()
		}
	}
}
