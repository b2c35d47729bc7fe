// Package queue implements the durable job queue on Redis. Each named
// queue has a ready list (FIFO, BLPOP-consumed), a delayed zset scored by
// trigger time, and a dead-letter list for payloads that could not be
// processed.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func ReadyKey(queueName string) string {
	return "queue:" + queueName + ":ready"
}

func DelayedKey(queueName string) string {
	return "queue:" + queueName + ":delayed"
}

func DLQKey(queueName string) string {
	return "queue:" + queueName + ":dlq"
}

// EnqueueReady appends a job to the tail of the ready list.
func EnqueueReady(ctx context.Context, rdb *redis.Client, queueName string, payload string) error {
	return rdb.RPush(ctx, ReadyKey(queueName), payload).Err()
}

// EnqueueDelayed parks a job until triggerAt; the delayed mover promotes
// due jobs to the ready list.
func EnqueueDelayed(ctx context.Context, rdb *redis.Client, queueName string, payload string, triggerAt time.Time) error {
	return rdb.ZAdd(ctx, DelayedKey(queueName), redis.Z{
		Score:  float64(triggerAt.Unix()),
		Member: payload,
	}).Err()
}

// MoveDueDelayedToReady promotes up to limit due jobs from the delayed
// zset to the ready list. ZREM+RPUSH run in one transaction per batch so a
// job is never both delayed and ready.
func MoveDueDelayedToReady(ctx context.Context, rdb *redis.Client, queueName string, limit int) (int, error) {
	now := time.Now().Unix()
	items, err := rdb.ZRangeByScore(ctx, DelayedKey(queueName), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	pipe := rdb.TxPipeline()
	for _, m := range items {
		pipe.ZRem(ctx, DelayedKey(queueName), m)
		pipe.RPush(ctx, ReadyKey(queueName), m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(items), nil
}

// EnqueueDLQ records a job that could not be processed, for audit or
// manual replay.
func EnqueueDLQ(ctx context.Context, rdb *redis.Client, queueName string, payload string) error {
	return rdb.RPush(ctx, DLQKey(queueName), payload).Err()
}

// ListDLQ returns dead-letter payloads without removing them. Index
// semantics follow Redis LRANGE.
func ListDLQ(ctx context.Context, rdb *redis.Client, queueName string, start, stop int64) ([]string, error) {
	return rdb.LRange(ctx, DLQKey(queueName), start, stop).Result()
}

// ReplayDLQ moves up to count jobs from the DLQ back to the ready list.
func ReplayDLQ(ctx context.Context, rdb *redis.Client, queueName string, count int) (int, error) {
	moved := 0
	for i := 0; i < count; i++ {
		val, err := rdb.LPop(ctx, DLQKey(queueName)).Result()
		if err != nil {
			if err == redis.Nil {
				break
			}
			return moved, err
		}
		if err := rdb.RPush(ctx, ReadyKey(queueName), val).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// AcquireLock takes a best-effort distributed lock (SETNX with TTL).
func AcquireLock(ctx context.Context, rdb *redis.Client, key, owner string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, owner, ttl).Result()
}

// ReleaseLock releases the lock only if still held by owner.
func ReleaseLock(ctx context.Context, rdb *redis.Client, key, owner string) (bool, error) {
	script := `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		else
			return 0
		end`
	cmd := rdb.Eval(ctx, script, []string{key}, owner)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	n, _ := cmd.Int()
	return n == 1, nil
}

// Connect parses a redis:// URL and verifies the connection with PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
