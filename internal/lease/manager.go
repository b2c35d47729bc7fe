// Package lease tracks which worker owns an in-flight execution. A lease
// is a Redis key with a TTL; the owning worker renews it while the batch
// runs, and the reaper treats an expired lease on a processing execution
// as a crashed worker.
package lease

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func LeaseKey(executionID string) string {
	return "lease:execution:" + executionID
}

type Manager struct {
	rdb *redis.Client
}

func NewManager(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb}
}

// Acquire sets the lease only if no other worker holds it.
func (m *Manager) Acquire(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error) {
	return m.rdb.SetNX(ctx, LeaseKey(executionID), workerID, ttl).Result()
}

// Renew extends the lease only while still held by workerID.
func (m *Manager) Renew(ctx context.Context, executionID, workerID string, ttl time.Duration) (bool, error) {
	script := `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		else
			return 0
		end`
	cmd := m.rdb.Eval(ctx, script, []string{LeaseKey(executionID)}, workerID, int(ttl.Milliseconds()))
	if err := cmd.Err(); err != nil {
		return false, err
	}
	n, _ := cmd.Int()
	return n == 1, nil
}

// Release deletes the lease only while still held by workerID.
func (m *Manager) Release(ctx context.Context, executionID, workerID string) (bool, error) {
	script := `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		else
			return 0
		end`
	cmd := m.rdb.Eval(ctx, script, []string{LeaseKey(executionID)}, workerID)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	n, _ := cmd.Int()
	return n == 1, nil
}

// Held reports whether any worker currently holds the lease.
func (m *Manager) Held(ctx context.Context, executionID string) (bool, error) {
	_, err := m.rdb.Get(ctx, LeaseKey(executionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
