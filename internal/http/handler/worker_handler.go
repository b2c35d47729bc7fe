package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/worker"
)

type WorkerHandler struct {
	rdb *redis.Client
}

func NewWorkerHandler(rdb *redis.Client) *WorkerHandler {
	return &WorkerHandler{rdb: rdb}
}

// GET /api/v1/workers
//
// A worker is alive while its heartbeat key exists; the ID sits between
// the "worker:" prefix and the ":heartbeat" suffix.
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		cursor uint64
		ids    []string
	)
	for {
		keys, next, err := h.rdb.Scan(ctx, cursor, worker.HeartbeatKeyPattern, 100).Result()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list workers failed", "detail": err.Error()})
			return
		}
		for _, k := range keys {
			id := strings.TrimSuffix(strings.TrimPrefix(k, "worker:"), ":heartbeat")
			ids = append(ids, id)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"workers": ids, "count": len(ids)})
}
