package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/queue"
)

type QueueHandler struct {
	rdb *redis.Client
}

func NewQueueHandler(rdb *redis.Client) *QueueHandler {
	return &QueueHandler{rdb: rdb}
}

// GET /api/v1/queues/:name
func (h *QueueHandler) GetQueueDepths(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	ready, err := h.rdb.LLen(ctx, queue.ReadyKey(name)).Result()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue depth failed", "detail": err.Error()})
		return
	}
	delayed, _ := h.rdb.ZCard(ctx, queue.DelayedKey(name)).Result()
	dlq, _ := h.rdb.LLen(ctx, queue.DLQKey(name)).Result()
	c.JSON(http.StatusOK, gin.H{"queue": name, "ready": ready, "delayed": delayed, "dlq": dlq})
}

// GET /api/v1/queues/:name/dlq
func (h *QueueHandler) ListDLQ(c *gin.Context) {
	name := c.Param("name")
	count := int64(50)
	if v, err := strconv.Atoi(c.Query("count")); err == nil && v > 0 {
		count = int64(v)
	}
	items, err := queue.ListDLQ(c.Request.Context(), h.rdb, name, 0, count-1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list dlq failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": name, "count": len(items), "items": items})
}

type ReplayDLQRequest struct {
	Count int `json:"count"`
}

// POST /api/v1/queues/:name/dlq/replay
func (h *QueueHandler) ReplayDLQ(c *gin.Context) {
	name := c.Param("name")
	var req ReplayDLQRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Count <= 0 {
		req.Count = 1
	}
	moved, err := queue.ReplayDLQ(c.Request.Context(), h.rdb, name, req.Count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "replay dlq failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": name, "moved": moved})
}
