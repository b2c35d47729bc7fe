package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/ratelimit"
)

type LimiterHandler struct {
	registry *ratelimit.Registry
}

func NewLimiterHandler(registry *ratelimit.Registry) *LimiterHandler {
	return &LimiterHandler{registry: registry}
}

// GET /api/v1/ratelimits
func (h *LimiterHandler) GetLimiterStats(c *gin.Context) {
	out := gin.H{}
	for _, class := range h.registry.Classes() {
		out[class.String()] = h.registry.Stats(class)
	}
	c.JSON(http.StatusOK, out)
}
