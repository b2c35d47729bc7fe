package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
)

type ScheduleHandler struct {
	schedules *service.ScheduleService
}

func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

type CreateScheduleRequest struct {
	WorkflowID string `json:"workflow_id" binding:"required,uuid"`
	TenantID   string `json:"tenant_id" binding:"omitempty,uuid"`
	CronExpr   string `json:"cron_expression" binding:"required"`
	Timezone   string `json:"timezone"`
}

// POST /api/v1/schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	workflowID, _ := uuid.Parse(req.WorkflowID)
	var tenantID uuid.UUID
	if req.TenantID != "" {
		tenantID, _ = uuid.Parse(req.TenantID)
	}

	sched, err := h.schedules.Create(c.Request.Context(), service.CreateScheduleRequest{
		WorkflowID: workflowID,
		TenantID:   tenantID,
		CronExpr:   req.CronExpr,
		Timezone:   req.Timezone,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "create schedule failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schedule_id": sched.ID, "enabled": sched.Enabled})
}

// GET /api/v1/schedules?enabled=true
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var enabled *bool
	if v := c.Query("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled filter"})
			return
		}
		enabled = &b
	}
	scheds, err := h.schedules.List(c.Request.Context(), enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list schedules failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": scheds, "count": len(scheds)})
}
