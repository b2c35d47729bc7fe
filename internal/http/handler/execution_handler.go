package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
)

type ExecutionHandler struct {
	executions *service.ExecutionService
}

func NewExecutionHandler(executions *service.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{executions: executions}
}

type CreateExecutionRequest struct {
	WorkflowID string `json:"workflow_id" binding:"required,uuid"`
	TenantID   string `json:"tenant_id" binding:"omitempty,uuid"`
	QueueName  string `json:"queue_name"`
	DedupKey   string `json:"dedup_key"`
	// StartAfter defers the run until the given RFC3339 time.
	StartAfter *time.Time `json:"start_after"`
}

// POST /api/v1/executions
func (h *ExecutionHandler) CreateExecution(c *gin.Context) {
	var req CreateExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	workflowID, _ := uuid.Parse(req.WorkflowID)
	var tenantID uuid.UUID
	if req.TenantID != "" {
		tenantID, _ = uuid.Parse(req.TenantID)
	}

	exec, created, err := h.executions.Create(c.Request.Context(), service.CreateExecutionRequest{
		WorkflowID: workflowID,
		TenantID:   tenantID,
		QueueName:  req.QueueName,
		DedupKey:   req.DedupKey,
		StartAfter: req.StartAfter,
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	case errors.Is(err, service.ErrWorkflowArchived), errors.Is(err, service.ErrEmptyWorkflow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create execution failed", "detail": err.Error()})
		return
	}

	status := http.StatusCreated
	if !created {
		// dedup hit: the active run for this key
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"execution_id": exec.ID, "status": exec.Status, "created": created})
}

// GET /api/v1/executions/:id
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	exec, items, err := h.executions.Get(c.Request.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get execution failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution": exec, "items": items})
}
