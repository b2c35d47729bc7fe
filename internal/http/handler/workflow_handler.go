package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/service"
)

type WorkflowHandler struct {
	workflows *service.WorkflowService
}

func NewWorkflowHandler(workflows *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

type CreateWorkflowRequest struct {
	TenantID      string   `json:"tenant_id" binding:"omitempty,uuid"`
	Name          string   `json:"name" binding:"required"`
	ResourceClass string   `json:"resource_class"`
	Prompts       []string `json:"prompts" binding:"required,min=1"`
}

// POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	var tenantID uuid.UUID
	if req.TenantID != "" {
		tenantID, _ = uuid.Parse(req.TenantID)
	}

	wf, err := h.workflows.Create(c.Request.Context(), service.CreateWorkflowRequest{
		TenantID:      tenantID,
		Name:          req.Name,
		ResourceClass: req.ResourceClass,
		Prompts:       req.Prompts,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create workflow failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workflow_id": wf.ID, "resource_class": wf.ResourceClass})
}

// GET /api/v1/workflows/:id
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}
	wf, err := h.workflows.Get(c.Request.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get workflow failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wf)
}
