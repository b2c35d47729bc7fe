package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

var ErrNoPrompts = errors.New("service: workflow needs at least one prompt")

type CreateWorkflowRequest struct {
	TenantID      uuid.UUID
	Name          string
	ResourceClass string
	Prompts       []string
}

type WorkflowService struct {
	store repo.Store
}

func NewWorkflowService(store repo.Store) *WorkflowService {
	return &WorkflowService{store: store}
}

func (s *WorkflowService) Create(ctx context.Context, req CreateWorkflowRequest) (*domain.Workflow, error) {
	if len(req.Prompts) == 0 {
		return nil, ErrNoPrompts
	}
	wf := &domain.Workflow{
		ID:            uuid.New(),
		TenantID:      req.TenantID,
		Name:          req.Name,
		ResourceClass: domain.ParseResourceClass(req.ResourceClass),
		Prompts:       req.Prompts,
		Status:        domain.WorkflowActive,
	}
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *WorkflowService) Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}
