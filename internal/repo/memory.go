package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

// Memory is an in-process Store with the same transition guards as the
// Postgres implementation. Used by tests and local development.
type Memory struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*domain.Execution
	items      map[uuid.UUID]*domain.BatchResultItem
	byIndex    map[uuid.UUID]map[int]uuid.UUID // executionID → index → itemID
	workflows  map[uuid.UUID]*domain.Workflow
	schedules  map[uuid.UUID]*domain.WorkflowSchedule
}

func NewMemory() *Memory {
	return &Memory{
		executions: make(map[uuid.UUID]*domain.Execution),
		items:      make(map[uuid.UUID]*domain.BatchResultItem),
		byIndex:    make(map[uuid.UUID]map[int]uuid.UUID),
		workflows:  make(map[uuid.UUID]*domain.Workflow),
		schedules:  make(map[uuid.UUID]*domain.WorkflowSchedule),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateExecution(_ context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.executions[e.ID] = &cp
	return nil
}

func (m *Memory) GetExecution(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) FindActiveExecutionByDedup(_ context.Context, dedupKey string) (*domain.Execution, error) {
	if dedupKey == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.executions {
		if e.DedupKey == dedupKey && !e.Terminal() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) MarkExecutionProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.Status != domain.ExecutionPending {
		return false, nil
	}
	now := time.Now()
	e.Status = domain.ExecutionProcessing
	e.StartedAt = &now
	e.UpdatedAt = now
	return true, nil
}

func (m *Memory) FinalizeExecution(_ context.Context, id uuid.UUID, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != domain.ExecutionProcessing {
		return nil
	}
	now := time.Now()
	e.Status = status
	if errMsg != "" {
		e.Error = &errMsg
	}
	if e.CompletedAt == nil {
		e.CompletedAt = &now
	}
	e.UpdatedAt = now
	return nil
}

func (m *Memory) ListStaleProcessing(_ context.Context, before time.Time) ([]domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Execution
	for _, e := range m.executions {
		if e.Status == domain.ExecutionProcessing && e.UpdatedAt.Before(before) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *Memory) CreateItem(_ context.Context, executionID uuid.UUID, index int) (*domain.BatchResultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byIndex[executionID] == nil {
		m.byIndex[executionID] = make(map[int]uuid.UUID)
	}
	if existing, ok := m.byIndex[executionID][index]; ok {
		cp := *m.items[existing]
		return &cp, nil
	}
	it := &domain.BatchResultItem{
		ID:          uuid.New(),
		ExecutionID: executionID,
		Index:       index,
		Status:      domain.ItemPending,
		CreatedAt:   time.Now(),
	}
	m.items[it.ID] = it
	m.byIndex[executionID][index] = it.ID
	cp := *it
	return &cp, nil
}

func (m *Memory) SettleItem(_ context.Context, itemID uuid.UUID, outcome domain.ItemOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return ErrNotFound
	}
	if it.Terminal() {
		return nil
	}
	now := time.Now()
	it.SettledAt = &now
	it.CostCents = outcome.CostCents
	e := m.executions[it.ExecutionID]
	if outcome.Succeeded {
		it.Status = domain.ItemSucceeded
		if outcome.ResultURL != "" {
			url := outcome.ResultURL
			it.ResultURL = &url
		}
		if e != nil {
			e.Succeeded++
		}
	} else {
		it.Status = domain.ItemFailed
		if outcome.Error != "" {
			msg := outcome.Error
			it.Error = &msg
		}
		if e != nil {
			e.Failed++
		}
	}
	if e != nil {
		e.CostCents += outcome.CostCents
		e.UpdatedAt = now
	}
	return nil
}

func (m *Memory) ListItems(_ context.Context, executionID uuid.UUID) ([]domain.BatchResultItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BatchResultItem
	for _, id := range m.byIndex[executionID] {
		out = append(out, *m.items[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *Memory) CreateWorkflow(_ context.Context, w *domain.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workflows[w.ID] = &cp
	return nil
}

func (m *Memory) GetWorkflow(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *Memory) CreateSchedule(_ context.Context, s *domain.WorkflowSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *Memory) ListSchedules(_ context.Context, enabled *bool) ([]domain.WorkflowSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowSchedule
	for _, s := range m.schedules {
		if enabled != nil && s.Enabled != *enabled {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *Memory) UpdateScheduleLastTriggeredAt(_ context.Context, id uuid.UUID, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return ErrNotFound
	}
	trigger := t
	s.LastTriggeredAt = &trigger
	return nil
}
