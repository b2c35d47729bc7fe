package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
)

// CronParser accepts standard five-field expressions, an optional seconds
// field, and descriptors like @hourly. The scheduler uses the same parser
// so a schedule that validates here always ticks there.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type CreateScheduleRequest struct {
	WorkflowID uuid.UUID
	TenantID   uuid.UUID
	CronExpr   string
	Timezone   string
}

type ScheduleService struct {
	store repo.Store
}

func NewScheduleService(store repo.Store) *ScheduleService {
	return &ScheduleService{store: store}
}

func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*domain.WorkflowSchedule, error) {
	if _, err := CronParser.Parse(req.CronExpr); err != nil {
		return nil, fmt.Errorf("service: invalid cron expression %q: %w", req.CronExpr, err)
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("service: invalid timezone %q: %w", tz, err)
	}
	if _, err := s.store.GetWorkflow(ctx, req.WorkflowID); err != nil {
		return nil, err
	}
	sched := &domain.WorkflowSchedule{
		ID:         uuid.New(),
		WorkflowID: req.WorkflowID,
		TenantID:   req.TenantID,
		CronExpr:   req.CronExpr,
		Timezone:   tz,
		Enabled:    true,
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

func (s *ScheduleService) List(ctx context.Context, enabled *bool) ([]domain.WorkflowSchedule, error) {
	return s.store.ListSchedules(ctx, enabled)
}
