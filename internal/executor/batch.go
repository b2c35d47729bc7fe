// Package executor drives one execution's items to terminal state. Items
// enter admission in index order under a bounded per-execution pool; each
// attempt passes the rate limiter, calls the generation API, uploads the
// artifact and settles the item. Transient failures retry with backoff;
// nothing aborts the rest of the batch.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/artifact"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/genapi"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/ratelimit"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/repo"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/retry"
	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/pkg/metric"
)

// ErrIncomplete reports that some items could not be settled durably
// (storage outage, shutdown). The execution must not be finalized; the
// job is redelivered and resumed, skipping already-terminal items.
var ErrIncomplete = errors.New("executor: batch has unsettled items")

type Executor struct {
	store       repo.Store
	gen         genapi.Generator
	artifacts   artifact.Store
	limiter     *ratelimit.Registry
	policy      retry.Policy
	concurrency int
}

func New(store repo.Store, gen genapi.Generator, artifacts artifact.Store, limiter *ratelimit.Registry, policy retry.Policy, concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{
		store:       store,
		gen:         gen,
		artifacts:   artifacts,
		limiter:     limiter,
		policy:      policy,
		concurrency: concurrency,
	}
}

// Run processes every item of the job to a terminal status and reports
// the aggregate outcome. The per-execution pool bounds how many items are
// in flight at once so one large batch cannot monopolize the global
// admission queue.
func (e *Executor) Run(ctx context.Context, job domain.JobMessage) (domain.BatchSummary, error) {
	total := len(job.Items)
	if total == 0 {
		return domain.BatchSummary{}, fmt.Errorf("execution %s has no items", job.ExecutionID)
	}
	class := domain.ParseResourceClass(job.ResourceClass)

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for idx, input := range job.Items {
		sem <- struct{}{} // items enter in index order
		wg.Add(1)
		go func(idx int, input domain.ItemInput) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.processItem(ctx, job, class, idx, input); err != nil {
				log.Error().Err(err).
					Str("execution_id", job.ExecutionID.String()).
					Int("index", idx).
					Msg("item left unsettled")
			}
		}(idx, input)
	}
	wg.Wait()

	items, err := e.store.ListItems(ctx, job.ExecutionID)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("listing items for %s: %w", job.ExecutionID, err)
	}
	summary := domain.BatchSummary{Total: total}
	for _, it := range items {
		switch it.Status {
		case domain.ItemSucceeded:
			summary.Succeeded++
		case domain.ItemFailed:
			summary.Failed++
		}
	}
	if summary.Succeeded+summary.Failed < total {
		return summary, ErrIncomplete
	}
	return summary, nil
}

// processItem runs one item to a terminal status. A nil return means the
// item is durably settled (or was already terminal from a previous
// delivery); an error means it is still pending.
func (e *Executor) processItem(ctx context.Context, job domain.JobMessage, class domain.ResourceClass, idx int, input domain.ItemInput) error {
	item, err := e.store.CreateItem(ctx, job.ExecutionID, idx)
	if err != nil {
		return fmt.Errorf("creating item %d: %w", idx, err)
	}
	if item.Terminal() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		waitStart := time.Now()
		if err := e.limiter.Acquire(ctx, class); err != nil {
			return fmt.Errorf("admission for item %d: %w", idx, err)
		}
		metric.Timing(metric.AdmissionWait, time.Since(waitStart), "class:"+class.String())
		metric.Incr(metric.ItemAttemptCount, "class:"+class.String())

		outcome, err := e.attempt(ctx, class, input)
		if err == nil {
			return e.settle(ctx, item, *outcome)
		}
		lastErr = err
		decision := e.policy.Classify(err)
		if !decision.Retryable || attempt >= e.policy.MaxAttempts {
			break
		}
		metric.Incr(metric.ItemRetryCount, "kind:"+string(decision.Kind))
		select {
		case <-time.After(e.policy.NextDelay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.settle(ctx, item, domain.ItemOutcome{Error: lastErr.Error()})
}

// attempt is one admission-to-upload pass: generate, then persist the
// artifact. An upload failure is classified like any other attempt error.
func (e *Executor) attempt(ctx context.Context, class domain.ResourceClass, input domain.ItemInput) (*domain.ItemOutcome, error) {
	start := time.Now()
	res, err := e.gen.Generate(ctx, genapi.Request{Prompt: input.Prompt, ResourceClass: class})
	metric.Timing(metric.ExternalAPILatency, time.Since(start), "class:"+class.String())
	if err != nil {
		metric.Incr(metric.ExternalAPICount, "status:error")
		return nil, err
	}
	metric.Incr(metric.ExternalAPICount, "status:ok")

	url, err := e.artifacts.Upload(ctx, res.Data, res.ContentType)
	if err != nil {
		return nil, fmt.Errorf("uploading artifact: %w", err)
	}
	return &domain.ItemOutcome{Succeeded: true, ResultURL: url, CostCents: res.CostCents}, nil
}

func (e *Executor) settle(ctx context.Context, item *domain.BatchResultItem, outcome domain.ItemOutcome) error {
	if err := e.store.SettleItem(ctx, item.ID, outcome); err != nil {
		return fmt.Errorf("settling item %d: %w", item.Index, err)
	}
	status := domain.ItemFailed
	if outcome.Succeeded {
		status = domain.ItemSucceeded
	}
	metric.Incr(metric.ItemSettleCount, "status:"+status)
	return nil
}
