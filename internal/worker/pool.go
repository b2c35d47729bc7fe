// Package worker hosts the consumer-side plumbing: the job pool, the
// liveness heartbeat, the delayed-queue mover and the stale-execution
// reaper.
package worker

import (
	"context"
	"sync"
)

type JobFunc func(context.Context)

// Pool runs submitted jobs on a fixed number of goroutines. Stop drains
// in-flight jobs before returning.
type Pool struct {
	size   int
	jobs   chan JobFunc
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		size:   size,
		jobs:   make(chan JobFunc, size*2),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ctx.Done():
					return
				case fn := <-p.jobs:
					if fn != nil {
						fn(p.ctx)
					}
				}
			}
		}()
	}
}

func (p *Pool) Submit(fn JobFunc) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobs <- fn:
	}
}

func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
