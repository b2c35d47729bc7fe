package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := NewPool(3)
	p.Start()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Submit(func(context.Context) {
			ran.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	p.Stop()

	require.Equal(t, int32(10), ran.Load())
}

func TestPoolSubmitAfterStopIsDropped(t *testing.T) {
	p := NewPool(1)
	p.Start()
	p.Stop()

	// must not block or panic
	p.Submit(func(context.Context) { t.Error("job ran after stop") })
}
