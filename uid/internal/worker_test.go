package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolLimitsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
		assert.True(t, ok)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestWorkerPoolClose(t *testing.T) {
	pool := NewWorkerPool(0)

	started := make(chan struct{})
	var cancelled atomic.Bool
	assert.True(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}))
	<-started

	pool.Close()
	assert.True(t, cancelled.Load())
	assert.Error(t, pool.Context().Err())
	assert.False(t, pool.Submit(func(context.Context) {}))
}
