package internal

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WorkerPool 所有序列共享的后台预加载执行器
// 并发度由加权信号量限制，Close 会取消所有运行中的任务并等待其退出
type WorkerPool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewWorkerPool 创建执行器，size <= 0 时按 1 处理
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit 提交任务，返回 false 表示执行器已关闭
// 任务在获得信号量后执行，传入的 ctx 在 Close 时被取消
func (p *WorkerPool) Submit(task func(ctx context.Context)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			// 已关闭，仍然执行以便任务通过已取消的 ctx 通知等待方
			task(p.ctx)
			return
		}
		defer p.sem.Release(1)
		task(p.ctx)
	}()
	return true
}

// Close 取消所有任务并等待退出
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// Context 返回执行器的生命周期 ctx，Close 后被取消
func (p *WorkerPool) Context() context.Context {
	return p.ctx
}
