package counter

import (
	"context"
	"sync"
)

// MemoryStore 进程内计数器，语义与 SQL 实现一致，用于测试和单机场景
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]Row
	closed bool

	// 以下钩子仅供测试注入并发冲突与故障
	beforeSwap func(key string)
	failLoad   error
}

var _ Store = (*MemoryStore)(nil)
var _ Provisioner = (*MemoryStore)(nil)

// NewMemoryStore 创建内存计数器，可选初始行
func NewMemoryStore(rows ...Row) *MemoryStore {
	s := &MemoryStore{rows: make(map[string]Row, len(rows))}
	for _, r := range rows {
		s.rows[r.Key] = r
	}
	return s
}

// Load 实现 Store
func (s *MemoryStore) Load(ctx context.Context, key string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Row{}, ErrClosed
	}
	if s.failLoad != nil {
		return Row{}, s.failLoad
	}
	r, ok := s.rows[key]
	if !ok {
		return Row{}, ErrNotFound
	}
	return r, nil
}

// CompareAndSwap 实现 Store
func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, oldValue, newValue int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	hook := s.beforeSwap
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	r, ok := s.rows[key]
	if !ok || r.Value != oldValue {
		return false, nil
	}
	r.Value = newValue
	s.rows[key] = r
	return true, nil
}

// Provision 写入或覆盖一行
func (s *MemoryStore) Provision(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Key] = row
	return nil
}

// Row 返回 key 当前的快照
func (s *MemoryStore) Row(key string) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key]
	return r, ok
}

// SetStep 修改步长，模拟线上调整 step
func (s *MemoryStore) SetStep(key string, step int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[key]; ok {
		r.Step = step
		s.rows[key] = r
	}
}

// OnBeforeSwap 注册条件更新前的回调，用于在测试中制造并发冲突
func (s *MemoryStore) OnBeforeSwap(fn func(key string)) {
	s.mu.Lock()
	s.beforeSwap = fn
	s.mu.Unlock()
}

// FailLoad 令后续 Load 返回指定错误，传 nil 恢复
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	s.failLoad = err
	s.mu.Unlock()
}

// Close 实现 Store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
