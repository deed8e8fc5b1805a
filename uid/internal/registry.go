package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
)

// RegistryOptions 注册表配置
type RegistryOptions struct {
	Policy             Policy
	PreloadWaitTimeout time.Duration
	Workers            int
	Logger             clog.Logger
}

// entry 注册表中的一项，once 保证同名序列只构造一次
type entry struct {
	once sync.Once
	seq  *Sequence
}

// Registry 序列名到 Sequence 的映射
// 创建走 LoadOrStore + sync.Once 的原子 create-if-absent，已创建的序列之间互不争用锁
type Registry struct {
	entries sync.Map // map[string]*entry
	claimer *Claimer
	pool    *WorkerPool
	opts    RegistryOptions
	logger  clog.Logger
	closed  atomic.Bool

	// newSequence 构造函数，测试中可替换以统计构造次数
	newSequence func(name string) *Sequence
}

// NewRegistry 创建注册表
func NewRegistry(store counter.Store, opts RegistryOptions) *Registry {
	r := &Registry{
		claimer: NewClaimer(store, opts.Logger),
		pool:    NewWorkerPool(opts.Workers),
		opts:    opts,
		logger:  opts.Logger,
	}
	r.newSequence = r.buildSequence
	return r
}

func (r *Registry) buildSequence(name string) *Sequence {
	r.logger.Info("sequence created",
		clog.String("name", name),
		clog.String("policy", r.opts.Policy.String()))
	return NewSequence(name, SequenceOptions{
		Policy:             r.opts.Policy,
		PreloadWaitTimeout: r.opts.PreloadWaitTimeout,
		Claimer:            r.claimer,
		Pool:               r.pool,
		Logger:             r.logger,
	})
}

// Sequence 获取 name 对应的序列，不存在则创建
func (r *Registry) Sequence(name string) (*Sequence, error) {
	if r.closed.Load() {
		return nil, NewError(ErrCodeClosed, "registry is closed", nil)
	}
	v, _ := r.entries.LoadOrStore(name, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.seq = r.newSequence(name)
	})
	// 与 Close 并发时，Close 可能已遍历完映射而漏掉这个新序列
	if r.closed.Load() {
		e.seq.Close()
		return nil, NewError(ErrCodeClosed, "registry is closed", nil)
	}
	return e.seq, nil
}

// Get 返回 name 的下一个 ID
func (r *Registry) Get(ctx context.Context, name string) (int64, error) {
	seq, err := r.Sequence(name)
	if err != nil {
		return 0, err
	}
	return seq.Next(ctx)
}

// Stats 返回已创建序列的状态，未创建时 ok 为 false
func (r *Registry) Stats(name string) (Stats, bool) {
	v, ok := r.entries.Load(name)
	if !ok {
		return Stats{}, false
	}
	e := v.(*entry)
	// 确保构造完成后再读取
	e.once.Do(func() { e.seq = r.newSequence(name) })
	return e.seq.Stats(), true
}

// Names 返回已创建的序列名
func (r *Registry) Names() []string {
	var names []string
	r.entries.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}

// Closed 是否已关闭
func (r *Registry) Closed() bool {
	return r.closed.Load()
}

// Close 关闭全部序列并取消后台任务
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.once.Do(func() { e.seq = r.newSequence(k.(string)) })
		e.seq.Close()
		return true
	})
	r.pool.Close()
}
