package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ceyewan/pkseq/clog"
)

// Policy 号段耗尽时的加载策略
type Policy int

const (
	// PolicyAsync 越过阈值后由后台任务预取下一段，耗尽时直接切换
	PolicyAsync Policy = iota
	// PolicySync 耗尽时由一个调用方同步抢占，其余调用方等待结果
	PolicySync
)

// String 实现 fmt.Stringer
func (p Policy) String() string {
	switch p {
	case PolicySync:
		return "sync"
	default:
		return "async"
	}
}

// ParsePolicy 解析策略名，空串视为 async
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "async":
		return PolicyAsync, nil
	case "sync":
		return PolicySync, nil
	default:
		return PolicyAsync, fmt.Errorf("unknown preload policy %q", s)
	}
}

// DefaultPreloadWaitTimeout 等待后台预取结果的默认上限
const DefaultPreloadWaitTimeout = 3 * time.Second

// SequenceOptions 构造 Sequence 所需的依赖
type SequenceOptions struct {
	Policy             Policy
	PreloadWaitTimeout time.Duration
	Claimer            *Claimer
	Pool               *WorkerPool
	Logger             clog.Logger
}

// preload 一次后台抢占的单槽交接：done 关闭后 seg/err 只读
// started 在任务拿到执行器槽位时关闭，之前任务仍在排队
type preload struct {
	started chan struct{}
	done    chan struct{}
	seg     *Segment
	err     error
}

// Sequence 单个序列名的号段池及其预加载器
type Sequence struct {
	name        string
	policy      Policy
	waitTimeout time.Duration
	claimer     *Claimer
	pool        *WorkerPool
	logger      clog.Logger

	current atomic.Pointer[Segment]
	flight  singleflight.Group

	// staged 只由后台任务写入，其余调用方持 mu 读取并交换
	mu       sync.Mutex
	staged   atomic.Pointer[Segment]
	inflight *preload
	claiming atomic.Bool

	closed atomic.Bool
	claims atomic.Int64
}

// NewSequence 创建序列，初始持有一个空号段，首次 Next 即触发加载
func NewSequence(name string, opts SequenceOptions) *Sequence {
	if opts.PreloadWaitTimeout <= 0 {
		opts.PreloadWaitTimeout = DefaultPreloadWaitTimeout
	}
	s := &Sequence{
		name:        name,
		policy:      opts.Policy,
		waitTimeout: opts.PreloadWaitTimeout,
		claimer:     opts.Claimer,
		pool:        opts.Pool,
		logger:      opts.Logger.With(clog.String("sequence", name)),
	}
	s.current.Store(emptySegment())
	return s
}

// Name 序列名
func (s *Sequence) Name() string { return s.name }

// Next 返回下一个 ID
// 快路径只有一次原子自增和一次比较；号段耗尽时按策略切换或加载后重试
func (s *Sequence) Next(ctx context.Context) (int64, error) {
	for {
		if s.closed.Load() {
			return 0, NewError(ErrCodeClosed, "sequence is closed: "+s.name, nil)
		}

		seg := s.current.Load()
		id, crossed := seg.Next()
		if crossed && s.policy == PolicyAsync && s.current.Load() == seg {
			s.startPreload()
		}
		if id != Exhausted {
			return id, nil
		}

		var err error
		if s.policy == PolicyAsync {
			err = s.swapOrLoad(ctx, seg)
		} else {
			err = s.refill(ctx, seg)
		}
		if err != nil {
			return 0, err
		}
	}
}

// Preload 同步加载首个号段，计数行缺失等配置错误在此暴露
// 当前号段仍有余量时直接返回
func (s *Sequence) Preload(ctx context.Context) error {
	seg := s.current.Load()
	if seg.Remaining() > 0 {
		return nil
	}
	return s.refill(ctx, seg)
}

// startPreload 启动后台预取，已有暂存号段或已有任务在途时直接返回
func (s *Sequence) startPreload() {
	if s.staged.Load() != nil || s.claiming.Load() || !s.claiming.CompareAndSwap(false, true) {
		return
	}

	p := &preload{started: make(chan struct{}), done: make(chan struct{})}
	s.mu.Lock()
	s.inflight = p
	s.mu.Unlock()

	if !s.pool.Submit(func(ctx context.Context) { s.runPreload(ctx, p) }) {
		s.finishPreload(p, nil, NewError(ErrCodeClosed, "worker pool is closed", nil))
	}
}

func (s *Sequence) runPreload(ctx context.Context, p *preload) {
	close(p.started)
	seg, err := s.claimer.Claim(ctx, s.name)
	s.finishPreload(p, seg, err)
}

func (s *Sequence) finishPreload(p *preload, seg *Segment, err error) {
	s.mu.Lock()
	if err == nil {
		s.claims.Add(1)
		s.staged.Store(seg)
	}
	p.seg, p.err = seg, err
	if s.inflight == p {
		s.inflight = nil
	}
	s.claiming.Store(false)
	s.mu.Unlock()
	close(p.done)
}

// swapOrLoad 当前号段耗尽后切换到暂存号段
// 暂存号段尚未就绪时等待正在执行的后台任务，超过 waitTimeout 仍未完成则退化为同步抢占。
// 没有在途任务，或任务还在排队等待执行器槽位时，直接同步抢占，不受其他序列占用槽位影响
func (s *Sequence) swapOrLoad(ctx context.Context, observed *Segment) error {
	for {
		s.mu.Lock()
		if s.current.Load() != observed {
			s.mu.Unlock()
			return nil
		}
		if next := s.staged.Swap(nil); next != nil {
			s.install(next)
			s.mu.Unlock()
			return nil
		}
		p := s.inflight
		s.mu.Unlock()

		if p == nil {
			if s.closed.Load() {
				return NewError(ErrCodeClosed, "sequence is closed: "+s.name, nil)
			}
			return s.refill(ctx, observed)
		}

		select {
		case <-p.started:
		case <-p.done:
		default:
			s.logger.Debug("preload still queued, claiming synchronously")
			return s.refill(ctx, observed)
		}

		timer := time.NewTimer(s.waitTimeout)
		select {
		case <-p.done:
			timer.Stop()
			if p.err != nil {
				return p.err
			}
		case <-ctx.Done():
			timer.Stop()
			return NewError(ErrCodeStoreAccess, "wait for preload cancelled", ctx.Err())
		case <-timer.C:
			PreloadFallbacks.WithLabelValues(s.name).Inc()
			s.logger.Warn("preload not finished in time, claiming synchronously. Consider a larger step",
				clog.Duration("waited", s.waitTimeout))
			return s.refill(ctx, observed)
		}
	}
}

// refill 同步抢占新号段，同一时刻每个序列只有一次抢占在执行
// 其余调用方共享这次结果，各自的 ctx 只控制自己的等待
func (s *Sequence) refill(ctx context.Context, observed *Segment) error {
	ch := s.flight.DoChan("claim", func() (any, error) {
		if s.current.Load() != observed {
			return nil, nil
		}
		seg, err := s.claimer.Claim(s.pool.Context(), s.name)
		if err != nil {
			return nil, err
		}
		s.claims.Add(1)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current.Load() == observed {
			s.install(seg)
		} else if s.staged.Load() == nil {
			// 等待期间后台号段已被切换，新号段留作下一段
			s.staged.Store(seg)
		} else {
			s.logger.Warn("discarding surplus segment",
				clog.Int64("min", seg.Start()),
				clog.Int64("max", seg.End()))
		}
		return nil, nil
	})

	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return NewError(ErrCodeStoreAccess, "wait for claim cancelled", ctx.Err())
	}
}

// install 替换当前号段，调用方须持有 mu
func (s *Sequence) install(seg *Segment) {
	s.current.Store(seg)
	SegmentRemaining.WithLabelValues(s.name).Set(float64(seg.Width()))
	s.logger.Debug("segment installed",
		clog.Int64("min", seg.Start()),
		clog.Int64("max", seg.End()))
}

// Close 标记序列关闭，后续 Next 返回 ErrCodeClosed
func (s *Sequence) Close() {
	s.closed.Store(true)
}

// Stats 序列状态快照
type Stats struct {
	Name      string `json:"name"`
	Policy    string `json:"policy"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Remaining int64  `json:"remaining"`
	Staged    bool   `json:"staged"`
	Claims    int64  `json:"claims"`
}

// Stats 返回当前状态
func (s *Sequence) Stats() Stats {
	seg := s.current.Load()
	return Stats{
		Name:      s.name,
		Policy:    s.policy.String(),
		Start:     seg.Start(),
		End:       seg.End(),
		Remaining: seg.Remaining(),
		Staged:    s.staged.Load() != nil,
		Claims:    s.claims.Load(),
	}
}
