package uid

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
	"github.com/ceyewan/pkseq/uid/internal"
)

// Provider 定义号段式主键生成组件的主接口
// ID 来自共享计数表中按 step 抢占的号段，在号段内本地发放，只有号段耗尽时才访问存储
type Provider interface {
	// Get 返回序列 name 的下一个 ID
	// 序列首次使用时惰性创建；计数表中不存在该行时返回 FATAL_CONFIG 错误
	Get(ctx context.Context, name string) (int64, error)

	// Next 单序列模式，序列名由 Config.Name 指定
	Next(ctx context.Context) (int64, error)

	// Stats 返回已创建序列的号段状态
	Stats(name string) (Stats, bool)

	// Health 检查计数器连通性
	Health(ctx context.Context) error

	// Close 停止后台预加载并释放连接
	Close() error
}

// Stats 序列状态快照
type Stats = internal.Stats

// uidProvider 实现 Provider 接口的具体结构
type uidProvider struct {
	config     *Config
	logger     clog.Logger
	store      counter.Store
	ownsStore  bool
	registry   *internal.Registry
	instanceID string
	closeOnce  sync.Once
}

// New 创建 uid 组件实例
// 校验配置并绑定计数器；配置了 Name 时会立即为该序列预加载号段
func New(ctx context.Context, config *Config, opts ...Option) (Provider, error) {
	if config == nil {
		return nil, internal.NewError(internal.ErrCodeValidation, "配置不能为空", nil)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	// 解析选项
	options := parseOptions(opts)
	policy, _ := internal.ParsePolicy(config.Policy)

	if options.registerer != nil {
		if err := internal.RegisterMetrics(options.registerer); err != nil {
			return nil, fmt.Errorf("注册指标失败: %w", err)
		}
	}

	provider := &uidProvider{
		config:     config,
		instanceID: uuid.Must(uuid.NewV7()).String(),
	}
	provider.logger = options.logger.With(
		clog.String("service_name", config.ServiceName),
		clog.String("instance_id", provider.instanceID),
	)

	// 确定计数器
	if options.store != nil {
		provider.store = options.store
	} else {
		store, err := OpenStore(ctx, config)
		if err != nil {
			provider.logger.Error("连接计数器失败", clog.String("driver", config.Driver), clog.Err(err))
			return nil, err
		}
		provider.store = store
		provider.ownsStore = true
	}

	provider.registry = internal.NewRegistry(provider.store, internal.RegistryOptions{
		Policy:             policy,
		PreloadWaitTimeout: config.PreloadWaitTimeout,
		Workers:            config.Workers,
		Logger:             provider.logger,
	})

	// 单序列模式：初始化即预加载
	if config.Name != "" {
		seq, err := provider.registry.Sequence(config.Name)
		if err == nil {
			err = seq.Preload(ctx)
		}
		if err != nil {
			provider.Close()
			return nil, err
		}
	}

	provider.logger.Info("uid 组件初始化成功",
		clog.String("driver", config.Driver),
		clog.String("policy", policy.String()),
		clog.String("name", config.Name),
	)

	return provider, nil
}

// Get 返回序列 name 的下一个 ID
func (p *uidProvider) Get(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, internal.NewError(internal.ErrCodeValidation, "序列名不能为空", nil)
	}
	return p.registry.Get(ctx, name)
}

// Next 单序列模式下返回下一个 ID
func (p *uidProvider) Next(ctx context.Context) (int64, error) {
	if p.config.Name == "" {
		return 0, internal.NewError(internal.ErrCodeValidation, "未配置序列名", nil)
	}
	return p.registry.Get(ctx, p.config.Name)
}

// Stats 返回已创建序列的号段状态
func (p *uidProvider) Stats(name string) (Stats, bool) {
	return p.registry.Stats(name)
}

// Health 检查计数器连通性，存储不支持 Ping 时只检查是否已关闭
func (p *uidProvider) Health(ctx context.Context) error {
	if p.registry.Closed() {
		return internal.NewError(internal.ErrCodeClosed, "uid 组件已关闭", nil)
	}
	if pinger, ok := p.store.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return internal.NewError(internal.ErrCodeStoreAccess, "计数器不可用", err)
		}
	}
	return nil
}

// Close 释放资源
func (p *uidProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.registry.Close()
		if p.ownsStore {
			err = p.store.Close()
		}
		p.logger.Info("uid 组件已关闭", clog.Strings("sequences", p.registry.Names()))
	})
	return err
}
