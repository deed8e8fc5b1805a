package uid

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
)

// Options 定义 uid 组件的配置选项
type Options struct {
	logger     clog.Logger           // 日志依赖
	store      counter.Store         // 外部注入的计数器，设置后忽略 Driver/URL
	registerer prometheus.Registerer // 指标注册器，nil 表示不注册
}

// Option 定义配置选项的函数类型
type Option func(*Options)

// WithLogger 注入日志依赖
func WithLogger(logger clog.Logger) Option {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// WithStore 注入已建立的计数器，Close 时不会关闭它
func WithStore(store counter.Store) Option {
	return func(opts *Options) {
		opts.store = store
	}
}

// WithRegisterer 将号段指标注册到指定注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts *Options) {
		opts.registerer = reg
	}
}

// parseOptions 解析选项参数并返回配置结构
func parseOptions(opts []Option) *Options {
	result := &Options{}

	for _, opt := range opts {
		opt(result)
	}

	if result.logger == nil {
		result.logger = clog.Namespace("uid")
	}

	return result
}
