// Package counter 定义号段分配所依赖的持久化计数器及其多种存储实现
//
// 每个序列名对应一行记录 {key, value, step}，value 为最近一次发放号段的上界，
// 是所有进程共享的唯一事实来源。本包只负责读取与条件更新，从不在分配路径上创建记录。
package counter

import (
	"context"
	"errors"
)

// ErrNotFound 序列名在计数表中不存在
var ErrNotFound = errors.New("counter: sequence row not found")

// ErrClosed 存储已关闭
var ErrClosed = errors.New("counter: store closed")

// ErrInvalidKey 序列名无法映射为存储中的键
var ErrInvalidKey = errors.New("counter: invalid sequence key")

// Row 计数表中的一行
type Row struct {
	Key   string `json:"key" yaml:"key"`
	Value int64  `json:"value" yaml:"value"`
	Step  int64  `json:"step" yaml:"step"`
}

// Store 持久化计数器
//
// Load 读取 key 当前的 value 与 step，不存在时返回 ErrNotFound。
// CompareAndSwap 仅在 value 仍等于 oldValue 时将其更新为 newValue，
// 返回值 swapped 是判断成功与否的唯一依据（对应 SQL 的受影响行数）。
type Store interface {
	Load(ctx context.Context, key string) (Row, error)
	CompareAndSwap(ctx context.Context, key string, oldValue, newValue int64) (swapped bool, err error)
	Close() error
}

// Provisioner 由支持写入初始行的存储实现，仅用于运维初始化和测试
type Provisioner interface {
	Provision(ctx context.Context, row Row) error
}
