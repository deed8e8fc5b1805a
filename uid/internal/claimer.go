package internal

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
)

// Claimer 通过乐观锁从持久化计数器中抢占新号段
type Claimer struct {
	store  counter.Store
	logger clog.Logger
}

// NewClaimer 创建号段抢占器
func NewClaimer(store counter.Store, logger clog.Logger) *Claimer {
	return &Claimer{store: store, logger: logger}
}

// Claim 为 name 抢占下一个号段
//
// 读取 (value, step)，以 value+step 做条件更新；条件更新未命中说明其他进程抢先，
// 重新读取后无限重试且不退避，只有 ctx 取消才会中止。
// 新号段下界取 value+1：小于库中 value 的 ID 一律视为已用，因此线上可随时修改 step。
func (c *Claimer) Claim(ctx context.Context, name string) (*Segment, error) {
	start := time.Now()
	seg, err := c.claim(ctx, name)
	ClaimLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		ClaimsTotal.WithLabelValues(name, "error").Inc()
		c.logger.Error("segment claim failed", clog.String("name", name), clog.Err(err))
		return nil, err
	}
	ClaimsTotal.WithLabelValues(name, "ok").Inc()
	return seg, nil
}

func (c *Claimer) claim(ctx context.Context, name string) (*Segment, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, NewError(ErrCodeStoreAccess, "claim cancelled", err)
		}

		row, err := c.store.Load(ctx, name)
		if err != nil {
			if errors.Is(err, counter.ErrNotFound) {
				return nil, NewError(ErrCodeFatalConfig, "sequence row not found: "+name, err)
			}
			if errors.Is(err, counter.ErrInvalidKey) {
				return nil, NewError(ErrCodeFatalConfig, "invalid sequence name: "+name, err)
			}
			return nil, NewError(ErrCodeStoreAccess, "failed to load counter", err)
		}

		// step <= 0 会让 Next 永远拿不到可用 ID
		if row.Step <= 0 {
			return nil, NewError(ErrCodeFatalConfig, "step must be positive for sequence: "+name, nil)
		}
		if row.Value > math.MaxInt64-row.Step {
			return nil, NewError(ErrCodeOverflow, "counter value + step overflows int64 for sequence: "+name, nil)
		}
		newValue := row.Value + row.Step

		swapped, err := c.store.CompareAndSwap(ctx, name, row.Value, newValue)
		if err != nil {
			return nil, NewError(ErrCodeStoreAccess, "failed to update counter", err)
		}
		if swapped {
			c.logger.Info("segment loaded",
				clog.String("name", name),
				clog.Int64("min", row.Value+1),
				clog.Int64("max", newValue))
			return NewSegment(row.Value+1, newValue), nil
		}

		ClaimConflicts.WithLabelValues(name).Inc()
		c.logger.Warn("segment claim conflict, retry",
			clog.String("name", name),
			clog.Int64("old", row.Value),
			clog.Int64("new", newValue),
			clog.Int64("step", row.Step))
	}
}
