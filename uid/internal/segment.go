package internal

import (
	"math"
	"sync/atomic"
)

// Exhausted 表示号段已耗尽，调用方需要切换或加载新号段
const Exhausted int64 = math.MinInt64

// Segment 持有一段 [start, end] 的连续 ID
// cursor 只增不减，一旦 Next 观察到 cursor > end 即视为耗尽
type Segment struct {
	start     int64
	end       int64
	threshold int64
	cursor    atomic.Int64
}

// NewSegment 创建号段，预加载阈值为 start + floor(0.8 * (end - start))
func NewSegment(start, end int64) *Segment {
	s := &Segment{
		start:     start,
		end:       end,
		threshold: start + preloadOffset(end-start),
	}
	s.cursor.Store(start)
	return s
}

// emptySegment 初始化一个不可用的号段，第一次分配即触发加载
func emptySegment() *Segment {
	return NewSegment(0, -1)
}

// preloadOffset 计算 floor(0.8 * width)，拆开计算避免大步长时乘法溢出
func preloadOffset(width int64) int64 {
	if width <= 0 {
		return 0
	}
	return width/5*4 + width%5*4/5
}

// Next 取下一个 ID
// crossed 表示本次取值越过了预加载阈值；号段耗尽时返回 Exhausted
func (s *Segment) Next() (id int64, crossed bool) {
	v := s.cursor.Add(1) - 1
	crossed = v > s.threshold
	// v < start 只会在 cursor 越过 int64 上界回绕后出现
	if v > s.end || v < s.start {
		return Exhausted, crossed
	}
	return v, crossed
}

// Start 号段起点（含）
func (s *Segment) Start() int64 { return s.start }

// End 号段终点（含）
func (s *Segment) End() int64 { return s.end }

// Threshold 预加载阈值
func (s *Segment) Threshold() int64 { return s.threshold }

// Remaining 剩余可分配数量，耗尽后为 0
func (s *Segment) Remaining() int64 {
	left := s.end - s.cursor.Load() + 1
	if left < 0 {
		return 0
	}
	return left
}

// Width 号段总长度
func (s *Segment) Width() int64 {
	if s.end < s.start {
		return 0
	}
	return s.end - s.start + 1
}
