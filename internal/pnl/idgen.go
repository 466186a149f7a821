package pnl

import (
	"sync/atomic"
	"time"
)

// IDSource trade_id 生成接口
type IDSource interface {
	NextID() int64
}

// IDGenerator 基于纳秒时间戳的单调递增 ID
// 同一纳秒内的并发请求通过 last+1 错开，进程内不会重复
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewIDGenerator 创建 ID 生成器（进程启动时构造一次并注入）
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// NextID 返回下一个 trade_id
func (g *IDGenerator) NextID() int64 {
	for {
		last := g.last.Load()
		next := g.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
