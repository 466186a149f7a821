package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// DedupCache 成交回报去重缓存，使用 go-cache 实现 TTL 自动过期
// 只用于减少重复落库，重复写入本身是幂等的
type DedupCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewDedupCache 创建去重缓存
// ttl: 回报保留时间（建议 30 分钟），清理间隔自动设为 2×TTL
func NewDedupCache(ttl time.Duration) *DedupCache {
	return &DedupCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// IsSeen 检查回报是否已处理
func (c *DedupCache) IsSeen(orderID int64, status string, quantity float64) bool {
	_, exists := c.cache.Get(dedupKey(orderID, status, quantity))
	return exists
}

// Mark 标记回报为已处理
func (c *DedupCache) Mark(orderID int64, status string, quantity float64) {
	c.cache.Set(dedupKey(orderID, status, quantity), time.Now(), cache.DefaultExpiration)
}

// Forget 删除标记，落库失败后允许重放
func (c *DedupCache) Forget(orderID int64, status string, quantity float64) {
	c.cache.Delete(dedupKey(orderID, status, quantity))
}

// dedupKey 格式: "orderID-status-quantity"
func dedupKey(orderID int64, status string, quantity float64) string {
	return fmt.Sprintf("%d-%s-%g", orderID, status, quantity)
}

// FilledTradeSource 提供近期已成交记录
type FilledTradeSource interface {
	ListFilledSince(ctx context.Context, since time.Time) ([]*models.Trade, error)
}

// LoadFromDB 服务启动时从数据库恢复 TTL 窗口内的去重状态
func (c *DedupCache) LoadFromDB(ctx context.Context, src FilledTradeSource) error {
	if src == nil {
		return fmt.Errorf("trade source is nil")
	}

	since := time.Now().Add(-c.ttl)
	trades, err := src.ListFilledSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list filled trades failed: %w", err)
	}

	for _, t := range trades {
		c.Mark(t.OrderID, t.Status, t.Quantity)
	}

	logger.Info().
		Int("count", len(trades)).
		Dur("window", c.ttl).
		Msg("loaded filled trades from database")

	return nil
}

// Stats 获取统计信息
func (c *DedupCache) Stats() map[string]any {
	return map[string]any{
		"item_count":  c.cache.ItemCount(),
		"ttl_minutes": c.ttl.Minutes(),
	}
}
