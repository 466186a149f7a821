package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-trade-pnl/internal/models"
)

func TestDedupCache_IsSeen(t *testing.T) {
	cache := NewDedupCache(30 * time.Second)

	assert.False(t, cache.IsSeen(123, "Filled", 1))

	cache.Mark(123, "Filled", 1)
	assert.True(t, cache.IsSeen(123, "Filled", 1))

	// 不同状态
	assert.False(t, cache.IsSeen(123, "Submitted", 1))

	// 不同数量（部分成交）
	assert.False(t, cache.IsSeen(123, "Filled", 2))

	// 不同订单
	assert.False(t, cache.IsSeen(456, "Filled", 1))

	cache.Forget(123, "Filled", 1)
	assert.False(t, cache.IsSeen(123, "Filled", 1))
}

func TestDedupCache_TTL(t *testing.T) {
	cache := NewDedupCache(100 * time.Millisecond)

	cache.Mark(123, "Filled", 1)
	assert.True(t, cache.IsSeen(123, "Filled", 1))

	time.Sleep(150 * time.Millisecond)
	assert.False(t, cache.IsSeen(123, "Filled", 1))
}

func TestDedupCache_Concurrent(t *testing.T) {
	cache := NewDedupCache(30 * time.Second)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				oid := int64(id*1000 + j)
				cache.Mark(oid, "Filled", 1)
				cache.IsSeen(oid, "Filled", 1)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.True(t, cache.IsSeen(5000, "Filled", 1))
	assert.Equal(t, 1000, cache.Stats()["item_count"])
}

type fakeSource struct {
	trades []*models.Trade
	err    error
}

func (f fakeSource) ListFilledSince(context.Context, time.Time) ([]*models.Trade, error) {
	return f.trades, f.err
}

func TestDedupCache_LoadFromDB(t *testing.T) {
	cache := NewDedupCache(5 * time.Minute)

	err := cache.LoadFromDB(context.Background(), fakeSource{trades: []*models.Trade{
		{OrderID: 1, Status: "Filled", Quantity: 2},
		{OrderID: 2, Status: "Filled", Quantity: 0.5},
	}})
	require.NoError(t, err)
	assert.True(t, cache.IsSeen(1, "Filled", 2))
	assert.True(t, cache.IsSeen(2, "Filled", 0.5))

	assert.Error(t, cache.LoadFromDB(context.Background(), nil))
	assert.Error(t, cache.LoadFromDB(context.Background(), fakeSource{err: errors.New("boom")}))
}

func TestDedupCache_Stats(t *testing.T) {
	cache := NewDedupCache(5 * time.Minute)

	cache.Mark(1, "Filled", 1)
	cache.Mark(2, "Filled", 1)
	cache.Mark(3, "Cancelled", 0)

	stats := cache.Stats()
	assert.Equal(t, 3, stats["item_count"])
	assert.Equal(t, 5.0, stats["ttl_minutes"])
}

func BenchmarkDedupCache_Mark(b *testing.B) {
	cache := NewDedupCache(30 * time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Mark(int64(i), "Filled", 1)
	}
}

func BenchmarkDedupCache_Concurrent(b *testing.B) {
	cache := NewDedupCache(30 * time.Minute)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			cache.Mark(int64(i), "Filled", 1)
			cache.IsSeen(int64(i), "Filled", 1)
			i++
		}
	})
}
