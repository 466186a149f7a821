package pnl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenerator_SameNanosecond(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	g := &IDGenerator{now: func() time.Time { return frozen }}

	first := g.NextID()
	assert.Equal(t, frozen.UnixNano(), first)
	assert.Equal(t, first+1, g.NextID())
	assert.Equal(t, first+2, g.NextID())
}

func TestIDGenerator_ClockGoesBackwards(t *testing.T) {
	now := time.Unix(1700000000, 500)
	g := &IDGenerator{now: func() time.Time { return now }}

	first := g.NextID()
	now = now.Add(-time.Second)
	assert.Greater(t, g.NextID(), first)
}

func TestIDGenerator_Concurrent(t *testing.T) {
	g := NewIDGenerator()

	const workers, perWorker = 8, 1000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, g.NextID())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
