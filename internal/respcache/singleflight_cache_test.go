package respcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingCache struct {
	mu      sync.Mutex
	calls   int32
	release chan struct{}
	turn    CachedTurn
	hit     bool
}

func (c *countingCache) Get(ctx context.Context, question, userID string, key ConfigKey) (CachedTurn, bool) {
	atomic.AddInt32(&c.calls, 1)
	if c.release != nil {
		<-c.release
	}
	return c.turn, c.hit
}

func (c *countingCache) Set(ctx context.Context, question, userID string, key ConfigKey, turn CachedTurn, ttl time.Duration) error {
	return nil
}

func TestSingleflightCacheCollapsesConcurrentIdenticalLookups(t *testing.T) {
	inner := &countingCache{release: make(chan struct{}), turn: CachedTurn{Text: "answer"}, hit: true}
	c := NewSingleflightCache(inner)

	const n = 5
	var wg sync.WaitGroup
	results := make([]CachedTurn, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn, hit := c.Get(context.Background(), "same question", "user-1", ConfigKey{Model: "gpt-5"})
			require.True(t, hit)
			results[i] = turn
		}(i)
	}
	close(inner.release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&inner.calls), "duplicate concurrent lookups for the same key must collapse into one underlying call")
	for _, r := range results {
		require.Equal(t, "answer", r.Text)
	}
}

func TestSingleflightCacheNilNextDegradesToMiss(t *testing.T) {
	c := NewSingleflightCache(nil)
	_, ok := c.Get(context.Background(), "q", "u", ConfigKey{})
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "q", "u", ConfigKey{}, CachedTurn{}, time.Minute))
}
