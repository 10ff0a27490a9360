package respcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildKeyStableAndNamespaced(t *testing.T) {
	key := ConfigKey{Model: "gpt-5", APIMode: "streaming", RetrievalEnabled: true}
	k1 := BuildKey("  What is   Article 12?  ", "user-1", key)
	k2 := BuildKey("what is article 12?", "user-1", key)
	require.Equal(t, k1, k2, "normalization should make equivalent questions collide")
	require.Contains(t, k1, "respcache:")
	require.Contains(t, k1, "user-1")
}

func TestBuildKeyDiffersAcrossConfig(t *testing.T) {
	q, user := "same question", "user-1"
	a := BuildKey(q, user, ConfigKey{Model: "gpt-5", APIMode: "streaming"})
	b := BuildKey(q, user, ConfigKey{Model: "gpt-4", APIMode: "streaming"})
	require.NotEqual(t, a, b)
}

func TestBuildKeyDiffersAcrossUser(t *testing.T) {
	key := ConfigKey{Model: "gpt-5"}
	a := BuildKey("q", "user-1", key)
	b := BuildKey("q", "user-2", key)
	require.NotEqual(t, a, b)
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := NoopCache{}
	_, ok := c.Get(context.Background(), "q", "u", ConfigKey{})
	require.False(t, ok)

	err := c.Set(context.Background(), "q", "u", ConfigKey{}, CachedTurn{Text: "x"}, time.Minute)
	require.NoError(t, err)

	_, ok = c.Get(context.Background(), "q", "u", ConfigKey{})
	require.False(t, ok, "noop cache never retains what it stores")
}

func TestRedisCacheNilReceiverDegradesToMiss(t *testing.T) {
	var c *RedisCache
	_, ok := c.Get(context.Background(), "q", "u", ConfigKey{})
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "q", "u", ConfigKey{}, CachedTurn{}, 0))
}
