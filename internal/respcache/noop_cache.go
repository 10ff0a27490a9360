package respcache

import (
	"context"
	"time"
)

// NoopCache is the always-miss default implementation (§9): it satisfies
// Cache without a backing store, for processes run without Redis
// configured, or as the degenerate fallback when Redis is unreachable.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string, ConfigKey) (CachedTurn, bool) {
	return CachedTurn{}, false
}

func (NoopCache) Set(context.Context, string, string, ConfigKey, CachedTurn, time.Duration) error {
	return nil
}
