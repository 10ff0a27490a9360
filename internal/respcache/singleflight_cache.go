package respcache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// SingleflightCache wraps another Cache and collapses duplicate in-flight
// Get calls for the same cache key into one underlying lookup. BuildKey
// does not include chat id, so two chats belonging to the same user asking
// the identical question under the identical config share a cache key; the
// per-(user,chat) concurrency gate (§4.8 step 2) only serializes within a
// single chat, so concurrent turns across a user's chats can still race to
// the same key without this.
type SingleflightCache struct {
	next  Cache
	group singleflight.Group
}

// NewSingleflightCache wraps next. A nil next is preserved as a pass-through
// always-miss, matching NoopCache's degradation contract.
func NewSingleflightCache(next Cache) *SingleflightCache {
	return &SingleflightCache{next: next}
}

type sfResult struct {
	turn CachedTurn
	hit  bool
}

func (c *SingleflightCache) Get(ctx context.Context, question, userID string, key ConfigKey) (CachedTurn, bool) {
	if c == nil || c.next == nil {
		return CachedTurn{}, false
	}
	v, _, _ := c.group.Do(BuildKey(question, userID, key), func() (any, error) {
		turn, hit := c.next.Get(ctx, question, userID, key)
		return sfResult{turn: turn, hit: hit}, nil
	})
	res := v.(sfResult)
	return res.turn, res.hit
}

func (c *SingleflightCache) Set(ctx context.Context, question, userID string, key ConfigKey, turn CachedTurn, ttl time.Duration) error {
	if c == nil || c.next == nil {
		return nil
	}
	return c.next.Set(ctx, question, userID, key, turn, ttl)
}
