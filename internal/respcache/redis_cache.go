package respcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCache is the production Response Cache backend.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing redis client as a Cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns a miss on any error, including connectivity failure,
// deserialization failure, or key absence — cache failures are non-fatal
// to the turn (§4.7).
func (c *RedisCache) Get(ctx context.Context, question, userID string, key ConfigKey) (CachedTurn, bool) {
	if c == nil || c.client == nil {
		return CachedTurn{}, false
	}
	raw, err := c.client.Get(ctx, BuildKey(question, userID, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Msg("respcache_get_error")
		}
		return CachedTurn{}, false
	}
	var turn CachedTurn
	if err := json.Unmarshal(raw, &turn); err != nil {
		log.Debug().Err(err).Msg("respcache_unmarshal_error")
		return CachedTurn{}, false
	}
	return turn, true
}

// Set stores turn with ttl, defaulting to DefaultTTL. Marshal and write
// errors are returned to the caller; write errors are also logged at debug
// level.
func (c *RedisCache) Set(ctx context.Context, question, userID string, key ConfigKey, turn CachedTurn, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, BuildKey(question, userID, key), data, ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("respcache_set_error")
		return err
	}
	return nil
}
