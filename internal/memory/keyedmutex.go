package memory

import (
	"hash/fnv"
	"sync"
)

// keyedMutex is a fixed-size sharded map of mutexes (§9: "a sharded map
// key → mutex prevents unbounded mutex growth; shard by hash of (user_id,
// chat_id)"). Two different keys that happen to hash to the same shard will
// serialize against each other too; that's an acceptable, bounded tradeoff.
type keyedMutex struct {
	shards [256]sync.Mutex
}

// lock acquires the shard for key and returns the unlock function.
func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	idx := h.Sum32() % uint32(len(k.shards))
	k.shards[idx].Lock()
	return k.shards[idx].Unlock
}
