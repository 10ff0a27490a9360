// Package respcache implements the Response Cache (§4.7): a pluggable
// memoization layer for completed turns, keyed by model/mode/tool
// configuration and a normalized question. Cache unavailability degrades
// to always-miss rather than failing the turn.
package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// ConfigKey is the subset of tenant/request configuration that partitions
// the cache namespace (§4.7): two identical questions under different
// models or tool settings must not collide.
type ConfigKey struct {
	Model            string
	APIMode          string
	RetrievalEnabled bool
	WebSearchEnabled bool
}

// DefaultTTL is used when Set is called with ttl <= 0 (§4.7).
const DefaultTTL = 3600 * time.Second

// CachedTurn is the full stored turn blob returned on a cache hit.
type CachedTurn struct {
	Text              string           `json:"text"`
	Usage             any              `json:"usage"`
	InteractionStatus any              `json:"interaction_status"`
	CreditDebit       CreditAnnotation `json:"credit_debit"`
	Annex             any              `json:"annex"`
}

// CreditAnnotation records whether a turn's credit cost was actually
// charged or served from cache at zero cost (§4.8 step 9).
type CreditAnnotation struct {
	Credits   int     `json:"credits"`
	CostUSD   float64 `json:"cost_usd"`
	FromCache bool    `json:"from_cache"`
}

// Cache is the pluggable Response Cache contract. A cache-unavailable
// implementation (NoopCache) satisfies it as an always-miss degenerate
// case, per §9's design note.
type Cache interface {
	Get(ctx context.Context, question, userID string, key ConfigKey) (CachedTurn, bool)
	Set(ctx context.Context, question, userID string, key ConfigKey, turn CachedTurn, ttl time.Duration) error
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeQuestion lowercases, trims, and collapses internal whitespace
// (§4.7).
func normalizeQuestion(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	return whitespaceRe.ReplaceAllString(q, " ")
}

func configHash(key ConfigKey) string {
	h := sha256.New()
	h.Write([]byte(key.Model))
	h.Write([]byte{0})
	h.Write([]byte(key.APIMode))
	h.Write([]byte{0})
	if key.RetrievalEnabled {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if key.WebSearchEnabled {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

func questionHash(question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return hex.EncodeToString(sum[:])[:16]
}

// BuildKey composes the namespaced Redis key for a (question, user, config)
// triple, per §4.7: a response-cache namespace prefix, the 8-hex config
// hash, the 16-hex normalized-question hash, and the user id.
func BuildKey(question, userID string, key ConfigKey) string {
	return "respcache:" + configHash(key) + ":" + questionHash(question) + ":" + userID
}
