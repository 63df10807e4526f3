// Package cache provides content-addressed memoization of tool results.
//
// Keys are deterministic digests of an operation name plus its full
// parameter object, so identical requests within a TTL window reuse the
// first result instead of re-running an engine. The store is in-memory
// and bounded; nothing survives a process restart.
//
// Cache operations never fail: any internal problem degrades to a miss,
// because a cache outage must never become a correctness outage.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/meshkit/gltf-mcp/internal/log"
)

// KeyDigestLen is the hex length of the parameter fingerprint in a key.
const KeyDigestLen = 16

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

// Manager memoizes operation results with per-entry TTLs and a bounded
// key count. Entries are owned by the Manager: callers must treat
// returned values as immutable.
//
// get/set is not atomic: two concurrent identical requests may both
// compute and both store (last write wins). That wastes work but never
// correctness, and is accepted rather than locked around child-process
// execution.
type Manager struct {
	store  *ttlcache.Cache[string, any]
	hits   atomic.Int64
	misses atomic.Int64
	logger log.Logger
}

// NewManager creates a cache manager holding at most maxKeys entries.
// Overflow evicts least-recently-used entries; evictions and expiries are
// surfaced only as debug logs.
func NewManager(maxKeys uint64, logger log.Logger) (*Manager, error) {
	if maxKeys == 0 {
		return nil, fmt.Errorf("maxKeys must be >= 1")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	store := ttlcache.New[string, any](
		ttlcache.WithCapacity[string, any](maxKeys),
		// TTL counts from Set; reads do not extend an entry's life.
		ttlcache.WithDisableTouchOnHit[string, any](),
	)
	m := &Manager{store: store, logger: logger}

	store.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, any]) {
		m.logger.Debug("cache entry evicted", "key", item.Key(), "reason", evictionReason(reason))
	})

	// Background expiry loop; Close stops it.
	go store.Start()

	return m, nil
}

// Close stops the background expiry loop.
func (m *Manager) Close() {
	m.store.Stop()
}

// GenerateKey builds a deterministic key of the form
// "<prefix>:<16-hex-digest>" from an operation name and its parameters.
// Digest collisions are treated as hits; the digest space makes that
// negligible in practice.
func (m *Manager) GenerateKey(prefix string, params any) string {
	serialized, err := json.Marshal(params)
	if err != nil {
		// Unserializable parameters still need a usable key; fall back to
		// the fmt rendering, which is stable for a given value.
		serialized = fmt.Appendf(nil, "%+v", params)
	}
	sum := sha256.Sum256(append([]byte(prefix+":"), serialized...))
	return prefix + ":" + hex.EncodeToString(sum[:])[:KeyDigestLen]
}

// Get returns the cached value for key, or ok=false on a miss.
func (m *Manager) Get(key string) (any, bool) {
	item := m.store.Get(key)
	if item == nil {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return item.Value(), true
}

// Set stores a value under key for the given TTL.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	m.store.Set(key, value, ttl)
}

// Del removes a single key.
func (m *Manager) Del(key string) {
	m.store.Delete(key)
}

// Has reports whether key is currently cached, without counting a hit.
func (m *Manager) Has(key string) bool {
	return m.store.Has(key)
}

// Keys returns all currently cached keys.
func (m *Manager) Keys() []string {
	return m.store.Keys()
}

// Flush clears the store and resets the hit/miss counters.
func (m *Manager) Flush() {
	m.store.DeleteAll()
	m.hits.Store(0)
	m.misses.Store(0)
}

// GetStats snapshots the process-wide counters.
func (m *Manager) GetStats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Keys:   m.store.Len(),
	}
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
