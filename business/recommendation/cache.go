package recommendation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"calcReco/domain"
	"calcReco/pkg/logger"
)

// CacheStore is the storage behind the recommendation cache.
// A ttl of 0 keeps the entry until Clear.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]domain.Recommendation, bool, error)
	Set(ctx context.Context, key string, value []domain.Recommendation, ttl time.Duration) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}

// ---- in-process store ----

type cacheEntry struct {
	value     []domain.Recommendation
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) isExpired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
	// 0 means unbounded
	maxEntries int
}

var _ CacheStore = (*MemoryStore)(nil)

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryStore{
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
		maxEntries: maxEntries,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]domain.Recommendation, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if e.isExpired(m.now()) {
		m.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, still := m.entries[key]; still && cur.isExpired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []domain.Recommendation, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cacheEntry{value: value, createdAt: m.now(), ttl: ttl}
	m.capEntries()
	return nil
}

// capEntries drops expired entries, then the oldest ones, until the store
// fits maxEntries. Callers hold m.mu.
func (m *MemoryStore) capEntries() {
	if m.maxEntries <= 0 || len(m.entries) <= m.maxEntries {
		return
	}

	now := m.now()
	for k, e := range m.entries {
		if e.isExpired(now) {
			delete(m.entries, k)
		}
	}

	toDrop := len(m.entries) - m.maxEntries
	if toDrop <= 0 {
		return
	}

	type entryInfo struct {
		key       string
		createdAt time.Time
	}
	infos := make([]entryInfo, 0, len(m.entries))
	for k, e := range m.entries {
		infos = append(infos, entryInfo{key: k, createdAt: e.createdAt})
	}

	// oldest first, key order on ties
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].createdAt.Equal(infos[j].createdAt) {
			return infos[i].key < infos[j].key
		}
		return infos[i].createdAt.Before(infos[j].createdAt)
	})

	for i := 0; i < toDrop && i < len(infos); i++ {
		delete(m.entries, infos[i].key)
	}
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]cacheEntry)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.isExpired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ---- manager ----

// CacheManager wraps a CacheStore with the enabled switch, TTL, hit/miss
// counters and defensive copies.
type CacheManager struct {
	store   CacheStore
	enabled bool
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCacheManager(store CacheStore, enabled bool, ttl time.Duration) *CacheManager {
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &CacheManager{store: store, enabled: enabled, ttl: ttl}
}

func (c *CacheManager) Enabled() bool { return c.enabled }

func (c *CacheManager) Get(ctx context.Context, key string) ([]domain.Recommendation, bool) {
	if !c.enabled {
		return nil, false
	}

	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn("recommendation_cache_get_failed",
			"trace_id", TraceIDFromContext(ctx),
			"key", key,
			"error", err,
		)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.hits.Add(1)
	CacheRequestsTotal.WithLabelValues("hit").Inc()
	return cloneRecommendations(value), true
}

func (c *CacheManager) Set(ctx context.Context, key string, value []domain.Recommendation) {
	if !c.enabled {
		return
	}
	if err := c.store.Set(ctx, key, cloneRecommendations(value), c.ttl); err != nil {
		logger.Warn("recommendation_cache_set_failed",
			"trace_id", TraceIDFromContext(ctx),
			"key", key,
			"error", err,
		)
	}
}

func (c *CacheManager) Clear(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		logger.Warn("recommendation_cache_clear_failed",
			"trace_id", TraceIDFromContext(ctx),
			"error", err,
		)
	}
}

func (c *CacheManager) Stats(ctx context.Context) domain.CacheStats {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		logger.Warn("recommendation_cache_keys_failed",
			"trace_id", TraceIDFromContext(ctx),
			"error", err,
		)
		keys = nil
	}
	if keys == nil {
		keys = []string{}
	}
	return domain.CacheStats{
		Size:   len(keys),
		Keys:   keys,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func cloneRecommendations(in []domain.Recommendation) []domain.Recommendation {
	if in == nil {
		return nil
	}
	out := make([]domain.Recommendation, len(in))
	for i, r := range in {
		r.Data = cloneMap(r.Data)
		out[i] = r
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
