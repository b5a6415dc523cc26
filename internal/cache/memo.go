package cache

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"pkdindustries/forkingdongles/internal/metrics"
)

const DefaultSize = 100

// Memo caches results of an expensive call by key. Concurrent callers asking for
// a key that is already being computed share that one call and its result. When
// the cache grows past its size, the least used tenth of the keys is evicted.
// Failed calls are not cached.
type Memo[V any] struct {
	name    string
	maxSize int
	group   singleflight.Group

	mu       sync.Mutex
	entries  map[string]V
	uses     map[string]int
	inflight map[string]struct{}
	hits     int
	misses   int
}

// New creates a memo. name labels its metrics.
func New[V any](name string, maxSize int) *Memo[V] {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	return &Memo[V]{
		name:     name,
		maxSize:  maxSize,
		entries:  make(map[string]V),
		uses:     make(map[string]int),
		inflight: make(map[string]struct{}),
	}
}

// Get returns the cached value for key, or runs fn to produce it. cached reports
// whether the value came from the cache rather than from a call made for this
// lookup. Cancelling ctx abandons the wait but not the shared call.
func (m *Memo[V]) Get(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	m.mu.Lock()
	if v, ok := m.entries[key]; ok {
		m.uses[key]++
		m.hits++
		m.mu.Unlock()
		metrics.CacheLookups.WithLabelValues(m.name, "hit").Inc()
		return v, true, nil
	}
	m.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		m.mu.Lock()
		m.inflight[key] = struct{}{}
		m.mu.Unlock()

		v, err := fn(callCtx)

		m.mu.Lock()
		delete(m.inflight, key)
		if err == nil {
			m.misses++
			m.store(key, v)
		}
		m.mu.Unlock()
		return v, err
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.CacheLookups.WithLabelValues(m.name, "error").Inc()
			return zero, false, res.Err
		}
		outcome := "miss"
		if res.Shared {
			outcome = "shared"
		}
		metrics.CacheLookups.WithLabelValues(m.name, outcome).Inc()
		v, _ := res.Val.(V)
		return v, false, nil
	}
}

// store must be called with mu held. The key just stored is never evicted.
func (m *Memo[V]) store(key string, v V) {
	m.entries[key] = v
	m.uses[key]++
	if len(m.entries) <= m.maxSize {
		return
	}

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if k != key {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if m.uses[keys[i]] != m.uses[keys[j]] {
			return m.uses[keys[i]] < m.uses[keys[j]]
		}
		return keys[i] < keys[j]
	})

	evict := max(m.maxSize/10, 1)
	for _, k := range keys[:evict] {
		delete(m.entries, k)
		delete(m.uses, k)
	}
}

func (m *Memo[V]) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

func (m *Memo[V]) Misses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.misses
}

// Len returns the number of cached keys.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Waiting returns the number of keys with a call in flight.
func (m *Memo[V]) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Clear drops every entry and resets the counters.
func (m *Memo[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	clear(m.uses)
	m.hits, m.misses = 0, 0
}
