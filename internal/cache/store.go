// Package cache provides a bounded expiring key/value store with
// insertion-order eviction and best-effort durable snapshots.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCapacity      = 100
	defaultSweepInterval = 5 * time.Minute

	// pruneAge is how old an entry must be before the quota-recovery
	// pass drops it when a snapshot write fails.
	pruneAge = time.Hour
)

// Config configures a Store.
type Config struct {
	// Capacity is the maximum resident entry count. Exceeding it on Set
	// evicts the oldest-inserted entry first.
	Capacity int

	// SweepInterval is how often the background janitor removes expired
	// entries independently of request traffic.
	SweepInterval time.Duration

	// Persister, if non-nil, receives a full snapshot after every
	// mutation and supplies the initial contents at construction.
	// Persistence is best-effort and never fails the caller.
	Persister Persister

	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time

	Logger *zap.Logger
}

// Store is a bounded TTL map. Insertion order is the eviction order
// (oldest-inserted first); access does not promote an entry.
type Store[V any] struct {
	mu        sync.Mutex
	entries   map[string]Entry[V]
	order     []string
	capacity  int
	persister Persister
	now       func() time.Time
	logger    *zap.Logger

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New builds a Store and, when a Persister is configured, rehydrates any
// durable snapshot, discarding entries that expired while the process
// was down.
func New[V any](cfg Config) *Store[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Store[V]{
		entries:   make(map[string]Entry[V]),
		capacity:  cfg.Capacity,
		persister: cfg.Persister,
		now:       cfg.Now,
		logger:    cfg.Logger,
		stopSweep: make(chan struct{}),
	}

	s.load()

	go s.sweep(cfg.SweepInterval)

	return s
}

// Get returns the cached value for key. A missing or expired entry
// reports ok=false; an expired entry is removed on access.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return zero, false
	}
	if entry.Expired(s.now()) {
		s.remove(key)
		s.mu.Unlock()
		s.persist(ctx)
		return zero, false
	}
	s.mu.Unlock()

	return entry.Value, true
}

// Set inserts or replaces the entry for key. When the store is at
// capacity and key is new, the oldest-inserted entry is evicted first.
// ttl must be positive; a non-positive ttl deletes the key.
func (s *Store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		s.Delete(ctx, key)
		return
	}

	now := s.now()

	s.mu.Lock()
	if _, exists := s.entries[key]; !exists {
		for len(s.entries) >= s.capacity && len(s.order) > 0 {
			oldest := s.order[0]
			s.remove(oldest)
			s.logger.Debug("cache full, evicted oldest entry",
				zap.String("evicted_key", oldest),
			)
		}
		s.order = append(s.order, key)
	}
	s.entries[key] = Entry[V]{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// Delete removes key if present.
func (s *Store[V]) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	_, ok := s.entries[key]
	if ok {
		s.remove(key)
	}
	s.mu.Unlock()

	if ok {
		s.persist(ctx)
	}
}

// Clear empties the store and its durable copy.
func (s *Store[V]) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]Entry[V])
	s.order = nil
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Clear(ctx); err != nil {
			s.logger.Warn("cache snapshot clear failed", zap.Error(err))
		}
	}
}

// Len returns the resident entry count, expired entries included until
// they are swept or read.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background sweeper.
func (s *Store[V]) Close() error {
	s.sweepOnce.Do(func() {
		close(s.stopSweep)
	})
	return nil
}

// remove deletes key from the map and the insertion-order list.
// Caller holds s.mu.
func (s *Store[V]) remove(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// sweep periodically removes expired entries. The request path also
// expires lazily; the duplicate deletion of an already-absent key in
// either place is a no-op.
func (s *Store[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.removeExpired(); removed > 0 {
				s.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
				s.persist(context.Background())
			}
		case <-s.stopSweep:
			return
		}
	}
}

func (s *Store[V]) removeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			s.remove(key)
			removed++
		}
	}
	return removed
}
