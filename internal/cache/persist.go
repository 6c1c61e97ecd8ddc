package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Persister stores an opaque snapshot durably. Implementations must be
// safe for concurrent use.
type Persister interface {
	Save(ctx context.Context, snapshot []byte) error
	Load(ctx context.Context) ([]byte, bool, error)
	Clear(ctx context.Context) error
}

// snapshotEntry is one row of the serialized store, in insertion order.
type snapshotEntry[V any] struct {
	Key   string   `json:"key"`
	Entry Entry[V] `json:"entry"`
}

// persist writes the full store contents to the persister. A write
// failure triggers one recovery pass that drops entries older than
// pruneAge and retries; a second failure is dropped silently. Durability
// is an optimization, never a correctness dependency.
func (s *Store[V]) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}

	snapshot, err := s.encode()
	if err != nil {
		s.logger.Warn("cache snapshot encode failed", zap.Error(err))
		return
	}

	if err := s.persister.Save(ctx, snapshot); err == nil {
		return
	}

	pruned := s.pruneOld()
	s.logger.Warn("cache snapshot write failed, pruned old entries and retrying",
		zap.Int("pruned", pruned),
	)

	snapshot, err = s.encode()
	if err != nil {
		return
	}
	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Warn("cache snapshot retry failed, giving up", zap.Error(err))
	}
}

// load rehydrates the store from the persister, discarding entries that
// expired while persisted. Corrupt snapshots are cleared and ignored.
func (s *Store[V]) load() {
	if s.persister == nil {
		return
	}

	ctx := context.Background()

	snapshot, ok, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("cache snapshot load failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	var rows []snapshotEntry[V]
	if err := json.Unmarshal(snapshot, &rows); err != nil {
		s.logger.Warn("cache snapshot corrupt, discarding", zap.Error(err))
		_ = s.persister.Clear(ctx)
		return
	}

	now := s.now()
	expired := 0

	s.mu.Lock()
	for _, row := range rows {
		if row.Entry.Expired(now) {
			expired++
			continue
		}
		if _, exists := s.entries[row.Key]; !exists {
			s.order = append(s.order, row.Key)
		}
		s.entries[row.Key] = row.Entry
	}
	// The snapshot may have been written under a larger capacity; drop
	// oldest-inserted rows until the bound holds again.
	evicted := 0
	for len(s.entries) > s.capacity && len(s.order) > 0 {
		s.remove(s.order[0])
		evicted++
	}
	loaded := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("cache snapshot loaded",
		zap.Int("entries", loaded),
		zap.Int("expired_discarded", expired),
		zap.Int("evicted", evicted),
	)

	if expired > 0 || evicted > 0 {
		s.persist(ctx)
	}
}

// encode serializes the store contents in insertion order.
func (s *Store[V]) encode() ([]byte, error) {
	s.mu.Lock()
	rows := make([]snapshotEntry[V], 0, len(s.order))
	for _, key := range s.order {
		if entry, ok := s.entries[key]; ok {
			rows = append(rows, snapshotEntry[V]{Key: key, Entry: entry})
		}
	}
	s.mu.Unlock()

	return json.Marshal(rows)
}

// pruneOld drops entries created more than pruneAge ago to free durable
// space after a failed snapshot write.
func (s *Store[V]) pruneOld() int {
	cutoff := s.now().Add(-pruneAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for key, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			s.remove(key)
			pruned++
		}
	}
	return pruned
}
