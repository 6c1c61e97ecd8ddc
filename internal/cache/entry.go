package cache

import "time"

// Entry is one cached value. Entries are immutable after creation; a
// replacement Set stores a fresh Entry.
type Entry[V any] struct {
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is logically absent at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
