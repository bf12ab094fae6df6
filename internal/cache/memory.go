package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	key string
	ts  time.Time
}

type item struct {
	value   []byte
	written time.Time
	expires time.Time
}

// MemoryStore is a bounded in-process Store. Insertion order drives eviction once
// capacity is exceeded; expired keys are dropped lazily.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]item
	order    []entry
	capacity int
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a store holding at most capacity keys.
func NewMemoryStore(capacity int, opts ...MemoryOption) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	s := &MemoryStore{
		items:    make(map[string]item, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if !now.Before(it.expires) {
		delete(s.items, key)
		return nil, ErrMiss
	}
	return it.value, nil
}

// Set stores value until now+ttl. A non-positive ttl deletes the key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.items, key)
		return nil
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.items[key] = item{value: stored, written: now, expires: now.Add(ttl)}
	s.order = append(s.order, entry{key: key, ts: now})
	s.compact(now)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of keys currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) compact(now time.Time) {
	for len(s.order) > 0 {
		oldest := s.order[0]
		it, live := s.items[oldest.key]
		stale := !live || !it.written.Equal(oldest.ts)

		switch {
		case stale:
		case len(s.items) > s.capacity || !now.Before(it.expires):
			delete(s.items, oldest.key)
		default:
			return
		}
		s.order = s.order[1:]
	}
}
