package bruteforce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default single-instance AttemptStore. One mutex covers
// the whole map so that prune+count and append are atomic with respect to
// concurrent logins from the same address.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

func (s *MemoryStore) CountRecent(ctx context.Context, addr string, since time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.attempts[addr]
	recent := log[:0]
	for _, t := range log {
		if t.After(since) {
			recent = append(recent, t)
		}
	}

	if len(recent) == 0 {
		// Pruned to nothing: drop the key so the map does not grow
		// unboundedly with one entry per address ever seen.
		delete(s.attempts, addr)
		return 0, time.Time{}, nil
	}

	s.attempts[addr] = recent
	return len(recent), recent[0], nil
}

func (s *MemoryStore) Record(ctx context.Context, addr string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[addr] = append(s.attempts[addr], at)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, addr)
	return nil
}
