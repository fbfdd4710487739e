package countstore

import (
	"context"
	"sync"
	"time"
)

// MemCountStore keeps counters in process memory. Intended for tests and
// single-instance deployments; production uses RedisCountStore so windows
// are shared across service instances and survive restarts.
type MemCountStore struct {
	mu             sync.Mutex
	counts         map[string]int
	distinctCounts map[string]map[string]bool
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:         make(map[string]int),
		distinctCounts: make(map[string]map[string]bool),
	}
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string, window time.Duration) (int, error) {
	k := windowBucket(name, val, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[k]++
	return s.counts[k], nil
}

func (s *MemCountStore) Get(ctx context.Context, name, val string, window time.Duration) (int, error) {
	k := windowBucket(name, val, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[k], nil
}

func (s *MemCountStore) Reset(ctx context.Context, name, val string, window time.Duration) error {
	k := windowBucket(name, val, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, k)
	return nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, member string, window time.Duration) (int, error) {
	k := windowBucket(name, bucket, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.distinctCounts[k]
	if !ok {
		m = make(map[string]bool)
		s.distinctCounts[k] = m
	}
	m[member] = true
	return len(m), nil
}

func (s *MemCountStore) GetDistinct(ctx context.Context, name, bucket string, window time.Duration) (int, error) {
	k := windowBucket(name, bucket, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.distinctCounts[k]), nil
}
