package flagstore

import (
	"context"
	"slices"
	"sync"

	"github.com/streamtide/guardian/moderation/util"
)

type MemFlagStore struct {
	mu   sync.Mutex
	data map[string][]string
}

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		data: make(map[string][]string),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemFlagStore) Has(ctx context.Context, key, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.data[key], flag), nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = util.DedupeStrings(append(s.data[key], flags...))
	return nil
}

// does not error if flags not in set
func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, f := range s.data[key] {
		if !slices.Contains(flags, f) {
			out = append(out, f)
		}
	}
	s.data[key] = out
	return nil
}
