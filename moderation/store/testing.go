package store

import (
	"testing"
)

// TestStore returns an isolated in-memory sqlite store for tests.
func TestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("sqlite://file::memory:?cache=private", 1)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	return s
}
