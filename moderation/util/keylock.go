package util

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// KeyLock hands out one mutex per string key, so writes for the same
// (user, scope) pair can be serialized without a global lock.
//
// Mutexes are never removed from the map; the key space (active
// user/scope pairs) is small relative to event volume, and removal would
// re-introduce the lost-update race this exists to prevent.
type KeyLock struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: xsync.NewMapOf[string, *sync.Mutex](),
	}
}

func (kl *KeyLock) Lock(key string) {
	mu, _ := kl.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
}

func (kl *KeyLock) Unlock(key string) {
	mu, ok := kl.locks.Load(key)
	if !ok {
		return
	}
	mu.Unlock()
}
