// Package keylock provides a mutex per string key, used to serialize
// balance mutations per account and promo redemptions per (code, account)
// pair without taking a global lock.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock hands out one mutex per key. Entries are reference counted and
// removed once the last holder unlocks, so the map does not grow with the
// number of distinct keys seen over the process lifetime.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyLock) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not held
// panics, same as sync.Mutex.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("keylock: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// Do runs fn while holding the mutex for key.
func (k *KeyLock) Do(key string, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}
