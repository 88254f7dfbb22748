/*
keylock.go - Per-StorageKey exclusive regions

Two flows acting concurrently on the same pool (two characters under one
account-wide bank) would otherwise both read the same balances, compute merged
totals independently, and let the second write clobber the first. The keyed
lock serializes the whole read-compute-write span per StorageKey; the store's
transaction alone does not provide that.

Entries are reference-counted so the map does not grow with every key ever
seen.
*/
package bank

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock provides one exclusive region per StorageKey.
type KeyLock struct {
	mu    sync.Mutex
	locks map[StorageKey]*lockEntry
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[StorageKey]*lockEntry)}
}

// Lock acquires the key's exclusive region and returns the release function.
func (k *KeyLock) Lock(key StorageKey) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
