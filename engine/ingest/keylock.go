package ingest

import "sync"

// keyedMutex serializes work per key. Ingestion runs purge-then-insert,
// which is only correct when at most one ingest of a given URL is in
// flight; different URLs proceed concurrently. Entries live for the
// process lifetime, bounded by the number of distinct URLs seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
}

// Unlock releases the mutex for key. The key must be held.
func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	k.mu.Unlock()
	l.Unlock()
}
