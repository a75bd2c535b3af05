package generic

import "sync"

// KeyedMutex hands out one mutex per key. Entries are never removed, so
// the key space must be bounded (employees x leave types, run IDs).
// The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[any]*sync.Mutex
}

// Lock blocks until the key is free and returns its unlock function.
func (k *KeyedMutex) Lock(key any) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[any]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
