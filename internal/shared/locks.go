package shared

import "sync"

// KeyedMutex serialises the read-validate-write sequence per resource id.
// A listing's stock mutations and request fulfilments must never interleave,
// so both services take the listing's lock before touching its batches.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*lockEntry)}
}

// Lock acquires the mutex for id and returns the matching unlock function.
func (k *KeyedMutex) Lock(id int64) func() {
	if k == nil {
		return func() {}
	}
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
