package memory

import "sync"

// keyedMutex provides one mutex per conversation identifier so that writers
// to the same window are serialized while different conversations proceed in
// parallel. Entries are reference-counted: one exists while any writer holds
// or waits on it and is removed when the last one releases. Dropping an entry
// any earlier would let a later writer mint a fresh mutex for a key whose
// current mutex is still held, breaking same-key serialization.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// lock blocks until the caller exclusively holds the key.
func (k *keyedMutex) lock(key string) *keyLock {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return l
}

// unlock releases the key and drops its entry once no writer holds or waits
// on it, so the table stays bounded by in-flight conversations.
func (k *keyedMutex) unlock(key string, l *keyLock) {
	l.mu.Unlock()

	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
