package locking

import (
	"sync"
	"sync/atomic"
)

// Registry hands out one exclusive mutex per key (db/table). Entries exist only
// while someone holds or waits for them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs *RefCount
}

// RefCount counts holders and waiters of one entry. It starts at 1 for the
// goroutine that created the entry.
type RefCount struct {
	count int32
}

func NewRefCount() *RefCount {
	return &RefCount{count: 1}
}

func (r *RefCount) Inc() {
	atomic.AddInt32(&r.count, 1)
}

// Dec reports whether the count reached zero.
func (r *RefCount) Dec() bool {
	n := atomic.AddInt32(&r.count, -1)
	if n < 0 {
		panic("locking: refcount dropped below zero")
	}
	return n == 0
}

func (r *RefCount) Get() int32 {
	return atomic.LoadInt32(&r.count)
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free and returns the matching unlock func.
// Calling the returned func more than once is a no-op.
func (r *Registry) Lock(key string) (unlock func()) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		e.refs.Inc()
	} else {
		e = &entry{refs: NewRefCount()}
		r.entries[key] = e
	}
	r.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			r.mu.Lock()
			if e.refs.Dec() {
				delete(r.entries, key)
			}
			r.mu.Unlock()
		})
	}
}

// Held returns the number of live entries; used by tests and stats.
func (r *Registry) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
