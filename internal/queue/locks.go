package queue

import (
	"sort"
	"sync"
)

// ResourceLocks provides per-resource mutual exclusion for concurrent task
// execution. Each resource key (whatever a task declares in Resources) gets
// its own mutex, so tasks touching disjoint resources run concurrently while
// tasks sharing a resource serialize.
type ResourceLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-resource mutexes
}

// NewResourceLocks creates an empty lock manager.
func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire locks a single resource key, creating its mutex on first use.
func (r *ResourceLocks) Acquire(key string) {
	r.mu.Lock()
	lock, exists := r.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	r.mu.Unlock()

	// Acquired outside the manager lock to avoid blocking other keys.
	lock.Lock()
}

// Release unlocks a single resource key.
func (r *ResourceLocks) Release(key string) {
	r.mu.Lock()
	lock, exists := r.locks[key]
	r.mu.Unlock()

	if exists {
		lock.Unlock()
	}
}

// AcquireAll locks every given key. Keys are sorted before acquisition so
// that two tasks contending for overlapping resource sets always lock in the
// same order and cannot deadlock.
func (r *ResourceLocks) AcquireAll(keys []string) {
	if len(keys) == 0 {
		return
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for _, key := range sorted {
		r.Acquire(key)
	}
}

// ReleaseAll unlocks every given key in reverse sorted order, mirroring
// AcquireAll.
func (r *ResourceLocks) ReleaseAll(keys []string) {
	if len(keys) == 0 {
		return
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		r.Release(sorted[i])
	}
}
