// Package rowlock implements the per-user, in-process row locking the
// contract engine (C7) uses to serialize Execute/Settle/Cancel/Expire
// calls that touch overlapping player sets (§5: "implementations MAY
// acquire per-user row locks in a canonical order to avoid deadlocks").
// Locks are always acquired sorted by userID, so two operations racing
// over the same set of players always agree on acquisition order.
package rowlock

import (
	"sort"
	"sync"
)

// Locker is a striped set of per-key mutexes.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

func (l *Locker) mutexFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Release unlocks the mutexes for keys, in reverse of acquisition order.
type Release func()

// AcquireSorted locks the mutexes for a deduplicated, sorted copy of keys
// and returns a function to release them all. Locking in a fixed global
// order (lexicographic by userID) prevents deadlock between two calls
// that lock overlapping, differently-ordered sets of users.
func (l *Locker) AcquireSorted(keys []string) Release {
	unique := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		unique[k] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for k := range unique {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	mutexes := make([]*sync.Mutex, len(sorted))
	for i, k := range sorted {
		mutexes[i] = l.mutexFor(k)
	}
	for _, m := range mutexes {
		m.Lock()
	}
	return func() {
		for i := len(mutexes) - 1; i >= 0; i-- {
			mutexes[i].Unlock()
		}
	}
}
