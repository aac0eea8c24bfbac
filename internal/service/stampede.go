package service

import (
	"sync"
)

// stampedeTracker counts in-progress cache misses per key. More than one
// concurrent miss for a key means callers are racing to refill the same entry.
type stampedeTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{active: make(map[string]int)}
}

// track registers a miss for key and returns the number of misses now in
// progress, including this one. done must be called once the miss resolves.
func (st *stampedeTracker) track(key string) (concurrent int, done func()) {
	st.mu.Lock()
	st.active[key]++
	concurrent = st.active[key]
	st.mu.Unlock()

	var once sync.Once
	return concurrent, func() {
		once.Do(func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			st.active[key]--
			if st.active[key] <= 0 {
				delete(st.active, key)
			}
		})
	}
}

func (st *stampedeTracker) inProgress(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active[key]
}
