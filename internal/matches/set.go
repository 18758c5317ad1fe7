// Package matches holds the set of domains found to resolve to a target IP.
// The set buffers matches until it reaches a threshold, at which point the
// whole buffer is handed back to the caller for persistence.
package matches

import (
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// Set is a thread-safe set of matched domains with drain-and-replace flushing.
type Set struct {
	mu        sync.Mutex          // protects fields below
	pending   map[string]struct{} // matches not yet handed out
	seen      map[string]struct{} // every domain ever recorded
	threshold int

	total atomic.Int64 // len(seen), readable without the lock
}

// NewSet returns an empty set that drains once it holds threshold domains.
// A threshold below one is treated as one.
func NewSet(threshold int) *Set {
	if threshold < 1 {
		threshold = 1
	}
	return &Set{
		pending:   make(map[string]struct{}),
		seen:      make(map[string]struct{}),
		threshold: threshold,
	}
}

// Add records domain. Adding a domain that was already recorded is a no-op.
// When the pending set reaches the threshold, its entire contents are taken
// and returned in batch with flush set; the set is left empty. The caller
// owns batch and must persist it.
func (s *Set) Add(domain string) (batch []string, size int, flush bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[domain]; !dup {
		s.seen[domain] = struct{}{}
		s.pending[domain] = struct{}{}
		s.total.Inc()
	}
	size = len(s.pending)
	if size < s.threshold {
		return nil, size, false
	}
	return s.swap(), size, true
}

// Drain takes everything pending, which may be nothing.
func (s *Set) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swap()
}

// Requeue puts a batch that could not be persisted back into the pending set,
// so the next flush carries it. It never triggers a flush by itself.
func (s *Set) Requeue(batch []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range batch {
		s.pending[d] = struct{}{}
	}
}

// Len returns the number of pending domains.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Total returns the number of unique domains recorded so far.
func (s *Set) Total() int64 { return s.total.Load() }

// swap replaces pending with a fresh map and returns the old contents in
// sorted order. Callers must hold mu.
func (s *Set) swap() []string {
	old := s.pending
	s.pending = make(map[string]struct{}, s.threshold)
	out := make([]string, 0, len(old))
	for d := range old {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
