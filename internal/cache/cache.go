// Package cache holds locally cached copies of backend state and decides
// which fetch results are allowed to replace them.
package cache

import (
	"sync"
	"time"
)

// Snapshot is one accepted value together with the ticket that produced it
type Snapshot[T any] struct {
	Value     T
	Seq       uint64
	FetchedAt time.Time
}

// Latest keeps the newest accepted snapshot. Every fetch takes a ticket with
// Begin before going to the network; Commit drops results whose ticket is
// older than the snapshot already held.
type Latest[T any] struct {
	mu      sync.Mutex
	issued  uint64
	current Snapshot[T]
	now     func() time.Time
}

// NewLatest returns an empty cache holding the zero value of T
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{now: time.Now}
}

// Begin issues the ticket for a new fetch
func (l *Latest[T]) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return l.issued
}

// Commit stores v if seq is newer than the held snapshot and reports whether
// it did
func (l *Latest[T]) Commit(seq uint64, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.current.Seq {
		return false
	}
	l.current = Snapshot[T]{Value: v, Seq: seq, FetchedAt: l.now()}
	return true
}

// Update applies a local change under a fresh ticket, so fetches started
// before it can no longer overwrite it
func (l *Latest[T]) Update(fn func(T) T) Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	l.current = Snapshot[T]{Value: fn(l.current.Value), Seq: l.issued, FetchedAt: l.current.FetchedAt}
	return l.current
}

// Get returns the held snapshot
func (l *Latest[T]) Get() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Reset drops the held value and invalidates every outstanding ticket
func (l *Latest[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.issued++
	l.current = Snapshot[T]{Value: zero, Seq: l.issued}
}
