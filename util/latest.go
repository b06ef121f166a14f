package util

import (
	"sync"
)

// Latest keeps only the most recently published value of T and wakes up a
// single consumer without ever blocking the publisher. Consumers that fall
// behind see the newest value, never a backlog.
type Latest[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	notify  chan struct{} // capacity 1, coalesces notifications
}

// NewLatest creates an empty Latest.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{
		notify: make(chan struct{}, 1),
	}
}

// Publish stores v as the latest value.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	l.value = v
	l.version++
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
		// a wake-up is already pending
	}
}

// Changed returns the channel to select on for new values.
func (l *Latest[T]) Changed() <-chan struct{} {
	return l.notify
}

// Load returns the latest value and how many values have been published so
// far. The version is 0 when nothing has been published yet.
func (l *Latest[T]) Load() (T, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.version
}

// Value returns the latest value.
func (l *Latest[T]) Value() T {
	v, _ := l.Load()
	return v
}
