// Package readiness provides a binary condition that goroutines can set, clear
// and wait on. It backs both the "network ready" and "reading ready" signals.
package readiness

import (
	"context"
	"sync"
)

type Flag struct {
	name string
	mu   sync.Mutex
	set  bool
	ch   chan struct{}
}

func New(name string) *Flag {
	return &Flag{name: name, ch: make(chan struct{})}
}

func (f *Flag) Name() string {
	return f.name
}

// Set raises the flag and releases every waiter. Setting a raised flag is a no-op.
func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.ch)
	}
}

// Clear lowers the flag. Later waiters block until the next Set.
func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		f.set = false
		f.ch = make(chan struct{})
	}
}

func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Done returns a channel that is closed once the flag is raised.
func (f *Flag) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

// Wait blocks until the flag is raised or ctx is done. There is no other timeout.
func (f *Flag) Wait(ctx context.Context) error {
	select {
	case <-f.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
