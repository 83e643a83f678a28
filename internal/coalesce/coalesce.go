// Package coalesce serializes writes that share a key.
//
// A call to Do for a key that already has a write in flight waits until that
// write settles before running its own. Calls for one key run one at a time in
// the order they were issued; calls for different keys never wait on each other.
package coalesce

import (
	"context"
	"sync"
)

// Serializer runs fn with exclusive access to key.
type Serializer interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type slot struct {
	tail  chan struct{} // closed when the most recently issued call settles
	calls int
}

// Registry is the in-process Serializer: a map from key to the completion
// handle of the last issued call.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*slot)}
}

// Do waits for the previous call on key to settle, then runs fn. The slot is
// released whether fn succeeds, fails or panics. If ctx ends while waiting,
// Do returns ctx.Err() without running fn and later calls keep their order.
func (r *Registry) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	done := make(chan struct{})

	r.mu.Lock()
	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
	}
	prev := s.tail
	s.tail = done
	s.calls++
	r.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				r.release(key, done)
			}()
			return ctx.Err()
		}
	}

	defer r.release(key, done)
	return fn(ctx)
}

func (r *Registry) release(key string, done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(done)
	s := r.slots[key]
	s.calls--
	if s.calls == 0 {
		delete(r.slots, key)
	}
}

// InFlight reports how many calls for key are running or waiting.
func (r *Registry) InFlight(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[key]; ok {
		return s.calls
	}
	return 0
}
