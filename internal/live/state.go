// Package live holds observable values.
//
// State is a mutable value whose subscribers always see the latest value.
// Shared wraps an upstream stream that runs only while observed.
package live

import (
	"context"
	"reflect"
	"sync"
)

// State holds a value and pushes changes to subscribers. Setting a value
// equal to the current one is a no-op. A subscriber that falls behind sees
// only the most recent value.
type State[T any] struct {
	mu    sync.Mutex
	value T
	next  uint64
	subs  map[uint64]chan T
}

func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, subs: make(map[uint64]chan T)}
}

func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update applies fn to the current value atomically. fn must not call back
// into the State.
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(fn(s.value))
}

func (s *State[T]) setLocked(v T) {
	if reflect.DeepEqual(s.value, v) {
		return
	}
	s.value = v
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Subscribe emits the current value immediately and every later change. The
// channel is closed once ctx is done.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	ch <- s.value
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (s *State[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// offer replaces any undelivered value in ch with v. Callers hold the state
// lock, so there is one sender at a time.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
