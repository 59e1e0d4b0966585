package live

import (
	"context"
	"sync"
	"time"
)

// Source starts an upstream stream. The stream must close once ctx is done.
type Source[T any] func(ctx context.Context) <-chan T

// Shared exposes an upstream stream as a State. The upstream is started by
// the first subscriber and stopped once the last subscriber has been gone
// for the grace period. The last value survives restarts.
type Shared[T any] struct {
	state  *State[T]
	source Source[T]
	grace  time.Duration

	mu        sync.Mutex
	observers int
	gen       uint64
	cancel    context.CancelFunc
	stopTimer *time.Timer
}

func NewShared[T any](initial T, grace time.Duration, source Source[T]) *Shared[T] {
	return &Shared[T]{
		state:  NewState(initial),
		source: source,
		grace:  grace,
	}
}

// Value returns the latest value without subscribing.
func (s *Shared[T]) Value() T {
	return s.state.Get()
}

// Subscribe behaves like State.Subscribe and keeps the upstream running
// until ctx is done.
func (s *Shared[T]) Subscribe(ctx context.Context) <-chan T {
	s.acquire()
	ch := s.state.Subscribe(ctx)
	go func() {
		<-ctx.Done()
		s.release()
	}()
	return ch
}

// Active reports whether the upstream is running.
func (s *Shared[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Shared[T]) acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers++
	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	go s.pump(s.gen, s.source(ctx))
}

func (s *Shared[T]) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers--
	if s.observers > 0 {
		return
	}
	if s.grace <= 0 {
		s.stopLocked()
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopTimer == timer && s.observers == 0 {
			s.stopTimer = nil
			s.stopLocked()
		}
	})
	s.stopTimer = timer
}

func (s *Shared[T]) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Shared[T]) pump(gen uint64, upstream <-chan T) {
	for v := range upstream {
		s.mu.Lock()
		if gen == s.gen && s.cancel != nil {
			s.state.Set(v)
		}
		s.mu.Unlock()
	}
}
