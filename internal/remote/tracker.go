package remote

import (
	"context"
	"sync"

	"github.com/mrlokans/readstack/internal/live"
)

// Fetch performs one request.
type Fetch[T any] func(ctx context.Context) (T, error)

// Tracker publishes the state of the most recent request. Starting a request
// cancels the one in flight, and a superseded request never overwrites the
// published state.
type Tracker[T any] struct {
	state    *live.State[Response[T]]
	describe func(error) string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewTracker creates an idle tracker. describe turns request errors into the
// published message.
func NewTracker[T any](describe func(error) string) *Tracker[T] {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	return &Tracker[T]{
		state:    live.NewState(Idle[T]()),
		describe: describe,
	}
}

// Run publishes Loading, runs fetch and publishes its outcome unless a newer
// request started meanwhile. It returns this request's own outcome and
// whether it was published.
func (t *Tracker[T]) Run(ctx context.Context, fetch Fetch[T]) (Response[T], bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.cancel = cancel
	t.state.Set(Loading[T]())
	t.mu.Unlock()

	var resp Response[T]
	data, err := fetch(ctx)
	if err != nil {
		resp = Failure[T](t.describe(err))
	} else {
		resp = Success(data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return resp, false
	}
	t.cancel = nil
	t.state.Set(resp)
	return resp, true
}

// Current returns the published state.
func (t *Tracker[T]) Current() Response[T] {
	return t.state.Get()
}

// Subscribe streams the published state.
func (t *Tracker[T]) Subscribe(ctx context.Context) <-chan Response[T] {
	return t.state.Subscribe(ctx)
}

// Reset cancels any request in flight and returns to Idle.
func (t *Tracker[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.state.Set(Idle[T]())
}
