package live

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func TestState_SubscribeEmitsCurrentThenChanges(t *testing.T) {
	s := NewState(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	assert.Equal(t, 1, receive(t, ch))

	s.Set(2)
	assert.Equal(t, 2, receive(t, ch))
	assert.Equal(t, 2, s.Get())
}

func TestState_EqualValueIsNotReemitted(t *testing.T) {
	s := NewState([]string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	receive(t, ch)

	s.Set([]string{"a"})
	select {
	case v := <-ch:
		t.Fatalf("unexpected emission %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestState_SlowSubscriberSeesLatest(t *testing.T) {
	s := NewState(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	for i := 1; i <= 10; i++ {
		s.Set(i)
	}
	assert.Equal(t, 10, receive(t, ch))
}

func TestState_Update(t *testing.T) {
	s := NewState(5)
	s.Update(func(v int) int { return v * 2 })
	assert.Equal(t, 10, s.Get())
}

func TestState_CancelClosesChannel(t *testing.T) {
	s := NewState("x")
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	receive(t, ch)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Subscribers())
}

type fakeUpstream struct {
	starts atomic.Int32
	stops  atomic.Int32
	values chan int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{values: make(chan int)}
}

func (f *fakeUpstream) source(ctx context.Context) <-chan int {
	f.starts.Add(1)
	out := make(chan int)
	go func() {
		defer close(out)
		defer f.stops.Add(1)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-f.values:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func TestShared_DefaultsBeforeFirstEmission(t *testing.T) {
	up := newFakeUpstream()
	s := NewShared([]int{}, time.Hour, func(ctx context.Context) <-chan []int {
		out := make(chan []int)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		up.starts.Add(1)
		return out
	})

	assert.Empty(t, s.Value())
	assert.False(t, s.Active())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Empty(t, receive(t, s.Subscribe(ctx)))
	assert.True(t, s.Active())
	assert.Equal(t, int32(1), up.starts.Load())
}

func TestShared_StartsOnceAndStopsAfterGrace(t *testing.T) {
	up := newFakeUpstream()
	s := NewShared(0, 50*time.Millisecond, up.source)

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	ch1 := s.Subscribe(ctx1)
	ch2 := s.Subscribe(ctx2)
	receive(t, ch1)
	receive(t, ch2)
	assert.Equal(t, int32(1), up.starts.Load())

	up.values <- 7
	assert.Equal(t, 7, receive(t, ch1))
	assert.Equal(t, 7, receive(t, ch2))

	cancel1()
	cancel2()
	assert.Eventually(t, func() bool { return up.stops.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Active())
	assert.Equal(t, 7, s.Value())
}

func TestShared_ResubscribeWithinGraceReusesUpstream(t *testing.T) {
	up := newFakeUpstream()
	s := NewShared(0, time.Hour, up.source)

	ctx1, cancel1 := context.WithCancel(context.Background())
	receive(t, s.Subscribe(ctx1))
	cancel1()
	time.Sleep(20 * time.Millisecond)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	receive(t, s.Subscribe(ctx2))

	assert.Equal(t, int32(1), up.starts.Load())
	assert.Equal(t, int32(0), up.stops.Load())
}

func TestShared_ZeroGraceStopsImmediately(t *testing.T) {
	up := newFakeUpstream()
	s := NewShared(0, 0, up.source)

	ctx, cancel := context.WithCancel(context.Background())
	receive(t, s.Subscribe(ctx))
	cancel()

	assert.Eventually(t, func() bool { return up.stops.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	receive(t, s.Subscribe(ctx2))
	assert.Eventually(t, func() bool { return up.starts.Load() == 2 }, time.Second, 5*time.Millisecond)
}
