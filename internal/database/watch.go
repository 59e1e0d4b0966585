package database

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Hub fans table-change notifications out to subscribers. Notifications are
// conflated: a subscriber that has not consumed the previous signal sees one
// pending signal, not one per write.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

type subscription struct {
	tables map[string]struct{}
	ch     chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Subscribe registers interest in the given tables. The returned cancel
// function must be called to release the subscription.
func (h *Hub) Subscribe(tables ...string) (<-chan struct{}, func()) {
	sub := &subscription{
		tables: make(map[string]struct{}, len(tables)),
		ch:     make(chan struct{}, 1),
	}
	for _, t := range tables {
		sub.tables[t] = struct{}{}
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish signals every subscriber watching at least one of the tables.
func (h *Hub) Publish(tables ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if !sub.watches(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscription) watches(tables []string) bool {
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}

// Query loads a snapshot for a watch.
type Query[T any] func(ctx context.Context, db *gorm.DB) (T, error)

// Watch runs query immediately and again after every committed write to one
// of the tables, emitting each snapshot that differs from the previous one.
// A slow reader only ever sees the latest snapshot. The channel is closed
// when ctx is done.
func Watch[T any](ctx context.Context, d *Database, query Query[T], tables ...string) <-chan T {
	out := make(chan T, 1)
	changes, cancel := d.hub.Subscribe(tables...)

	go func() {
		defer close(out)
		defer cancel()

		var last T
		emitted := false
		for {
			v, err := query(ctx, d.DB.WithContext(ctx))
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				d.logger.Warn("watch query failed", zap.Strings("tables", tables), zap.Error(err))
			case !emitted || !reflect.DeepEqual(last, v):
				last, emitted = v, true
				offer(out, v)
			}

			select {
			case <-ctx.Done():
				return
			case <-changes:
			}
		}
	}()

	return out
}

// offer replaces any undelivered value in ch with v. ch must have capacity 1
// and a single sender.
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
