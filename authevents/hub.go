package authevents

import (
	"context"
	"sync"
)

const defaultBufferSize = 16

var _ Bus = (*Hub)(nil)

// Hub is an in-process Bus.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[*hubSubscription]struct{}
	bufferSize int
	closed     bool
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		subs:       make(map[string]map[*hubSubscription]struct{}),
		bufferSize: bufferSize,
	}
}

type hubSubscription struct {
	hub   *Hub
	scope string
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

func (s *hubSubscription) C() <-chan Event {
	return s.ch
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
		close(s.ch)
	})
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, scope string) (Subscription, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	sub := &hubSubscription{
		hub:   h,
		scope: scope,
		ch:    make(chan Event, h.bufferSize),
		done:  make(chan struct{}),
	}
	if h.subs[scope] == nil {
		h.subs[scope] = make(map[*hubSubscription]struct{})
	}
	h.subs[scope][sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[ev.Scope] {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
	return nil
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*hubSubscription
	for _, scoped := range h.subs {
		for sub := range scoped {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

func (h *Hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	scoped := h.subs[sub.scope]
	delete(scoped, sub)
	if len(scoped) == 0 {
		delete(h.subs, sub.scope)
	}
}
