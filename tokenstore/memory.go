package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
)

var _ Store = (*Memory)(nil)

// Memory keeps tokens for the lifetime of the process only.
type Memory struct {
	entries map[principal.Kind]entry
	mu      sync.RWMutex
	nowTime func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store using nowTime for expiry checks.
func NewMemoryWithClock(nowTime func() time.Time) *Memory {
	return &Memory{
		entries: make(map[principal.Kind]entry),
		nowTime: nowTime,
	}
}

func (m *Memory) Save(_ context.Context, kind principal.Kind, token string, ttl time.Duration) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[kind] = newEntry(token, ttl, m.nowTime())
	return nil
}

func (m *Memory) Load(_ context.Context, kind principal.Kind) (string, error) {
	m.mu.RLock()
	e, ok := m.entries[kind]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	now := m.nowTime()
	if !e.expired(now) {
		return e.Token, nil
	}

	// A Save may have replaced the entry since the read lock was released.
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[kind]
	if !ok {
		return "", ErrNotFound
	}
	if !cur.expired(now) {
		return cur.Token, nil
	}
	delete(m.entries, kind)
	return "", ErrNotFound
}

func (m *Memory) Remove(_ context.Context, kind principal.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, kind)
	return nil
}

// MemoryProvider hands out one shared Memory per scope, so managers bound to the same
// scope in one process see each other's writes.
func MemoryProvider() Provider {
	var (
		mu     sync.Mutex
		scopes = make(map[string]*Memory)
	)
	return func(scope string) (Store, error) {
		if scope == "" {
			return nil, ErrInvalidScope
		}
		mu.Lock()
		defer mu.Unlock()
		m, ok := scopes[scope]
		if !ok {
			m = NewMemory()
			scopes[scope] = m
		}
		return m, nil
	}
}
