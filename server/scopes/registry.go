// Package scopes keeps one session manager per browser scope.
package scopes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-booking-session/session"
	"github.com/rs/zerolog/log"
)

// Factory builds the manager of a scope.
type Factory func(scope string) (*session.Manager, error)

// Registry creates managers lazily. A new manager is hydrated from its token store
// and watches the scope's auth events until the registry is closed or the scope
// is evicted. Evicted scopes are rebuilt from their token store on next use.
type Registry struct {
	factory  Factory
	idleTTL  time.Duration
	maxScope int
	nowTime  func() time.Time

	mu       sync.Mutex
	managers map[string]*entry
	closed   bool
	stop     chan struct{}
}

type entry struct {
	manager  *session.Manager
	cancel   context.CancelFunc
	ready    chan struct{}
	err      error
	lastUsed time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTTL evicts scopes not used for ttl. A background sweep runs every ttl/2.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

// WithMaxScopes caps the number of live scopes; the least recently used one is
// evicted to make room.
func WithMaxScopes(n int) Option {
	return func(r *Registry) {
		r.maxScope = n
	}
}

// WithNowTime sets the clock used for idle tracking.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

func NewRegistry(factory Factory, options ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		nowTime:  time.Now,
		managers: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(r)
	}
	if r.idleTTL > 0 {
		go r.janitor(r.idleTTL / 2)
	}
	return r
}

// Get returns the manager of scope, creating and hydrating it on first use.
// Concurrent first requests for a scope share one manager.
func (r *Registry) Get(ctx context.Context, scope string) (*session.Manager, error) {
	if scope == "" {
		return nil, fmt.Errorf("scope is required")
	}

	var evicted []context.CancelFunc
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry closed")
	}
	e, ok := r.managers[scope]
	if !ok {
		if r.maxScope > 0 && len(r.managers) >= r.maxScope {
			evicted = r.evictOldestLocked()
		}
		e = &entry{ready: make(chan struct{})}
		r.managers[scope] = e
	}
	e.lastUsed = r.nowTime()
	r.mu.Unlock()

	for _, cancel := range evicted {
		cancel()
	}

	if ok {
		select {
		case <-e.ready:
			return e.manager, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.manager, e.err = r.start(scope, e)
	if e.err != nil {
		r.mu.Lock()
		if r.managers[scope] == e {
			delete(r.managers, scope)
		}
		r.mu.Unlock()
	}
	close(e.ready)
	return e.manager, e.err
}

func (r *Registry) start(scope string, e *entry) (*session.Manager, error) {
	m, err := r.factory(scope)
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := m.Watch(watchCtx); err != nil {
		// The session still works within this process without cross-tab events.
		log.Warn().Err(err).Str("scope", scope).Msg("could not watch auth events")
	}
	m.Hydrate(watchCtx)

	r.mu.Lock()
	live := r.managers[scope] == e
	if live {
		e.cancel = cancel
	}
	r.mu.Unlock()
	if !live {
		cancel()
	}
	return m, nil
}

// evictable reports whether e can be dropped: built, and not in the middle of an
// operation whose result would be lost. r.mu must be held.
func evictable(e *entry) bool {
	select {
	case <-e.ready:
	default:
		return false
	}
	return e.manager == nil || !e.manager.Snapshot().Loading
}

// evictOldestLocked drops the least recently used evictable scope. r.mu must be held.
func (r *Registry) evictOldestLocked() []context.CancelFunc {
	var (
		oldest string
		found  bool
		at     time.Time
	)
	for scope, e := range r.managers {
		if !evictable(e) {
			continue
		}
		if !found || e.lastUsed.Before(at) {
			oldest, at, found = scope, e.lastUsed, true
		}
	}
	if !found {
		return nil
	}
	cancel := r.managers[oldest].cancel
	delete(r.managers, oldest)
	if cancel == nil {
		return nil
	}
	return []context.CancelFunc{cancel}
}

// Sweep evicts every scope idle for longer than the idle ttl and returns how many
// were evicted.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.nowTime().Add(-r.idleTTL)

	var cancels []context.CancelFunc
	evicted := 0
	r.mu.Lock()
	for scope, e := range r.managers {
		if !e.lastUsed.Before(cutoff) || !evictable(e) {
			continue
		}
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
		delete(r.managers, scope)
		evicted++
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("evicted idle session scopes")
	}
	return evicted
}

func (r *Registry) janitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Delete forgets the manager of scope and stops its event watch.
func (r *Registry) Delete(scope string) {
	r.mu.Lock()
	var cancel context.CancelFunc
	if e, ok := r.managers[scope]; ok {
		cancel = e.cancel
		delete(r.managers, scope)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Len returns the number of live scopes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Close stops every event watch and the idle sweep. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	var cancels []context.CancelFunc
	for _, e := range r.managers {
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	r.managers = make(map[string]*entry)
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
