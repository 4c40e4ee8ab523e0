// Package session holds the authentication state of one browsing scope for both
// principal kinds. Every change goes through a named operation and is applied by a
// single reducer, and observers are notified after each committed change.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/pkg/errors"
)

const DefaultScope = "default"

// API is the remote auth API. *authapi.Client implements it.
type API interface {
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.AuthResponse, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.AuthResponse, error)
	OwnerLogin(ctx context.Context, req authapi.OwnerLoginRequest) (*authapi.OwnerAuthResponse, error)
	OwnerRegister(ctx context.Context, req authapi.OwnerRegisterRequest) (*authapi.OwnerAuthResponse, error)
	Refresh(ctx context.Context, bearer string) (*authapi.RefreshResponse, error)
	OwnerRefresh(ctx context.Context, bearer string) (*authapi.RefreshResponse, error)
}

// Navigator receives the navigation side effects of session operations. ctx is the
// context of the operation that navigates.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

// Deps holds the collaborators of a Manager. Bus and Navigator are optional.
type Deps struct {
	API       API
	Store     tokenstore.Store
	Bus       authevents.Bus
	Navigator Navigator
}

// Manager is the single source of truth for the sessions of one scope.
type Manager struct {
	deps     Deps
	scope    string
	tabID    string
	storeTTL time.Duration
	nowTime  func() time.Time

	mu        sync.Mutex
	kinds     map[principal.Kind]kindState
	hydrating bool
	version   uint64

	// persist serialises the commit and store write of each kind, so a logout can
	// never be overtaken by the save of a login it superseded.
	persist map[principal.Kind]*sync.Mutex

	notifyMu  sync.Mutex
	notified  uint64
	observers map[uint64]func(Snapshot)
	nextObs   uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithScope binds the manager to a browsing scope shared by several tabs.
func WithScope(scope string) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// WithTabID sets the identifier stamped on published auth events.
func WithTabID(id string) Option {
	return func(m *Manager) {
		m.tabID = id
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithStoreTTL sets the persistence ttl used when a response carries no expiresIn.
func WithStoreTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.storeTTL = ttl
	}
}

// New creates a manager. The session reports Loading until Hydrate has run.
func New(deps Deps, options ...Option) (*Manager, error) {
	if deps.API == nil {
		return nil, errors.New("[session.New] API is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[session.New] Store is required")
	}
	if deps.Navigator == nil {
		deps.Navigator = NavigatorFunc(func(context.Context, string) {})
	}

	m := &Manager{
		deps:      deps,
		scope:     DefaultScope,
		tabID:     uuid.NewString(),
		nowTime:   time.Now,
		kinds:     make(map[principal.Kind]kindState, 2),
		hydrating: true,
		persist:   make(map[principal.Kind]*sync.Mutex, 2),
		observers: make(map[uint64]func(Snapshot)),
	}
	for _, kind := range principal.Kinds() {
		m.kinds[kind] = kindState{}
		m.persist[kind] = &sync.Mutex{}
	}
	for _, opt := range options {
		opt(m)
	}
	if m.scope == "" {
		return nil, errors.New("[session.New] scope must not be empty")
	}
	return m, nil
}

func (m *Manager) Scope() string { return m.scope }
func (m *Manager) TabID() string { return m.tabID }

// Snapshot returns a consistent copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IsAuthenticated reports whether either kind holds both a principal and a token.
func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

// Subscribe registers fn to receive the session after every committed change.
// fn runs synchronously and must not call Manager operations that change state.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.notifyMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.notifyMu.Unlock()

	return func() {
		m.notifyMu.Lock()
		delete(m.observers, id)
		m.notifyMu.Unlock()
	}
}

// apply runs the reducer for kind and commits the result. m.mu must be held.
func (m *Manager) apply(kind principal.Kind, t transition) (kindState, error) {
	before := m.kinds[kind]
	after, err := reduce(before, t)
	if err != nil {
		return before, err
	}
	m.kinds[kind] = after
	m.version++
	if before.state != after.state {
		metrics.SessionTransitionsTotal.WithLabelValues(kind.String(), before.state.String(), after.state.String()).Inc()
	}
	return after, nil
}

// notify delivers snap to observers unless a newer snapshot was already delivered.
func (m *Manager) notify(snap Snapshot) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if snap.Version <= m.notified {
		return
	}
	m.notified = snap.Version
	for _, fn := range m.observers {
		fn(snap)
	}
}

// begin starts a remote operation for kind and returns the generation it belongs to.
func (m *Manager) begin(kind principal.Kind, op transitionOp, name string) (uint64, string, error) {
	m.mu.Lock()
	ks, err := m.apply(kind, transition{op: op})
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrConcurrentOperation) {
			metrics.RejectedOperationsTotal.WithLabelValues(kind.String(), name).Inc()
		}
		return 0, "", err
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return ks.generation, ks.token, nil
}
