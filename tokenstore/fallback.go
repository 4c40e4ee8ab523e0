package tokenstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/rs/zerolog/log"
)

var _ Store = (*Fallback)(nil)

// Fallback shields callers from an unavailable primary store. The first primary
// failure switches it to an in-memory store for the rest of its life, so the session
// keeps working for the current process but will not survive a restart.
// Writes are mirrored into memory while the primary is healthy, so a switch keeps
// the last token written through this store.
// Fallback never returns an error other than ErrNotFound.
type Fallback struct {
	primary  Store
	memory   *Memory
	scope    string
	degraded atomic.Bool
}

// NewFallback wraps primary.
func NewFallback(primary Store, scope string) *Fallback {
	return &Fallback{
		primary: primary,
		memory:  NewMemory(),
		scope:   scope,
	}
}

// FallbackProvider wraps every store returned by p. When p itself fails the scope
// starts out degraded.
func FallbackProvider(p Provider) Provider {
	return func(scope string) (Store, error) {
		primary, err := p(scope)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("token store unavailable, keeping tokens in memory")
			f := NewFallback(nil, scope)
			f.degraded.Store(true)
			return f, nil
		}
		return NewFallback(primary, scope), nil
	}
}

// Degraded reports whether the store has switched to memory.
func (f *Fallback) Degraded() bool {
	return f.degraded.Load()
}

func (f *Fallback) degrade(op string, kind principal.Kind, err error) {
	if f.degraded.CompareAndSwap(false, true) {
		log.Warn().Err(err).Str("scope", f.scope).Str("kind", kind.String()).Str("op", op).
			Msg("token store failed, keeping tokens in memory")
	}
}

func (f *Fallback) Save(ctx context.Context, kind principal.Kind, token string, ttl time.Duration) error {
	if err := f.memory.Save(ctx, kind, token, ttl); err != nil {
		return err
	}
	if !f.Degraded() {
		if err := f.primary.Save(ctx, kind, token, ttl); err != nil {
			f.degrade("save", kind, err)
		}
	}
	return nil
}

func (f *Fallback) Load(ctx context.Context, kind principal.Kind) (string, error) {
	if !f.Degraded() {
		token, err := f.primary.Load(ctx, kind)
		if err == nil || errors.Is(err, ErrNotFound) {
			return token, err
		}
		f.degrade("load", kind, err)
	}
	return f.memory.Load(ctx, kind)
}

func (f *Fallback) Remove(ctx context.Context, kind principal.Kind) error {
	_ = f.memory.Remove(ctx, kind)
	if !f.Degraded() {
		if err := f.primary.Remove(ctx, kind); err != nil {
			f.degrade("remove", kind, err)
		}
	}
	return nil
}
