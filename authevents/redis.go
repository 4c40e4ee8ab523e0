package authevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisChannelPrefix = "booking:auth-events:"

var _ Bus = (*RedisBus)(nil)

// RedisBus carries auth events between processes over redis pub/sub.
type RedisBus struct {
	db         redis.UniversalClient
	bufferSize int
}

// NewRedisBus creates a bus on top of db. The caller owns db.
func NewRedisBus(db redis.UniversalClient) *RedisBus {
	return &RedisBus{db: db, bufferSize: defaultBufferSize}
}

func redisChannel(scope string) string {
	return redisChannelPrefix + scope
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.Scope == "" {
		return ErrInvalidScope
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode auth event: %w", err)
	}
	if err := b.db.Publish(ctx, redisChannel(ev.Scope), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, scope string) (Subscription, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}
	ps := b.db.Subscribe(ctx, redisChannel(scope))
	// Wait for the subscription confirmation so no event published after Subscribe
	// returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &redisSubscription{
		ps:   ps,
		ch:   make(chan Event, b.bufferSize),
		done: make(chan struct{}),
	}
	go sub.pump(ctx)
	return sub, nil
}

// Close is a no-op; the redis client belongs to the caller.
func (b *RedisBus) Close() error {
	return nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) C() <-chan Event {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed auth event")
				continue
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}
