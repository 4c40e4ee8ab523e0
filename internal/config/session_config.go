package config

import "time"

type SessionConfig interface {
	// GetDefaultTokenTTL is the persistence ttl used when the auth API does not
	// report how long a token lives.
	GetDefaultTokenTTL() time.Duration
	GetEventBufferSize() int
	// GetScopeIdleTTL is how long an unused browser scope keeps its session manager.
	GetScopeIdleTTL() time.Duration
	// GetMaxScopes caps the session managers held in memory; 0 means no cap.
	GetMaxScopes() int
}

type Session struct {
	DefaultTokenTTL time.Duration `env:"DEFAULT_TOKEN_TTL" envDefault:"1h"`
	EventBuffer     int           `env:"AUTH_EVENT_BUFFER" envDefault:"16"`
	ScopeIdleTTL    time.Duration `env:"SCOPE_IDLE_TTL" envDefault:"30m"`
	MaxScopes       int           `env:"SCOPE_MAX" envDefault:"10000"`
}

var _ SessionConfig = Session{}

func (s Session) GetDefaultTokenTTL() time.Duration { return s.DefaultTokenTTL }
func (s Session) GetScopeIdleTTL() time.Duration    { return s.ScopeIdleTTL }
func (s Session) GetEventBufferSize() int {
	if s.EventBuffer <= 0 {
		return 16
	}
	return s.EventBuffer
}

func (s Session) GetMaxScopes() int {
	if s.MaxScopes < 0 {
		return 0
	}
	return s.MaxScopes
}
