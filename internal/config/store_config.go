package config

import (
	"strings"
	"time"
)

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
)

type StoreConfig interface {
	GetTokenStore() StoreKind
	GetTokenStoreDir() string
	GetRedis() RedisConfig
}

// RedisConfig configures the connection shared by the redis token store and the
// redis auth event bus.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

type Store struct {
	Kind  string      `env:"TOKEN_STORE" envDefault:"memory"`
	Dir   string      `env:"TOKEN_STORE_DIR" envDefault:"./data/sessions"`
	Redis RedisConfig
}

var _ StoreConfig = Store{}

func (s Store) GetTokenStore() StoreKind {
	switch kind := StoreKind(strings.ToLower(strings.TrimSpace(s.Kind))); kind {
	case StoreFile, StoreRedis:
		return kind
	}
	return StoreMemory
}

func (s Store) GetTokenStoreDir() string { return s.Dir }
func (s Store) GetRedis() RedisConfig    { return s.Redis }
