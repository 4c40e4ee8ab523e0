package config

import (
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	AuthAPIConfig
	StoreConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	AuthAPI
	Store
	Session
}

var _ Config = mainConfig{}

var dotenvLoaded sync.Once

// New loads the configuration from the environment, after reading a .env file
// from the working directory when there is one.
func New() (Config, error) {
	dotenvLoaded.Do(func() {
		_ = godotenv.Load()
	})

	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] parse environment")
	}
	return c, nil
}

// NewFromMap builds the configuration from vars only, ignoring the process
// environment. Unset variables take their defaults.
func NewFromMap(vars map[string]string) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, errors.Wrap(err, "[config.NewFromMap] parse environment")
	}
	return c, nil
}
