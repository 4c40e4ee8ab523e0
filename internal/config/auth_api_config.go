package config

import "time"

type AuthAPIConfig interface {
	GetAuthAPIURL() string
	GetAuthAPITimeout() time.Duration
	// GetFakeAPI reports whether the server should mount the in-memory auth API
	// instead of calling a remote one.
	GetFakeAPI() bool
	GetFakeAPISecret() string
}

type AuthAPI struct {
	URL        string        `env:"AUTH_API_URL" envDefault:"http://localhost:8090/api/v1"`
	Timeout    time.Duration `env:"AUTH_API_TIMEOUT" envDefault:"10s"`
	Fake       bool          `env:"FAKE_API" envDefault:"false"`
	FakeSecret string        `env:"FAKE_API_SECRET" envDefault:"dev-secret"`
}

var _ AuthAPIConfig = AuthAPI{}

func (a AuthAPI) GetAuthAPIURL() string            { return a.URL }
func (a AuthAPI) GetAuthAPITimeout() time.Duration { return a.Timeout }
func (a AuthAPI) GetFakeAPI() bool                 { return a.Fake }
func (a AuthAPI) GetFakeAPISecret() string         { return a.FakeSecret }
