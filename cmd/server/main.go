package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authapi/fakeapi"
	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/config"
	"github.com/jrsteele09/go-booking-session/internal/redisconn"
	"github.com/jrsteele09/go-booking-session/server"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// fakeAPIPrefix is where the in-process auth API is mounted when FAKE_API is set.
const fakeAPIPrefix = "/api/v1"

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	deps, cleanup, err := buildDeps(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.GetFakeAPI() {
		deps.API = authapi.NewClient("http://localhost"+c.GetPort()+fakeAPIPrefix, authapi.WithTimeout(c.GetAuthAPITimeout()))
	}
	s, err := server.New(c, deps)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer s.Close()

	var handler http.Handler = s
	if c.GetFakeAPI() {
		handler = withFakeAPI(c, s)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := listenAndServe(httpServer); err != nil {
			log.Err(err).Msg("Server failed")
		}
	}()
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// buildDeps wires the auth API client, the token stores and the auth event bus.
func buildDeps(c config.Config) (server.Deps, func(), error) {
	deps := server.Deps{
		API:          authapi.NewClient(c.GetAuthAPIURL(), authapi.WithTimeout(c.GetAuthAPITimeout())),
		HealthChecks: map[string]func(context.Context) error{},
	}
	cleanup := func() {}

	switch c.GetTokenStore() {
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), c.GetRedis().ConnectTimeout)
		defer cancel()
		client, err := redisconn.Connect(ctx, c.GetRedis())
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("redisconn.Connect: %w", err)
		}
		bus := authevents.NewRedisBus(client)
		deps.Stores = tokenstore.RedisProvider(client)
		deps.Bus = bus
		deps.HealthChecks["redis"] = redisconn.Healthcheck(client)
		cleanup = func() {
			_ = bus.Close()
			closeRedis(client)
		}
		log.Info().Msg("Token store: redis")
	case config.StoreFile:
		hub := authevents.NewHub(c.GetEventBufferSize())
		deps.Stores = tokenstore.FileProvider(c.GetTokenStoreDir())
		deps.Bus = hub
		cleanup = func() { _ = hub.Close() }
		log.Info().Str("dir", c.GetTokenStoreDir()).Msg("Token store: file")
	default:
		hub := authevents.NewHub(c.GetEventBufferSize())
		deps.Stores = tokenstore.MemoryProvider()
		deps.Bus = hub
		cleanup = func() { _ = hub.Close() }
		log.Info().Msg("Token store: memory")
	}
	deps.Stores = tokenstore.FallbackProvider(deps.Stores)

	return deps, cleanup, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close redis client")
	}
}

// withFakeAPI serves an in-memory auth API next to the application.
func withFakeAPI(c config.Config, app http.Handler) http.Handler {
	log.Warn().Str("prefix", fakeAPIPrefix).Msg("Serving the fake auth API; accounts are lost on restart")
	mux := http.NewServeMux()
	mux.Handle(fakeAPIPrefix+"/", http.StripPrefix(fakeAPIPrefix, fakeapi.New(c.GetFakeAPISecret())))
	mux.Handle("/", app)
	return mux
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
