// Package app wires the board client, session and socket together. One App
// is built per process and handed to whatever needs it.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maumercado/taskboard-go/internal/config"
	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/internal/session"
	"github.com/maumercado/taskboard-go/pkg/client"
)

// Token store kinds accepted in client.tokenstore.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// App holds the process-wide board state.
type App struct {
	Config  *config.Config
	Session *session.Session
	Client  *client.Client
	Sprints *client.Sprints
	Tasks   *client.Tasks
	Users   *client.Users

	// Socket is set by Start.
	Socket *client.Socket
	Mirror *Mirror

	redis *redis.Client
	log   zerolog.Logger
}

// New builds the session and client described by cfg. Nothing is fetched
// until Start or the first repository call.
func New(ctx context.Context, cfg *config.Config, opts ...client.Option) (*App, error) {
	a := &App{
		Config: cfg,
		log:    logger.WithComponent("app"),
	}

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}

	a.Session, err = session.New(ctx, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	clientOpts := []client.Option{
		client.WithSession(a.Session),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithSocketURL(cfg.Client.SocketURL),
	}
	if cfg.Client.RateLimit > 0 {
		clientOpts = append(clientOpts, client.WithRateLimit(cfg.Client.RateLimit, cfg.Client.Burst))
	}
	clientOpts = append(clientOpts, opts...)

	a.Client, err = client.New(cfg.Client.APIRoot, clientOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sprints = a.Client.Sprints
	a.Tasks = a.Client.Tasks
	a.Users = a.Client.Users
	a.Mirror = NewMirror(a.Client)

	return a, nil
}

func (a *App) newStore(ctx context.Context) (session.Store, error) {
	switch strings.ToLower(a.Config.Client.TokenStore) {
	case StoreMemory:
		return session.NewMemoryStore(), nil
	case StoreRedis:
		client, err := events.NewRedisClient(ctx, &a.Config.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return session.NewRedisStore(client, a.Config.Redis.KeyPrefix), nil
	case StoreFile, "":
		return session.NewFileStore(a.Config.Client.TokenFile), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", a.Config.Client.TokenStore)
	}
}

// Start discovers the API, opens the socket for sprint and mirrors its
// events into the collections.
func (a *App) Start(ctx context.Context, sprint string) error {
	if _, err := a.Client.Discover(ctx); err != nil {
		return err
	}

	if a.Socket == nil {
		sock, err := a.Client.NewSocket(sprint)
		if err != nil {
			return err
		}
		a.Socket = sock
		a.Mirror.Install(sock.Events())
	}

	if err := a.Socket.Open(ctx).Wait(ctx); err != nil {
		return err
	}
	log := logger.WithSprint(sprint)
	log.Info().Str("url", a.Socket.URL()).Msg("watching sprint")
	return nil
}

// Close shuts the socket and releases the Redis connection, if any.
func (a *App) Close() error {
	if a.Mirror != nil {
		a.Mirror.Remove()
		a.Mirror.Wait()
	}
	if a.Socket != nil {
		a.Socket.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
