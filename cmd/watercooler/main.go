// Command watercooler relays websocket frames between board clients
// watching the same sprint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maumercado/taskboard-go/internal/api"
	"github.com/maumercado/taskboard-go/internal/config"
	"github.com/maumercado/taskboard-go/internal/events"
	"github.com/maumercado/taskboard-go/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")

	log := logger.Get()
	log.Info().Msg("Starting watercooler relay...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fan frames out across instances when Redis is configured
	var relay *events.RedisPubSub
	if cfg.Redis.Enabled {
		redisClient, err := events.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}()

		relay = events.NewRedisPubSub(redisClient, "")
		defer func() {
			if err := relay.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close relay")
			}
		}()
	}

	// Create server
	server := api.NewServer(cfg, relay)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start WebSocket hub
	server.Start(ctx)

	// Start HTTP server
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Bool("redis", relay != nil).
			Bool("auth", cfg.Auth.Enabled).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down relay...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown, so the hub
	// closes them first.
	server.Stop()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Relay stopped")
}
