package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/srb-saurabh/collaborative-canvas/internal/api"
	"github.com/srb-saurabh/collaborative-canvas/internal/config"
	"github.com/srb-saurabh/collaborative-canvas/internal/hub"
	"github.com/srb-saurabh/collaborative-canvas/internal/room"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	// All room state is in-memory for the process lifetime.
	registry := room.NewRegistry()
	coord := hub.New(registry, logger, hub.Options{
		DefaultRoom: cfg.DefaultRoom,
		MaxOpPoints: cfg.MaxOpPoints,
	})

	// Create router
	router := api.NewRouter(logger, cfg, registry, coord)

	// Create server
	// No ReadTimeout: websocket connections are long-lived and a server
	// read deadline would sever them.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("default_room", cfg.DefaultRoom).
			Msg("starting canvas server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
