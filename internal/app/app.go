package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/auth"
	"github.com/siro844/excalidraw/internal/config"
	"github.com/siro844/excalidraw/internal/relay"
	"github.com/siro844/excalidraw/internal/store"
	"github.com/siro844/excalidraw/internal/store/sqlite"
	transporthttp "github.com/siro844/excalidraw/internal/transport/http"
)

// App wires together the relay, persistence, and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// chatRecorder persists relayed chat messages so they show up in the REST
// history endpoint. Relay delivery never depends on it.
type chatRecorder struct {
	store store.ChatStore
}

func (r *chatRecorder) RecordChat(ctx context.Context, roomID int64, userID, text string) error {
	return r.store.SaveChat(ctx, &store.Chat{
		RoomID:  roomID,
		UserID:  userID,
		Message: text,
	})
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}

	authService := auth.NewService(st, jwtConfig)

	registry := relay.NewRegistry()
	rooms := relay.NewRooms()
	router := relay.NewRouter(registry, rooms, &chatRecorder{store: st}, logger)

	server := transporthttp.NewServer(router, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
