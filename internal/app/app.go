package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
	"github.com/etensports/chat-server/internal/retention"
	"github.com/etensports/chat-server/internal/store"
	"github.com/etensports/chat-server/internal/store/memory"
	"github.com/etensports/chat-server/internal/store/pebble"
	"github.com/etensports/chat-server/internal/store/sqlite"
	transporthttp "github.com/etensports/chat-server/internal/transport/http"
)

// App wires together store, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *realtime.Hub
	journal         store.Journal
	sweeper         *retention.Sweeper
	retentionCron   string
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	journal, err := openJournal(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("journal opened")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	hub := realtime.NewHub(journal, realtime.Options{
		Logger:   logger,
		Metrics:  m,
		LeaseTTL: cfg.PresenceLeaseTTL,
	})
	convs := core.NewConversations(hub, core.ConversationOptions{
		MaxTextLength: cfg.MaxTextLength,
		Logger:        logger,
		Metrics:       m,
	})

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.SessionTTL,
	}
	authService := auth.NewService(auth.Config{
		JWT:               jwtConfig,
		IdentitySecret:    []byte(cfg.IdentitySecret),
		IdentityIssuer:    cfg.IdentityIssuer,
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
	}, logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:           hub,
		Conversations: convs,
		Auth:          authService,
		Metrics:       m,
	}, cfg, logger)

	a := &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		journal:         journal,
		log:             logger,
	}
	if cfg.Retention.Enabled {
		a.sweeper = retention.NewSweeper(convs, cfg.Retention.MaxAge, nil, logger)
		a.retentionCron = cfg.Retention.Cron
	}
	return a, nil
}

func openJournal(cfg config.StorageConfig) (store.Journal, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageSQLite:
		return sqlite.New(cfg.Path)
	case config.StoragePebble:
		return pebble.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	// The hub outlives ctx so that it can fire disconnect hooks after the
	// HTTP server has drained.
	hubCtx, stopHub := context.WithCancel(context.Background())
	go a.hub.Run(hubCtx)
	defer func() {
		stopHub()
		<-a.hub.Done()
		a.cleanup()
	}()

	if err := a.hub.Load(ctx); err != nil {
		return fmt.Errorf("load realtime tree: %w", err)
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx, a.retentionCron); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes the journal.
func (a *App) cleanup() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close journal")
		} else {
			a.log.Info().Msg("journal closed")
		}
	}
}
