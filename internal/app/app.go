package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/auth"
	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/maintenance"
	"github.com/vovakirdan/chatrelay/internal/mirror"
	"github.com/vovakirdan/chatrelay/internal/store"
	transporthttp "github.com/vovakirdan/chatrelay/internal/transport/http"
)

const startupTimeout = 10 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	mirror          *mirror.Publisher
	gateway         *core.Gateway
	scheduler       *maintenance.Scheduler
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	var publisher core.MessagePublisher
	if cfg.NATS.URL != "" {
		pub, err := mirror.Connect(ctx, mirror.Config{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init mirror: %w", err)
		}
		a.mirror = pub
		publisher = pub
		logger.Info().Str("url", cfg.NATS.URL).Str("stream", cfg.NATS.Stream).Msg("message mirror enabled")
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})

	registry := core.NewRegistry()
	router := core.NewRouter(registry, logger)
	gateway := core.NewGateway(st, publisher, logger)
	dispatcher := core.NewDispatcher(registry, router, gateway, st, logger)
	a.gateway = gateway

	a.scheduler = maintenance.New(logger)
	if cp, ok := st.(store.Checkpointer); ok {
		if err := a.scheduler.AddCheckpoint(cfg.Maintenance.CheckpointSchedule, cp); err != nil {
			a.cleanup()
			return nil, err
		}
	}
	if err := a.scheduler.AddPresenceReport(cfg.Maintenance.PresenceReportSchedule, registry); err != nil {
		a.cleanup()
		return nil, err
	}

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Auth:       authService,
		Users:      st,
	}, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	a.scheduler.Start()

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
		stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		a.scheduler.Stop(stopCtx)
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
		a.scheduler.Stop(shutdownCtx)
		if err := a.gateway.WaitMirrors(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("message mirror still publishing at shutdown")
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the mirror, database and other resources.
func (a *App) cleanup() {
	if a.mirror != nil {
		a.mirror.Close()
		a.mirror = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
		a.store = nil
	}
}
