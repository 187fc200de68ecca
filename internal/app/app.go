// Package app assembles the relay: storage, auth, the hub, the optional
// cross-node bridge and LAN advertisement, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/auth"
	"github.com/sketchwire/sketchwire-server/internal/bridge"
	"github.com/sketchwire/sketchwire-server/internal/config"
	"github.com/sketchwire/sketchwire-server/internal/core"
	"github.com/sketchwire/sketchwire-server/internal/discovery"
	"github.com/sketchwire/sketchwire-server/internal/store"
	"github.com/sketchwire/sketchwire-server/internal/store/postgres"
	"github.com/sketchwire/sketchwire-server/internal/store/sqlite"
	httptransport "github.com/sketchwire/sketchwire-server/internal/transport/http"
)

// App holds the assembled relay and its lifecycle dependencies.
type App struct {
	cfg    config.Config
	log    *zerolog.Logger
	store  store.Store
	hub    *core.Hub
	bridge *bridge.Bridge
	server *stdhttp.Server
}

// New builds the application from config. The store backend is selected by
// cfg.DatabaseDriver; the Redis bridge and mDNS advertisement are optional.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, logger)

	app := &App{
		cfg:   cfg,
		log:   logger,
		store: st,
		hub:   hub,
	}

	if cfg.RedisAddr != "" {
		b, err := bridge.New(ctx, cfg.RedisAddr, hub, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("connect bridge: %w", err)
		}
		hub.SetPublisher(b)
		app.bridge = b
	}

	app.server = httptransport.NewServer(hub, authService, st, cfg, logger)
	return app, nil
}

// Run starts the relay and blocks until the context is canceled, then
// shuts down within cfg.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(runCtx)

	if a.bridge != nil {
		go func() {
			if err := a.bridge.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error().Err(err).Msg("bridge stopped")
			}
		}()
	}

	var advertiser *discovery.Advertiser
	if a.cfg.MDNSEnable {
		adv, err := discovery.Advertise("sketchwire", a.cfg.Addr, a.log)
		if err != nil {
			a.log.Warn().Err(err).Msg("mdns advertisement unavailable")
		} else {
			advertiser = adv
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer shutdownCancel()

	err := a.server.Shutdown(shutdownCtx)

	if advertiser != nil {
		advertiser.Shutdown()
	}
	if a.bridge != nil {
		if cerr := a.bridge.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("failed to close bridge")
		}
	}
	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn().Err(cerr).Msg("failed to close store")
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return sqlite.New(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}
