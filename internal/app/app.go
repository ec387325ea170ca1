// Package app wires the session service runtime: config, logging, HTTP routes, and the realtime gateway.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Prithvi164/LMSQMS-sub006/internal/db/migrate"
	"github.com/Prithvi164/LMSQMS-sub006/internal/identity"
	"github.com/Prithvi164/LMSQMS-sub006/internal/realtime"
	"github.com/Prithvi164/LMSQMS-sub006/internal/session"
	api "github.com/Prithvi164/LMSQMS-sub006/internal/session/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the session service runtime: it owns HTTP server wiring and the
// coordinator / hub / gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store session.Store
	coord *session.Coordinator

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws *realtime.WSGateway

	sessions *api.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		closeStore(store, dbPool)
		return nil, err
	}

	auth, err := newAuthenticator(cfg, log)
	if err != nil {
		closeStore(store, dbPool)
		return nil, err
	}

	hub := realtime.NewHub(log)
	coord := session.NewCoordinator(log, sessCfg, store, auth, hub)

	ws := realtime.NewWSGateway(log, hub, func(ctx context.Context, sessionID string) (session.Session, error) {
		return coord.Status(ctx, sessionID)
	})

	apiCfg := api.LoadConfigFromEnv()
	handler, err := api.NewHandler(log, apiCfg, sessCfg, coord)
	if err != nil {
		coord.Close()
		closeStore(store, dbPool)
		return nil, err
	}

	// Transfers left pending by a previous process must not dangle forever.
	if err := coord.ResumePendingTimers(context.Background()); err != nil {
		coord.Close()
		closeStore(store, dbPool)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		coord:     coord,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		sessions:  handler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.sessions)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Stop pending-approval timers before closing the store they resolve against.
	a.coord.Close()
	closeStore(a.store, a.dbPool)

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (session.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return session.NewInMemoryStore(), nil, false, nil
	}

	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
			return nil, nil, false, fmt.Errorf("migrate: %w", err)
		}
		log.Info("db.migrations.applied")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore.Close() is a no-op
	store, err := session.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	return store, pool, true, nil
}

func closeStore(store session.Store, pool *pgxpool.Pool) {
	if store != nil {
		_ = store.Close()
	}
	if pool != nil {
		pool.Close()
	}
}

// newAuthenticator builds the credential backend. The in-memory authenticator
// is seeded from LMS_DEV_USERS ("alice:secret,bob:hunter2"); a production
// deployment wires the platform's identity service here instead.
func newAuthenticator(cfg Config, log Logger) (session.Authenticator, error) {
	auth := identity.NewMemoryAuthenticator()

	if cfg.DevUsers == "" {
		return auth, nil
	}

	for _, pair := range strings.Split(cfg.DevUsers, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, password, ok := strings.Cut(pair, ":")
		if !ok || username == "" || password == "" {
			return nil, fmt.Errorf("%w: LMS_DEV_USERS entry %q must be username:password", session.ErrConfig, pair)
		}
		if _, err := auth.Register(username, password); err != nil {
			return nil, err
		}
	}

	log.Info("identity.dev_users.seeded")
	return auth, nil
}
