package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/gate"
	"github.com/p-n-ai/pai-arena/internal/httpapi"
	"github.com/p-n-ai/pai-arena/internal/live"
	"github.com/p-n-ai/pai-arena/internal/platform/cache"
	"github.com/p-n-ai/pai-arena/internal/platform/config"
	"github.com/p-n-ai/pai-arena/internal/platform/database"
	"github.com/p-n-ai/pai-arena/internal/results"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		// Live sessions outlive the hijacked request; they are discarded
		// when the process shuts down.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the configured backends and builds the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := make(map[string]httpapi.HealthChecker)

	loader, err := competency.NewLoader(cfg.CompetencyPath)
	if err != nil {
		return nil, fmt.Errorf("loading competencies: %w", err)
	}

	var store results.Store = results.NewMemoryStore()
	var events results.EventLogger = results.NopEventLogger{}
	if cfg.Store == config.StorePostgres {
		db, err := database.New(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, err
			}
		}
		pg, err := results.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		store = pg
		events = results.NewPostgresEventLogger(db.Pool)
	}

	var certCache gate.Cache = gate.NewMemoryCache(cfg.Gate.CertificationTTL)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		checks["cache"] = c
		certCache = gate.NewRedisCache(c, cfg.Gate.CertificationTTL)
	}

	g := gate.New(certCache)
	certifyAll(ctx, g, loader.All())

	var certifier live.Certifier
	if cfg.Gate.Require {
		certifier = g
	}
	play := live.NewHandler(live.Config{
		Catalog:      loader,
		Store:        store,
		Events:       events,
		Registry:     live.NewRegistry(cfg.Live.MaxSessions),
		Gate:         certifier,
		WriteTimeout: cfg.Live.WriteTimeout,
	})

	a.handler = httpapi.NewMux(httpapi.Config{
		Catalog: loader,
		Gate:    g,
		Results: store,
		Play:    play,
		Checks:  checks,
	})
	slog.Info("app ready",
		"store", cfg.Store,
		"competencies", len(loader.All()),
		"shared_cache", cfg.Cache.URL != "",
		"gate_required", cfg.Gate.Require,
	)
	return a, nil
}

// certifyAll warms the certification cache so the first player of each
// competency does not pay for the battery.
func certifyAll(ctx context.Context, g *gate.Gate, defs []competency.Definition) {
	for _, def := range defs {
		cert, err := g.Certify(ctx, def)
		if err != nil {
			slog.Warn("certification failed", "competency_id", def.ID, "error", err)
			continue
		}
		if !cert.Allowed {
			slog.Warn("competency blocked by publishing gate", "competency_id", def.ID)
		}
	}
}
