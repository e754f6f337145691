package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vigil/internal/api"
	"github.com/starford/vigil/internal/catalog"
	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/mcpserver"
	"github.com/starford/vigil/internal/metrics"
	"github.com/starford/vigil/internal/sse"
)

// Serve runs the read-only HTTP API until ctx is cancelled or a shutdown
// signal arrives. The index mirror follows the master file while serving.
func Serve(ctx context.Context, opts ...Option) (err error) {
	app, done, err := setup(opts)
	if err != nil {
		return err
	}
	defer done()
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	defer func() {
		if err != nil {
			logger.Error("Application error", slog.String("error", err.Error()))
		}
	}()

	store, err := app.openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	db, err := app.openIndex()
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	runs := newRunObserver(db, m, logger)

	res, err := index.Sync(db, store, logger)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	observeSync(db, m, app.now(), err)
	runs.observe()
	logger.Info("initial sync", slog.Int("records", res.Records), slog.Bool("changed", res.Changed))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := catalog.NewService(db, store)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := svc.Ready(req.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", m.Handler())
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, db, store, logger, func(res index.SyncResult, err error) {
			observeSync(db, m, app.now(), err)
			if err != nil {
				broker.PublishSyncError(err)
				return
			}
			broker.PublishSync(sse.SyncData{Records: res.Records, Checksum: res.Checksum})
			runs.observe()
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP syncs the mirror once and serves the MCP tools over stdio.
// Logs never go to stdout, which carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) (err error) {
	app, done, err := setup(opts)
	if err != nil {
		return err
	}
	defer done()
	defer app.logFailure("mcp", &err)

	store, err := app.openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	db, err := app.openIndex()
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if _, err := index.Sync(db, store, app.logger); err != nil {
		app.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	srv := mcpserver.New(catalog.NewService(db, store), app.version)
	app.logger.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

func observeSync(db *index.DB, m *metrics.Metrics, at time.Time, err error) {
	if err != nil {
		m.ObserveSync(nil, at, err)
		return
	}
	byYear, cerr := db.CountByYear()
	if cerr != nil {
		m.ObserveSync(nil, at, cerr)
		return
	}
	m.ObserveSync(byYear, at, nil)
}

// runObserver counts history rows not seen before. Runs are recorded by
// separate update processes, so the server only learns about them after the
// mirror changes.
type runObserver struct {
	db     *index.DB
	m      *metrics.Metrics
	logger *slog.Logger
	seen   map[string]struct{}
}

func newRunObserver(db *index.DB, m *metrics.Metrics, logger *slog.Logger) *runObserver {
	return &runObserver{db: db, m: m, logger: logger, seen: make(map[string]struct{})}
}

func (o *runObserver) observe() {
	rows, err := o.db.ListRuns(100)
	if err != nil {
		o.logger.Warn("list runs", slog.String("error", err.Error()))
		return
	}
	for _, r := range rows {
		if _, ok := o.seen[r.ID]; ok {
			continue
		}
		o.seen[r.ID] = struct{}{}
		o.m.ObserveRun(r.Status)
	}
}
