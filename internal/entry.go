// Package internal wires the Vigil components into the operations exposed by
// the command line.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/vigil/internal/catalog"
	"github.com/starford/vigil/internal/enrich"
	"github.com/starford/vigil/internal/fetch"
	"github.com/starford/vigil/internal/geocode"
	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/logging"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/pipeline"
	"github.com/starford/vigil/internal/summary"
)

// setup applies opts and fills in the logger. The returned function
// releases the run log.
func setup(opts []Option) (*application, func(), error) {
	app := &application{now: time.Now, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if app.logger != nil {
		return app, func() {}, nil
	}

	cfg := app.config
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		Dir:    cfg.App.LogDir,
	})
	if err != nil {
		return nil, nil, err
	}
	app.logger = logger
	slog.SetDefault(logger)
	return app, func() { _ = closeLog() }, nil
}

// logFailure writes *errp to the run log. Deferred after the log closer so it
// runs while the file is still open.
func (a *application) logFailure(op string, errp *error) {
	if *errp != nil {
		a.logger.Error(op+": failed", slog.String("error", (*errp).Error()))
	}
}

func (a *application) openStore() (*master.Store, error) {
	return master.Open(a.config.Store.Path, a.config.Store.Columns)
}

func (a *application) openIndex() (*index.DB, error) {
	if !a.config.Index.Enabled() {
		return nil, fmt.Errorf("index.path is not configured")
	}
	if dir := filepath.Dir(a.config.Index.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	return index.Open(a.config.Index.Path)
}

func (a *application) buildFetcher() (fetch.Fetcher, error) {
	if a.fetcher != nil {
		return a.fetcher, nil
	}
	return fetch.NewBrowserExporter(a.config.Fetch.Options(), a.logger)
}

// buildGeocoder returns nil when enrichment is disabled or the client cannot
// be built; enrichment then degrades to no coordinates.
func (a *application) buildGeocoder() geocode.Geocoder {
	if a.geocoder != nil {
		return a.geocoder
	}
	if !a.config.Geocode.Enabled {
		return nil
	}
	g, err := geocode.NewArcGIS(a.config.Geocode.ArcGISOptions())
	if err != nil {
		a.logger.Warn("geocoder unavailable", slog.String("error", err.Error()))
		return nil
	}
	return g
}

// Update performs one reconciliation run for year and then, best effort,
// records it in the run history, refreshes the mirror and rewrites the
// summary document.
func Update(ctx context.Context, year int, opts ...Option) (*pipeline.Report, error) {
	app, done, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer done()
	cfg := app.config

	store, err := app.openStore()
	if err != nil {
		app.logger.Error("update: open store", slog.String("error", err.Error()))
		return nil, err
	}
	fetcher, err := app.buildFetcher()
	if err != nil {
		app.logger.Error("update: build fetcher", slog.String("error", err.Error()))
		return nil, err
	}
	enricher := enrich.New(app.buildGeocoder(), cfg.Store.Columns, cfg.Geocode.Pause, app.logger)

	orch := pipeline.New(store, fetcher, enricher, app.logger)
	rep, runErr := orch.Run(ctx, year)

	if cfg.Index.Enabled() {
		app.recordRun(store, rep)
	}
	if runErr == nil && cfg.Store.SummaryPath != "" {
		sum := summary.Build(rep.Set, cfg.Store.Columns, app.now())
		if err := summary.WriteFile(cfg.Store.SummaryPath, sum); err != nil {
			app.logger.Warn("update: summary not written", slog.String("error", err.Error()))
		} else {
			app.logger.Info("update: summary written", slog.String("path", cfg.Store.SummaryPath))
		}
	}
	return rep, runErr
}

// recordRun stores rep in the run history and mirrors the merged set.
// Failures are logged, never returned.
func (a *application) recordRun(store *master.Store, rep *pipeline.Report) {
	db, err := a.openIndex()
	if err != nil {
		a.logger.Warn("update: index unavailable", slog.String("error", err.Error()))
		return
	}
	defer db.Close()

	if err := db.RecordRun(RunRow(rep)); err != nil {
		a.logger.Warn("update: run not recorded", slog.String("error", err.Error()))
	}
	if rep.Succeeded() && rep.Set != nil {
		if _, err := index.SyncSet(db, rep.Set, store, a.logger); err != nil {
			a.logger.Warn("update: mirror not refreshed", slog.String("error", err.Error()))
		}
	}
}

// RunRow converts a run report to its history row.
func RunRow(rep *pipeline.Report) index.RunRow {
	row := index.RunRow{
		ID:         rep.RunID,
		Year:       rep.Year,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Status:     index.RunSucceeded,
		Fetched:    rep.Fetched,
		Added:      rep.Added,
		Total:      rep.Total,
	}
	if rep.Err != nil {
		row.Status = index.RunFailed
		row.Error = rep.Err.Error()
	}
	return row
}

// WriteSummary regenerates the summary document from the master file.
func WriteSummary(ctx context.Context, opts ...Option) (_ string, err error) {
	app, done, err := setup(opts)
	if err != nil {
		return "", err
	}
	defer done()
	defer app.logFailure("summary", &err)

	path := app.config.Store.SummaryPath
	if path == "" {
		return "", errors.New("store.summary_path is not configured")
	}
	store, err := app.openStore()
	if err != nil {
		return "", err
	}
	set, err := store.Load()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := summary.WriteFile(path, summary.Build(set, app.config.Store.Columns, app.now())); err != nil {
		return "", err
	}
	app.logger.Info("summary written", slog.String("path", path), slog.Int("records", set.Len()))
	return path, nil
}

// Export runs the browser export on its own and returns the saved file.
func Export(ctx context.Context, year int, opts ...Option) (_ string, err error) {
	app, done, err := setup(opts)
	if err != nil {
		return "", err
	}
	defer done()
	defer app.logFailure("export", &err)

	exp, err := fetch.NewBrowserExporter(app.config.Fetch.Options(), app.logger)
	if err != nil {
		return "", err
	}
	return exp.Export(ctx, year)
}

// Recent returns the n most recent incidents, syncing the mirror first.
func Recent(ctx context.Context, n int, opts ...Option) (_ []catalog.IncidentListItem, err error) {
	app, done, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer done()
	defer app.logFailure("recent", &err)

	store, err := app.openStore()
	if err != nil {
		return nil, err
	}
	db, err := app.openIndex()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if _, err := index.Sync(db, store, app.logger); err != nil {
		return nil, err
	}
	return catalog.NewService(db, store).Recent(ctx, n)
}
