// Package pipeline runs one reconciliation: fetch, reconcile, enrich, merge.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vigil/internal/checksum"
	"github.com/starford/vigil/internal/enrich"
	"github.com/starford/vigil/internal/fetch"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/reconcile"
)

// Report is the aggregate outcome of one run.
type Report struct {
	RunID      string
	Year       int
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched          int
	Added            int
	Total            int
	Existing         int
	SnapshotDups     int
	MissingID        int
	MasterDuplicates int
	Dropped          []string
	Enrichment       enrich.Stats

	// Set is the master set after the run; nil when the run failed before
	// the store was loaded.
	Set *master.Set
	Err error
}

// Succeeded reports whether the run completed.
func (r *Report) Succeeded() bool { return r.Err == nil }

// Orchestrator sequences one run against a master store.
type Orchestrator struct {
	store    *master.Store
	fetcher  fetch.Fetcher
	enricher *enrich.Enricher
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an Orchestrator.
func New(store *master.Store, fetcher fetch.Fetcher, enricher *enrich.Enricher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{store: store, fetcher: fetcher, enricher: enricher, logger: logger, now: time.Now}
}

// Run executes one run for year. The returned report is never nil; its Err
// matches the returned error.
//
// The store is locked and loaded before anything is fetched, so a missing
// or unreadable store fails the run without side effects. Fetch artifacts
// are disposed of on every exit path.
func (o *Orchestrator) Run(ctx context.Context, year int) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), Year: year, StartedAt: o.now().UTC()}
	logger := o.logger.With(slog.String("run_id", rep.RunID), slog.Int("year", year))
	logger.Info("run: starting data update")

	err := o.run(ctx, rep, logger)
	rep.FinishedAt = o.now().UTC()
	rep.Err = err
	if err != nil {
		logger.Error("run: failed", slog.String("error", err.Error()))
		return rep, err
	}
	logger.Info("run: update completed",
		slog.Int("added", rep.Added),
		slog.Int("total", rep.Total),
		slog.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

func (o *Orchestrator) run(ctx context.Context, rep *Report, logger *slog.Logger) error {
	// No lock file is created beside a store that does not exist.
	if _, err := o.store.Stat(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	unlock, err := o.store.Lock()
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("run: release lock", slog.String("error", err.Error()))
		}
	}()

	set, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	rep.Set = set
	rep.Total = set.Len()

	ix := set.Index()
	flagIntegrity(ix, logger)
	rep.MasterDuplicates = len(ix.Duplicates())
	logger.Info("run: master loaded",
		slog.String("path", o.store.Path()),
		slog.Int("records", set.Len()),
		slog.Int("ids", ix.Len()),
		slog.String("checksum", checksum.Short(set.Checksum)))

	snap, err := o.fetcher.Fetch(ctx, rep.Year)
	if err != nil {
		return fmt.Errorf("pipeline: fetch: %w", err)
	}
	defer func() {
		if err := snap.Cleanup(); err != nil {
			logger.Warn("run: cleanup failed", slog.String("path", snap.Path), slog.String("error", err.Error()))
		} else {
			logger.Info("run: cleanup completed")
		}
	}()
	rep.Fetched = len(snap.Records)
	logger.Info("run: snapshot fetched", slog.String("path", snap.Path), slog.Int("records", rep.Fetched))

	cols := o.store.Columns()
	rec := reconcile.Reconcile(snap.Records, ix, cols.ID, logger)
	rep.Existing = rec.Existing
	rep.SnapshotDups = rec.Duplicates
	rep.MissingID = rec.MissingID

	batch, stats := o.enricher.Enrich(ctx, rec.New)
	rep.Enrichment = stats
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: interrupted before merge: %w", err)
	}

	if len(batch) == 0 {
		logger.Info("run: no new incidents, master file is up to date")
	}
	res, err := o.store.Merge(set, enrich.Records(batch, cols))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if len(res.Dropped) > 0 {
		logger.Warn("run: snapshot columns not in master schema were dropped", slog.Any("columns", res.Dropped))
	}
	rep.Added = res.Added
	rep.Total = res.Total
	rep.Dropped = res.Dropped
	rep.Set = res.Set
	return nil
}

// flagIntegrity reports rows that already violate the identifier
// assumptions inside the master set.
func flagIntegrity(ix *master.Index, logger *slog.Logger) {
	for _, d := range ix.Duplicates() {
		logger.Warn("run: duplicate identifier in master set",
			slog.String("id", d.ID),
			slog.Any("rows", d.Rows))
	}
	if n := len(ix.Blank()); n > 0 {
		logger.Warn("run: master rows without identifier", slog.Int("count", n), slog.Any("rows", ix.Blank()))
	}
}
