// Package enrich adds derived coordinates to new incidents. Enrichment is
// best effort: a failed lookup never drops a record or fails a run.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/vigil/internal/geocode"
	"github.com/starford/vigil/internal/models"
)

// Status classifies the enrichment of one record.
type Status string

const (
	StatusResolved    Status = "resolved"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusUnavailable Status = "unavailable"
)

// Outcome is the enrichment result of one record. Point is only meaningful
// when Status is StatusResolved.
type Outcome struct {
	Status Status
	Point  geocode.Point
	Reason string
}

// Enriched pairs a record with its enrichment outcome. Record is the
// untouched input; Merged returns the version to store.
type Enriched struct {
	Record  models.Record
	Outcome Outcome
}

// Stats counts outcomes of a batch.
type Stats struct {
	Resolved    int
	Failed      int
	Skipped     int
	Unavailable int
}

func (s *Stats) add(st Status) {
	switch st {
	case StatusResolved:
		s.Resolved++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusUnavailable:
		s.Unavailable++
	}
}

// Enricher geocodes records one at a time with a pause between lookups.
type Enricher struct {
	geo    geocode.Geocoder
	cols   models.Columns
	pause  time.Duration
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// New returns an Enricher. A nil geo makes every record StatusUnavailable.
func New(geo geocode.Geocoder, cols models.Columns, pause time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{geo: geo, cols: cols, pause: pause, logger: logger, sleep: geocode.Sleep}
}

// Enrich resolves every record in order. It returns one Enriched per input
// record, in input order. Cancelling ctx marks the remaining records failed
// and is reported through ctx.Err by the caller.
func (e *Enricher) Enrich(ctx context.Context, records []models.Record) ([]Enriched, Stats) {
	var stats Stats
	out := make([]Enriched, 0, len(records))
	if len(records) == 0 {
		return out, stats
	}

	if e.geo == nil {
		e.logger.Warn("enrich: geocoder unavailable, continuing without coordinates", slog.Int("records", len(records)))
		for _, rec := range records {
			out = append(out, Enriched{Record: rec, Outcome: Outcome{Status: StatusUnavailable, Reason: "geocoder unavailable"}})
			stats.add(StatusUnavailable)
		}
		return out, stats
	}

	e.logger.Info("enrich: geocoding new incidents", slog.Int("records", len(records)))
	called := false
	for _, rec := range records {
		out = append(out, e.finish(rec, e.resolve(ctx, rec, &called), &stats))
	}

	e.logger.Info("enrich: done",
		slog.Int("resolved", stats.Resolved),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped))
	return out, stats
}

func (e *Enricher) finish(rec models.Record, oc Outcome, stats *Stats) Enriched {
	stats.add(oc.Status)
	if oc.Status == StatusFailed || oc.Status == StatusSkipped {
		e.logger.Warn("enrich: no coordinates",
			slog.String("id", rec.Get(e.cols.ID)),
			slog.String("status", string(oc.Status)),
			slog.String("reason", oc.Reason))
	}
	return Enriched{Record: rec, Outcome: oc}
}

// resolve geocodes one record, pausing first when a lookup already went out.
func (e *Enricher) resolve(ctx context.Context, rec models.Record, called *bool) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	address, ok := e.address(rec)
	if !ok {
		return Outcome{Status: StatusSkipped, Reason: "missing city/state"}
	}
	if *called {
		if err := e.sleep(ctx, e.pause); err != nil {
			return Outcome{Status: StatusFailed, Reason: err.Error()}
		}
	}
	*called = true
	return e.lookup(ctx, address)
}

func (e *Enricher) lookup(ctx context.Context, address string) Outcome {
	pt, err := e.geo.Geocode(ctx, address)
	switch {
	case errors.Is(err, geocode.ErrNoMatch):
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("could not geocode %s", address)}
	case err != nil:
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	return Outcome{Status: StatusResolved, Point: pt}
}

func (e *Enricher) address(rec models.Record) (string, bool) {
	city, state := rec.Get(e.cols.City), rec.Get(e.cols.State)
	if city == "" || state == "" {
		return "", false
	}
	return fmt.Sprintf("%s, %s, USA", city, state), true
}

// Merged returns a copy of the record with its coordinate columns set:
// filled when resolved, empty otherwise.
func (x Enriched) Merged(cols models.Columns) models.Record {
	out := x.Record.Clone()
	out[cols.Latitude] = ""
	out[cols.Longitude] = ""
	if x.Outcome.Status == StatusResolved {
		out[cols.Latitude] = x.Outcome.Point.LatString()
		out[cols.Longitude] = x.Outcome.Point.LonString()
	}
	return out
}

// Records returns the merged form of every entry, in order.
func Records(batch []Enriched, cols models.Columns) []models.Record {
	out := make([]models.Record, len(batch))
	for i, x := range batch {
		out[i] = x.Merged(cols)
	}
	return out
}
