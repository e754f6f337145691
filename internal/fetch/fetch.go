// Package fetch produces snapshots: the bounded window of recent incidents
// the upstream report exposes for one year.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/tabular"
)

var (
	// ErrTimeout means the export did not finish in time.
	ErrTimeout = errors.New("fetch: export timed out")
	// ErrElementNotFound means an expected page control was missing.
	ErrElementNotFound = errors.New("fetch: element not found")
	// ErrDownloadNotFound means no exported file appeared on disk in time.
	ErrDownloadNotFound = errors.New("fetch: download not found")
	// ErrTargetExists means the output file exists and overwrite is off.
	ErrTargetExists = errors.New("fetch: target file already exists")
)

// Fetcher produces the snapshot for one reporting year.
type Fetcher interface {
	Fetch(ctx context.Context, year int) (*Result, error)
}

// Result is one fetched snapshot. Cleanup disposes of the artifacts it
// owns and is safe to call more than once.
type Result struct {
	Path    string
	Year    int
	Schema  models.Schema
	Records []models.Record

	cleanup func() error
	done    bool
}

// NewResult builds a Result whose Cleanup calls cleanup (which may be nil).
func NewResult(path string, year int, schema models.Schema, records []models.Record, cleanup func() error) *Result {
	return &Result{Path: path, Year: year, Schema: schema, Records: records, cleanup: cleanup}
}

// Cleanup removes the run-scoped artifacts behind r.
func (r *Result) Cleanup() error {
	if r == nil || r.done || r.cleanup == nil {
		return nil
	}
	r.done = true
	return r.cleanup()
}

// ReadSnapshot parses the CSV at path. A missing file or header is an error.
func ReadSnapshot(path string) (models.Schema, []models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: read snapshot: %w", err)
	}
	doc, err := tabular.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: parse snapshot %s: %w", path, err)
	}
	return doc.Header, doc.Records(), nil
}

// FileFetcher serves a snapshot that already exists on disk. The file is
// only removed by Cleanup when Owned is set.
type FileFetcher struct {
	Path  string
	Owned bool
}

// Fetch reads f.Path.
func (f FileFetcher) Fetch(_ context.Context, year int) (*Result, error) {
	schema, recs, err := ReadSnapshot(f.Path)
	if err != nil {
		return nil, err
	}
	res := &Result{Path: f.Path, Year: year, Schema: schema, Records: recs}
	if f.Owned {
		res.cleanup = func() error { return removeIfExists(f.Path) }
	}
	return res, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
