package master

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/checksum"
	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/storage"
	"github.com/starford/vigil/internal/tabular"
)

// Store is the CSV file holding the master record set.
type Store struct {
	fs   storage.Provider
	name string
	path string
	cols models.Columns
}

// Open returns the store at path. The file itself is only required to exist
// when it is loaded; a missing parent directory already yields
// apperr.ErrStoreMissing.
func Open(path string, cols models.Columns) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("master: resolve %s: %w", path, err)
	}
	fsys, err := storage.NewFS(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("master: %s: %w", path, apperr.ErrStoreMissing)
		}
		return nil, fmt.Errorf("master: %w", err)
	}
	return &Store{fs: fsys, name: filepath.Base(abs), path: abs, cols: cols}, nil
}

// Path returns the absolute path of the store file.
func (s *Store) Path() string { return s.path }

// Columns returns the interpreted column names.
func (s *Store) Columns() models.Columns { return s.cols }

// Stat reports size and modification time of the store file. A missing file
// yields apperr.ErrStoreMissing.
func (s *Store) Stat() (storage.FileInfo, error) {
	info, err := s.fs.Stat(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.FileInfo{}, fmt.Errorf("master: %s: %w", s.path, apperr.ErrStoreMissing)
		}
		return storage.FileInfo{}, fmt.Errorf("master: %w", err)
	}
	return info, nil
}

// Lock takes the single-writer lock of the store. The "<name>.lock" file
// next to the store stays after release.
func (s *Store) Lock() (func() error, error) {
	return s.fs.Lock(s.name)
}

// Load reads the full store. A missing file yields apperr.ErrStoreMissing and
// a file without a header apperr.ErrNoHeader. The configured coordinate
// columns are appended to the schema when the header lacks them.
func (s *Store) Load() (*Set, error) {
	data, err := s.fs.Read(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("master: %s: %w", s.path, apperr.ErrStoreMissing)
		}
		return nil, fmt.Errorf("master: load: %w", err)
	}
	doc, err := tabular.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("master: load %s: %w", s.path, err)
	}
	if !doc.Header.Has(s.cols.ID) {
		return nil, fmt.Errorf("master: load %s: no %q column: %w", s.path, s.cols.ID, apperr.ErrNoHeader)
	}

	schema := doc.Header.With(s.cols.Latitude, s.cols.Longitude)
	rows := make([][]string, len(doc.Rows))
	for i, row := range doc.Rows {
		rows[i] = pad(row, len(schema))
	}
	return &Set{
		Schema:   schema,
		Rows:     rows,
		Checksum: checksum.Sum(data),
		format:   doc.Format,
		idCol:    schema.Index(s.cols.ID),
	}, nil
}

// MergeResult summarises a merge.
type MergeResult struct {
	Added   int
	Total   int
	Dropped []string // snapshot columns not in the schema
	Set     *Set     // the store contents after the merge
}

// Merge writes fresh (in the given order) ahead of every record of set (in
// set order) and atomically replaces the store file. An empty fresh list
// writes nothing. Merge refuses with apperr.ErrDuplicateID when fresh
// repeats an identifier or reuses one already in set.
func (s *Store) Merge(set *Set, fresh []models.Record) (*MergeResult, error) {
	if len(fresh) == 0 {
		return &MergeResult{Total: set.Len(), Set: set}, nil
	}

	ix := set.Index()
	seen := make(map[string]struct{}, len(fresh))
	dropped := make(map[string]struct{})
	rows := make([][]string, 0, len(fresh)+set.Len())
	for _, rec := range fresh {
		id := rec.Get(s.cols.ID)
		if id == "" {
			return nil, fmt.Errorf("master: merge: record without %q: %w", s.cols.ID, apperr.ErrMissingID)
		}
		if _, dup := seen[id]; dup || ix.Contains(id) {
			return nil, fmt.Errorf("master: merge: %s: %w", id, apperr.ErrDuplicateID)
		}
		seen[id] = struct{}{}
		for _, col := range set.Schema.Extra(rec) {
			dropped[col] = struct{}{}
		}
		row := set.Schema.Row(rec)
		row[set.idCol] = id
		rows = append(rows, row)
	}
	rows = append(rows, set.Rows...)

	data, err := tabular.Encode(set.Schema, rows, set.format)
	if err != nil {
		return nil, fmt.Errorf("master: merge: %w", err)
	}
	if err := s.fs.Write(s.name, data); err != nil {
		return nil, fmt.Errorf("master: merge: %w", err)
	}

	next := &Set{
		Schema:   set.Schema,
		Rows:     rows,
		Checksum: checksum.Sum(data),
		format:   set.format,
		idCol:    set.idCol,
	}
	return &MergeResult{
		Added:   len(fresh),
		Total:   next.Len(),
		Dropped: sortedKeys(dropped),
		Set:     next,
	}, nil
}

func sortedKeys(m map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(m))
}

func pad(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}
