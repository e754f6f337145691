// Package master owns the persisted master record set: loading it, deriving
// the identifier index, and merging new incidents into it.
package master

import (
	"strings"

	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/tabular"
)

// Set is the in-memory, ordered master record set. Rows are padded to
// len(Schema) and kept exactly as read.
type Set struct {
	Schema   models.Schema
	Rows     [][]string
	Checksum string // digest of the bytes the set was loaded from

	format tabular.Format
	idCol  int
}

// Len returns the number of records.
func (s *Set) Len() int { return len(s.Rows) }

// ID returns the trimmed identifier of row i.
func (s *Set) ID(i int) string {
	if s.idCol < 0 || s.idCol >= len(s.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(s.Rows[i][s.idCol])
}

// Record returns row i keyed by column name.
func (s *Set) Record(i int) models.Record {
	return s.Schema.Record(s.Rows[i])
}

// Records returns every row keyed by column name, in store order.
func (s *Set) Records() []models.Record {
	out := make([]models.Record, len(s.Rows))
	for i := range s.Rows {
		out[i] = s.Record(i)
	}
	return out
}

// Duplicate reports an identifier that occurs more than once in the store.
// Rows are zero-based positions; the first entry is the occurrence the
// index keeps.
type Duplicate struct {
	ID   string
	Rows []int
}

// Index is the identifier set of a master Set.
type Index struct {
	ids        map[string]int
	duplicates map[string][]int
	order      []string
	blank      []int
}

// Index builds the identifier index. Repeated identifiers collapse to one
// entry and are reported by Duplicates; rows without an identifier are
// reported by Blank.
func (s *Set) Index() *Index {
	ix := &Index{
		ids:        make(map[string]int, len(s.Rows)),
		duplicates: make(map[string][]int),
	}
	for i := range s.Rows {
		id := s.ID(i)
		if id == "" {
			ix.blank = append(ix.blank, i)
			continue
		}
		first, seen := ix.ids[id]
		if !seen {
			ix.ids[id] = i
			continue
		}
		if _, ok := ix.duplicates[id]; !ok {
			ix.duplicates[id] = []int{first}
			ix.order = append(ix.order, id)
		}
		ix.duplicates[id] = append(ix.duplicates[id], i)
	}
	return ix
}

// Contains reports whether id is already stored.
func (ix *Index) Contains(id string) bool {
	_, ok := ix.ids[id]
	return ok
}

// Len returns the number of distinct identifiers.
func (ix *Index) Len() int { return len(ix.ids) }

// Duplicates returns identifiers stored more than once, in order of first
// repetition.
func (ix *Index) Duplicates() []Duplicate {
	out := make([]Duplicate, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, Duplicate{ID: id, Rows: ix.duplicates[id]})
	}
	return out
}

// Blank returns the positions of rows without an identifier.
func (ix *Index) Blank() []int { return ix.blank }
