// Package reconcile isolates the snapshot records that are not yet stored.
package reconcile

import (
	"log/slog"

	"github.com/starford/vigil/internal/models"
)

// Lookup answers whether an identifier is already stored.
type Lookup interface {
	Contains(id string) bool
}

// Result is the outcome of one reconciliation.
type Result struct {
	// New holds the records to merge, in snapshot order.
	New []models.Record
	// Existing counts records whose identifier is already stored.
	Existing int
	// Duplicates counts repeated identifiers within the snapshot.
	Duplicates int
	// MissingID counts records without an identifier.
	MissingID int
}

// Reconcile returns the ordered sub-sequence of snapshot whose identifier
// (column idCol, whitespace-trimmed) is absent from known. Records without an
// identifier are rejected and only the first occurrence of a repeated
// identifier is kept. The returned records carry the trimmed identifier.
func Reconcile(snapshot []models.Record, known Lookup, idCol string, logger *slog.Logger) Result {
	var res Result
	seen := make(map[string]struct{}, len(snapshot))

	for pos, rec := range snapshot {
		id := rec.Get(idCol)
		switch {
		case id == "":
			res.MissingID++
			logger.Warn("reconcile: record without identifier skipped", slog.Int("position", pos))
			continue
		case known.Contains(id):
			res.Existing++
			continue
		}
		if _, dup := seen[id]; dup {
			res.Duplicates++
			logger.Debug("reconcile: duplicate in snapshot dropped", slog.String("id", id), slog.Int("position", pos))
			continue
		}
		seen[id] = struct{}{}

		out := rec.Clone()
		out[idCol] = id
		res.New = append(res.New, out)
	}

	logger.Info("reconcile: done",
		slog.Int("snapshot", len(snapshot)),
		slog.Int("new", len(res.New)),
		slog.Int("existing", res.Existing),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("missing_id", res.MissingID))
	return res
}
