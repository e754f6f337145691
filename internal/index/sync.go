package index

import (
	"fmt"
	"log/slog"

	"github.com/starford/vigil/internal/checksum"
	"github.com/starford/vigil/internal/master"
)

// SyncResult describes one Sync call.
type SyncResult struct {
	Changed  bool
	Records  int
	Checksum string
}

// Sync brings the mirror up to date with the master file. The mirror is
// rebuilt only when the file checksum differs from the one last mirrored.
func Sync(db *DB, store *master.Store, logger *slog.Logger) (SyncResult, error) {
	set, err := store.Load()
	if err != nil {
		return SyncResult{}, fmt.Errorf("index: sync: %w", err)
	}
	return SyncSet(db, set, store, logger)
}

// SyncSet mirrors an already loaded set.
func SyncSet(db *DB, set *master.Set, store *master.Store, logger *slog.Logger) (SyncResult, error) {
	res := SyncResult{Records: set.Len(), Checksum: set.Checksum}

	stored, err := db.StoredChecksum()
	if err != nil {
		return res, err
	}
	if stored == set.Checksum {
		logger.Debug("sync: mirror up to date", slog.String("checksum", checksum.Short(set.Checksum)))
		return res, nil
	}

	if err := db.ReplaceAll(FromSet(set, store.Columns()), set.Checksum); err != nil {
		return res, fmt.Errorf("index: sync: %w", err)
	}
	res.Changed = true
	logger.Info("sync: mirror rebuilt",
		slog.String("path", store.Path()),
		slog.Int("records", set.Len()),
		slog.String("checksum", checksum.Short(set.Checksum)))
	return res, nil
}
