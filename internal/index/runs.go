package index

import (
	"fmt"
	"time"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRow is one recorded update run.
type RunRow struct {
	ID         string
	Year       int
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Fetched    int
	Added      int
	Total      int
	Error      string
}

// RecordRun stores r, replacing an earlier row with the same ID.
func (db *DB) RecordRun(r RunRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, year, started_at, finished_at, status, fetched, added, total, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			year        = excluded.year,
			started_at  = excluded.started_at,
			finished_at = excluded.finished_at,
			status      = excluded.status,
			fetched     = excluded.fetched,
			added       = excluded.added,
			total       = excluded.total,
			error       = excluded.error
	`, r.ID, r.Year, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Status, r.Fetched, r.Added, r.Total, r.Error)
	if err != nil {
		return fmt.Errorf("index: record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, year, started_at, finished_at, status, fetched, added, total, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Year, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Fetched, &r.Added, &r.Total, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
