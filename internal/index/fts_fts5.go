//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS incidents_fts USING fts5(
			position UNINDEXED,
			id,
			date,
			city,
			state,
			address,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM incidents_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsert(tx *sql.Tx, r Incident) error {
	_, err := tx.Exec(`INSERT INTO incidents_fts (position, id, date, city, state, address) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Position, r.ID, r.Date, r.City, r.State, r.Address)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT i.id, i.date, i.city, i.state,
		       snippet(incidents_fts, -1, '<b>', '</b>', '...', 16),
		       i.position
		FROM incidents_fts
		JOIN incidents i ON i.position = incidents_fts.position
		WHERE incidents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Date, &r.City, &r.State, &r.Snippet, &r.Position); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
