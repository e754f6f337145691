package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/summary"
)

// Incident is one mirrored master row. Position is the zero-based row in the
// master file, so lower positions are more recent.
type Incident struct {
	Position  int
	ID        string
	Date      string
	Year      int
	City      string
	State     string
	Address   string
	Killed    int
	Injured   int
	Latitude  *float64
	Longitude *float64
	Fields    map[string]string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID       string
	Date     string
	City     string
	State    string
	Snippet  string
	Position int
}

// ListFilter narrows ListIncidents.
type ListFilter struct {
	State  string
	Year   int
	Limit  int
	Offset int
}

// FromSet converts every row of set to an Incident.
func FromSet(set *master.Set, cols models.Columns) []Incident {
	out := make([]Incident, 0, set.Len())
	for i := range set.Len() {
		rec := set.Record(i)
		year, _ := summary.Year(rec.Get(cols.Date))
		out = append(out, Incident{
			Position:  i,
			ID:        set.ID(i),
			Date:      rec.Get(cols.Date),
			Year:      year,
			City:      rec.Get(cols.City),
			State:     rec.Get(cols.State),
			Address:   rec.Get(cols.Address),
			Killed:    atoi(rec.Get(cols.Killed)),
			Injured:   atoi(rec.Get(cols.Injured)),
			Latitude:  parseCoord(rec.Get(cols.Latitude)),
			Longitude: parseCoord(rec.Get(cols.Longitude)),
			Fields:    rec,
		})
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ReplaceAll swaps the whole mirror for rows and records checksum as the
// digest of the master file it came from, in one transaction.
func (db *DB) ReplaceAll(rows []Incident, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM incidents`); err != nil {
		return fmt.Errorf("index: clear incidents: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO incidents (position, id, date, year, city, state, address, killed, injured, latitude, longitude, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare incident insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		fields, _ := json.Marshal(r.Fields)
		if _, err := stmt.Exec(r.Position, r.ID, r.Date, r.Year, r.City, r.State, r.Address,
			r.Killed, r.Injured, r.Latitude, r.Longitude, string(fields)); err != nil {
			return fmt.Errorf("index: insert incident %s: %w", r.ID, err)
		}
		if err := ftsInsert(tx, r); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES ('checksum', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksum); err != nil {
		return fmt.Errorf("index: store checksum: %w", err)
	}
	return tx.Commit()
}

// StoredChecksum returns the digest of the master file last mirrored, or
// an empty string before the first sync.
func (db *DB) StoredChecksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'checksum'`).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

const incidentColumns = `position, id, date, year, city, state, address, killed, injured, latitude, longitude, fields`

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(s scanner) (Incident, error) {
	var (
		r        Incident
		lat, lon sql.NullFloat64
		fields   string
	)
	if err := s.Scan(&r.Position, &r.ID, &r.Date, &r.Year, &r.City, &r.State, &r.Address,
		&r.Killed, &r.Injured, &lat, &lon, &fields); err != nil {
		return r, err
	}
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lon.Valid {
		r.Longitude = &lon.Float64
	}
	_ = json.Unmarshal([]byte(fields), &r.Fields)
	return r, nil
}

// ListIncidents returns incidents most recent first with the total count
// matching the filter.
func (db *DB) ListIncidents(f ListFilter) ([]Incident, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var (
		where []string
		args  []any
	)
	if f.State != "" {
		where = append(where, "state = ? COLLATE NOCASE")
		args = append(args, f.State)
	}
	if f.Year > 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM incidents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count incidents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+incidentColumns+` FROM incidents`+clause+
		` ORDER BY position LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		r, err := scanIncident(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// GetIncident returns the incident with id. When the master file repeats
// the identifier the most recent row wins.
func (db *DB) GetIncident(id string) (*Incident, error) {
	row := db.conn.QueryRow(`SELECT `+incidentColumns+` FROM incidents WHERE id = ? ORDER BY position LIMIT 1`, id)
	r, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: incident %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get incident: %w", err)
	}
	return &r, nil
}

// CountByYear returns the number of incidents per reporting year; "unknown"
// collects rows whose date could not be parsed.
func (db *DB) CountByYear() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT year, count(*) FROM incidents GROUP BY year`)
	if err != nil {
		return nil, fmt.Errorf("index: count by year: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var year, n int
		if err := rows.Scan(&year, &n); err != nil {
			return nil, err
		}
		key := "unknown"
		if year > 0 {
			key = strconv.Itoa(year)
		}
		out[key] += n
	}
	return out, rows.Err()
}
