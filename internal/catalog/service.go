// Package catalog is the read-only query service over the incident mirror,
// shared by the HTTP API, the MCP server and the CLI.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/summary"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// IncidentDetail is the full representation of an incident.
type IncidentDetail struct {
	ID        string            `json:"id"`
	Date      string            `json:"date"`
	Year      int               `json:"year,omitempty"`
	City      string            `json:"city"`
	State     string            `json:"state"`
	Address   string            `json:"address,omitempty"`
	Killed    int               `json:"killed"`
	Injured   int               `json:"injured"`
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	Position  int               `json:"position"`
	Fields    map[string]string `json:"fields"`
}

// IncidentListItem is a lightweight item in a list response.
type IncidentListItem struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	City    string `json:"city"`
	State   string `json:"state"`
	Killed  int    `json:"killed"`
	Injured int    `json:"injured"`
}

// SearchHit is one search result.
type SearchHit struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	City    string `json:"city"`
	State   string `json:"state"`
	Snippet string `json:"snippet"`
}

// Run is one entry of the run history.
type Run struct {
	ID         string    `json:"id"`
	Year       int       `json:"year"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`
	Added      int       `json:"added"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
}

// ListParams narrows ListIncidents.
type ListParams struct {
	State  string
	Year   int
	Limit  int
	Offset int
}

// SchemaInfo describes the columns of the master file.
type SchemaInfo struct {
	Path    string         `json:"path"`
	Columns []string       `json:"columns"`
	Roles   models.Columns `json:"roles"`
}

// Service answers queries from the index; summaries and the schema come
// from the master file itself.
type Service struct {
	db    index.IncidentIndex
	store *master.Store
	now   func() time.Time
}

// NewService creates a new catalog service.
func NewService(db index.IncidentIndex, store *master.Store) *Service {
	return &Service{db: db, store: store, now: time.Now}
}

// ListIncidents returns incidents most recent first and the total matching.
func (s *Service) ListIncidents(_ context.Context, p ListParams) ([]IncidentListItem, int, error) {
	if p.Offset < 0 {
		return nil, 0, fmt.Errorf("offset must not be negative: %w", apperr.ErrInvalidInput)
	}
	rows, total, err := s.db.ListIncidents(index.ListFilter{
		State:  strings.TrimSpace(p.State),
		Year:   p.Year,
		Limit:  clampLimit(p.Limit),
		Offset: p.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	items := make([]IncidentListItem, len(rows))
	for i, r := range rows {
		items[i] = IncidentListItem{
			ID:      r.ID,
			Date:    r.Date,
			City:    r.City,
			State:   r.State,
			Killed:  r.Killed,
			Injured: r.Injured,
		}
	}
	return items, total, nil
}

// Recent returns the n most recent incidents.
func (s *Service) Recent(ctx context.Context, n int) ([]IncidentListItem, error) {
	items, _, err := s.ListIncidents(ctx, ListParams{Limit: n})
	return items, err
}

// GetIncident returns one incident by identifier.
func (s *Service) GetIncident(_ context.Context, id string) (*IncidentDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("id is required: %w", apperr.ErrInvalidInput)
	}
	r, err := s.db.GetIncident(id)
	if err != nil {
		return nil, err
	}
	fields := r.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return &IncidentDetail{
		ID:        r.ID,
		Date:      r.Date,
		Year:      r.Year,
		City:      r.City,
		State:     r.State,
		Address:   r.Address,
		Killed:    r.Killed,
		Injured:   r.Injured,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Position:  r.Position,
		Fields:    fields,
	}, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", apperr.ErrInvalidInput)
	}
	rows, err := s.db.Search(query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, len(rows))
	for i, r := range rows {
		hits[i] = SearchHit{ID: r.ID, Date: r.Date, City: r.City, State: r.State, Snippet: r.Snippet}
	}
	return hits, nil
}

// Summary computes the statistics of the master file as it is now.
func (s *Service) Summary(_ context.Context) (*summary.Summary, error) {
	set, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	sum := summary.Build(set, s.store.Columns(), s.now())
	return &sum, nil
}

// Schema describes the master file columns.
func (s *Service) Schema(_ context.Context) (*SchemaInfo, error) {
	set, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return &SchemaInfo{Path: s.store.Path(), Columns: set.Schema, Roles: s.store.Columns()}, nil
}

// ListRuns returns the most recent runs first.
func (s *Service) ListRuns(_ context.Context, limit int) ([]Run, error) {
	rows, err := s.db.ListRuns(clampLimit(limit))
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = Run(r)
	}
	return runs, nil
}

// Ready reports whether the mirror has been populated at least once.
func (s *Service) Ready(_ context.Context) error {
	cs, err := s.db.StoredChecksum()
	if err != nil {
		return err
	}
	if cs == "" {
		return fmt.Errorf("index not synced: %w", apperr.ErrNotFound)
	}
	return nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}
