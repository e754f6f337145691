package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vigil/internal/catalog"
)

// Handler holds API route handlers.
type Handler struct {
	svc *catalog.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{svc: svc}
}

// ListIncidents handles GET /api/incidents.
//
//	@Summary		List incidents, most recent first
//	@Tags			incidents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			state	query		string	false	"Filter by state"
//	@Param			year	query		int		false	"Filter by year"
//	@Success		200		{object}	IncidentListResponse
//	@Security		BearerAuth
//	@Router			/incidents [get]
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	year, _ := strconv.Atoi(q.Get("year"))

	items, total, err := h.svc.ListIncidents(r.Context(), catalog.ListParams{
		State:  q.Get("state"),
		Year:   year,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list incidents", err)
		return
	}
	writeJSON(w, http.StatusOK, IncidentListResponse{Incidents: nonNil(items), Total: total})
}

// GetIncident handles GET /api/incidents/{id}.
//
//	@Summary		Get a single incident by identifier
//	@Tags			incidents
//	@Produce		json
//	@Param			id	path		string	true	"Incident ID"
//	@Success		200	{object}	IncidentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/incidents/{id} [get]
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inc, err := h.svc.GetIncident(r.Context(), id)
	if err != nil {
		writeError(w, "get incident", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across incidents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeMessage(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// Summary handles GET /api/summary.
//
//	@Summary		Statistics of the master set
//	@Tags			summary
//	@Produce		json
//	@Success		200	{object}	Summary
//	@Security		BearerAuth
//	@Router			/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		Recent update runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: nonNil(runs)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
