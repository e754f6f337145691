package api

import (
	"github.com/starford/vigil/internal/catalog"
	"github.com/starford/vigil/internal/summary"
)

// IncidentDetail is the full incident response type (aliased from the domain layer).
type IncidentDetail = catalog.IncidentDetail

// IncidentListItem is a lightweight item in a list response (aliased from the domain layer).
type IncidentListItem = catalog.IncidentListItem

// IncidentListResponse wraps paginated incident listings.
type IncidentListResponse struct {
	Incidents []IncidentListItem `json:"incidents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = catalog.SearchHit

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// Summary is the statistics response type.
type Summary = summary.Summary

// Run is one entry of the run history.
type Run = catalog.Run

// RunListResponse wraps the run history.
type RunListResponse struct {
	Runs []Run `json:"runs" validate:"required"`
}
