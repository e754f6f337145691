// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only Vigil tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/catalog"
	"github.com/starford/vigil/internal/summary"
)

// SchemaURI names the resource describing the master file columns.
const SchemaURI = "vigil://schema"

// Server wraps the MCP server with Vigil tools.
type Server struct {
	mcp *server.MCPServer
	svc *catalog.Service
}

// New creates a new MCP server with all Vigil tools registered.
func New(svc *catalog.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Vigil",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_incidents",
		mcp.WithDescription("Full-text search over incident identifiers, dates, cities, states and addresses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchIncidents)

	s.mcp.AddTool(mcp.NewTool("get_incident",
		mcp.WithDescription("Read every stored field of one incident."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Incident identifier")),
	), s.getIncident)

	s.mcp.AddTool(mcp.NewTool("list_recent",
		mcp.WithDescription("List the most recent incidents, newest first."),
		mcp.WithNumber("limit", mcp.Description("Number of incidents (default 10)")),
		mcp.WithString("state", mcp.Description("Optional state filter")),
	), s.listRecent)

	s.mcp.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Statistics of the stored data set as a Markdown document."),
	), s.getSummary)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("Recent update runs with their outcome."),
		mcp.WithNumber("limit", mcp.Description("Number of runs (default 10)")),
	), s.listRuns)

	s.mcp.AddResource(
		mcp.NewResource(SchemaURI, "Master file schema",
			mcp.WithResourceDescription("Columns of the master file and the role of each interpreted column."),
			mcp.WithMIMEType("application/json"),
		),
		s.readSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchIncidents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no incidents found"), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getIncident(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inc, err := s.svc.GetIncident(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return toolError(err), nil
	}
	return jsonResult(inc), nil
}

func (s *Server) listRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListIncidents(ctx, catalog.ListParams{
		State: req.GetString("state", ""),
		Limit: req.GetInt("limit", 10),
	})
	if err != nil {
		return toolError(err), nil
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s\t%s\t%s, %s\t%d killed, %d injured\n", it.ID, it.Date, it.City, it.State, it.Killed, it.Injured)
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no incidents stored"), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.svc.Summary(ctx)
	if err != nil {
		return toolError(err), nil
	}
	var b strings.Builder
	if err := summary.Render(&b, *sum); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.ListRuns(ctx, req.GetInt("limit", 10))
	if err != nil {
		return toolError(err), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	return jsonResult(runs), nil
}

func (s *Server) readSchemaResource(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info, err := s.svc.Schema(ctx)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SchemaURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
