package main

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/vigil/internal/catalog"
)

var incidentHeader = table.Row{"ID", "Date", "Location", "Killed", "Injured"}

func renderIncidents(items []catalog.IncidentListItem) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(incidentHeader)

	for _, it := range items {
		tw.AppendRow(table.Row{
			it.ID,
			it.Date,
			location(it.City, it.State),
			humanize.Comma(int64(it.Killed)),
			humanize.Comma(int64(it.Injured)),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func location(city, state string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
