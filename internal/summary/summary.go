// Package summary derives the human-readable statistics document from the
// master set.
package summary

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/storage"
)

// UpdatedLayout formats Summary.UpdatedAt.
const UpdatedLayout = "January 2, 2006 at 15:04 UTC"

var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"01/02/2006",
}

var trailingYear = regexp.MustCompile(`(\d{4})\s*$`)

// Latest describes the most recent stored incident.
type Latest struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Location string `json:"location"`
	Killed   string `json:"killed"`
	Injured  string `json:"injured"`
}

// Summary is the statistics block of the document.
type Summary struct {
	UpdatedAt   time.Time `json:"updated_at"`
	Year        int       `json:"year"`
	Total       int       `json:"total"`
	CurrentYear int       `json:"current_year"`
	Latest      *Latest   `json:"latest,omitempty"`
}

// Build computes the summary of set at now. The first row of the set is the
// most recent incident.
func Build(set *master.Set, cols models.Columns, now time.Time) Summary {
	now = now.UTC()
	s := Summary{UpdatedAt: now, Year: now.Year()}
	if set == nil || set.Len() == 0 {
		return s
	}
	s.Total = set.Len()
	for i := range set.Len() {
		if y, ok := Year(set.Record(i).Get(cols.Date)); ok && y == s.Year {
			s.CurrentYear++
		}
	}
	s.Latest = latest(set.Record(0), cols)
	return s
}

func latest(rec models.Record, cols models.Columns) *Latest {
	loc := rec.Get(cols.City)
	if st := rec.Get(cols.State); st != "" {
		if loc != "" {
			loc += ", "
		}
		loc += st
	}
	return &Latest{
		ID:       rec.Get(cols.ID),
		Date:     strings.ReplaceAll(rec.Get(cols.Date), `"`, ""),
		Location: loc,
		Killed:   rec.Get(cols.Killed),
		Injured:  rec.Get(cols.Injured),
	}
}

// Year extracts the year of an incident date in any of the upstream formats.
func Year(date string) (int, bool) {
	date = strings.TrimSpace(strings.ReplaceAll(date, `"`, ""))
	if date == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year(), true
		}
	}
	m := trailingYear.FindStringSubmatch(date)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}

var doc = template.Must(template.New("summary").Funcs(template.FuncMap{
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
	"updated": func(t time.Time) string { return t.Format(UpdatedLayout) },
}).Parse(`# Mass Shooting Incidents

## Statistics
>*Last updated: {{updated .UpdatedAt}}*
{{if .Latest}}
- **Total Incidents**: {{comma .Total}}
- **Incidents in {{.Year}}**: {{comma .CurrentYear}}
- **Most recent incident**: {{.Latest.Date}} in {{.Latest.Location}}
  - Casualties: {{.Latest.Killed}} killed, {{.Latest.Injured}} injured
{{else}}
No data available.
{{end}}`))

// Render writes s as Markdown.
func Render(w io.Writer, s Summary) error {
	if err := doc.Execute(w, s); err != nil {
		return fmt.Errorf("summary: render: %w", err)
	}
	return nil
}

// WriteFile renders s and atomically replaces the file at path.
func WriteFile(path string, s Summary) error {
	var buf bytes.Buffer
	if err := Render(&buf, s); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("summary: resolve %s: %w", path, err)
	}
	fsys, err := storage.NewFS(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err := fsys.Write(filepath.Base(abs), buf.Bytes()); err != nil {
		return fmt.Errorf("summary: write: %w", err)
	}
	return nil
}
