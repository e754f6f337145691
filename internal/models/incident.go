// Package models defines the incident record types shared across Vigil.
package models

import (
	"slices"
	"strings"
)

// Record is one incident row keyed by column name. Column order is carried
// separately by the Schema the record is read from or written with.
type Record map[string]string

// Get returns the trimmed value of col, or "" when absent.
func (r Record) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Schema is the ordered column list of a tabular incident file.
type Schema []string

// Index returns the position of col in s, or -1.
func (s Schema) Index(col string) int {
	for i, c := range s {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col is part of s.
func (s Schema) Has(col string) bool {
	return s.Index(col) >= 0
}

// With returns s extended by every col it does not already contain.
func (s Schema) With(cols ...string) Schema {
	out := append(Schema(nil), s...)
	for _, c := range cols {
		if c != "" && !out.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Row projects r onto s. Columns r lacks are written empty.
func (s Schema) Row(r Record) []string {
	row := make([]string, len(s))
	for i, c := range s {
		row[i] = r[c]
	}
	return row
}

// Record builds a Record from a row laid out by s. Short rows are padded.
func (s Schema) Record(row []string) Record {
	r := make(Record, len(s))
	for i, c := range s {
		if i < len(row) {
			r[c] = row[i]
		} else {
			r[c] = ""
		}
	}
	return r
}

// Extra returns the keys of r that s does not contain, in sorted order.
func (s Schema) Extra(r Record) []string {
	var out []string
	for k := range r {
		if !s.Has(k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Columns names the columns Vigil interprets. Every other column is carried
// through untouched.
type Columns struct {
	ID        string `yaml:"id" json:"id"`
	Date      string `yaml:"date" json:"date"`
	City      string `yaml:"city" json:"city"`
	State     string `yaml:"state" json:"state"`
	Address   string `yaml:"address" json:"address"`
	Killed    string `yaml:"killed" json:"killed"`
	Injured   string `yaml:"injured" json:"injured"`
	Latitude  string `yaml:"latitude" json:"latitude"`
	Longitude string `yaml:"longitude" json:"longitude"`
}

// DefaultColumns returns the column names of the Gun Violence Archive export.
func DefaultColumns() Columns {
	return Columns{
		ID:        "Incident ID",
		Date:      "Incident Date",
		City:      "City Or County",
		State:     "State",
		Address:   "Address",
		Killed:    "Victims Killed",
		Injured:   "Victims Injured",
		Latitude:  "latitude",
		Longitude: "longitude",
	}
}
