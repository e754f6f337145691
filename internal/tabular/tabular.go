// Package tabular reads and writes the CSV files incidents are exchanged in.
//
// The byte-level layout of a file (line terminator, UTF-8 byte order mark)
// is captured on Decode and reproduced on Encode so a rewritten store only
// differs from the original where rows were added.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/models"
)

var bom = []byte("\xEF\xBB\xBF")

// Format describes the byte layout of a CSV file.
type Format struct {
	CRLF bool
	BOM  bool
}

// Document is a decoded CSV file: its header and raw rows.
type Document struct {
	Header models.Schema
	Rows   [][]string
	Format Format
}

// Records returns every row as a Record keyed by the header.
func (d *Document) Records() []models.Record {
	out := make([]models.Record, 0, len(d.Rows))
	for _, row := range d.Rows {
		out = append(out, d.Header.Record(row))
	}
	return out
}

// Decode parses data. A file without a header row, or whose header holds
// only blank names, yields apperr.ErrNoHeader.
func Decode(data []byte) (*Document, error) {
	doc := &Document{Format: detectFormat(data)}
	data = bytes.TrimPrefix(data, bom)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("tabular: read header: %w", err)
	}
	if blankHeader(header) {
		return nil, apperr.ErrNoHeader
	}
	doc.Header = models.Schema(header)

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: read row: %w", err)
		}
		if blankRow(row) {
			continue
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc, nil
}

// Encode serialises header and rows with the given format.
func Encode(header models.Schema, rows [][]string, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if f.BOM {
		buf.Write(bom)
	}
	w := csv.NewWriter(&buf)
	w.UseCRLF = f.CRLF
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("tabular: write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("tabular: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("tabular: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func detectFormat(data []byte) Format {
	f := Format{BOM: bytes.HasPrefix(data, bom)}
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		f.CRLF = true
	}
	return f
}

func blankHeader(h []string) bool {
	for _, c := range h {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// blankRow matches the empty lines spreadsheet tools leave at the end of a file.
func blankRow(row []string) bool {
	return len(row) == 1 && strings.TrimSpace(row[0]) == ""
}
