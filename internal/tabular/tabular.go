// Package tabular decodes delimited text into ordered row mappings and
// encodes rows back to delimited text.
//
// The first record of a document names the columns. Quoted fields may hold
// separators and newlines, and a doubled quote escapes a literal quote. Rows
// shorter than the header are padded with empty strings; extra trailing
// fields are ignored. Ragged input never produces an error.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Separator is the field separator used by Decode and Encode.
const Separator = ','

// Cell is one named value of a row.
type Cell struct {
	Name  string
	Value string
}

// Row is an ordered mapping of column name to string value.
type Row []Cell

// Get returns the value stored under name.
func (r Row) Get(name string) (string, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Set stores value under name, keeping the original position of an existing
// name and appending new names at the end.
func (r *Row) Set(name, value string) {
	for i := range *r {
		if (*r)[i].Name == name {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Cell{Name: name, Value: value})
}

// Names returns the column names in insertion order.
func (r Row) Names() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Name
	}
	return out
}

// NewRow builds a row from parallel name and value slices. Missing values are
// filled with "".
func NewRow(names, values []string) Row {
	row := make(Row, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		row[i] = Cell{Name: n, Value: v}
	}
	return row
}

// ─── Decode ──────────────────────────────────────────────────────────────────

// Decode reads a delimited document from r.
// An empty document yields no rows and no error.
func Decode(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, NewRow(header, rec))
	}
	return rows, nil
}

// DecodeString decodes text.
func DecodeString(text string) ([]Row, error) {
	return Decode(strings.NewReader(text))
}

// ReadFile decodes the document at path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ─── Encode ──────────────────────────────────────────────────────────────────

// Encode writes rows to w. The header comes from the first row's names in
// insertion order; later rows are written in that column order, with "" for
// names they lack. Encoding no rows writes nothing.
func Encode(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0].Names()
	cells := make([][]string, len(rows))
	for i, r := range rows {
		rec := make([]string, len(header))
		for j, name := range header {
			rec[j], _ = r.Get(name)
		}
		cells[i] = rec
	}
	return EncodeGrid(w, header, cells)
}

// EncodeGrid writes a header line followed by records. Records are written
// as given; short records are padded to the header width.
func EncodeGrid(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeString encodes rows to a string.
func EncodeString(rows []Row) (string, error) {
	var sb strings.Builder
	if err := Encode(&sb, rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteFile encodes rows to path, creating parent directories.
func WriteFile(path string, rows []Row) error {
	return writeFile(path, func(w io.Writer) error { return Encode(w, rows) })
}

// WriteGridFile writes a header and records to path, creating parent
// directories. Unlike WriteFile the header is written even without records.
func WriteGridFile(path string, header []string, records [][]string) error {
	return writeFile(path, func(w io.Writer) error { return EncodeGrid(w, header, records) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
