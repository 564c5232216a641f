// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string. Grid formats use the Tabular view of
// the payload and fall back to JSON when there is none.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/dailywx/internal/model"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// Valid reports whether format is a known format name.
func Valid(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

func tabularOf(result *model.Result) (model.Tabular, bool) {
	tb, ok := result.Data.(model.Tabular)
	return tb, ok
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one object per grid row with keys in header order.
// Daily tables keep numeric values as numbers and nulls as null.
func renderJSONL(w io.Writer, result *model.Result) error {
	if t, ok := result.Data.(*model.Table); ok {
		header := t.Header()
		for i := range t.Records {
			b, err := t.RecordJSON(i, header)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
				return err
			}
		}
		return nil
	}
	tb, ok := tabularOf(result)
	if !ok {
		return json.NewEncoder(w).Encode(result.Data)
	}
	header := tb.Header()
	for _, row := range tb.Rows() {
		b, err := rowObject(header, row)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

func rowObject(header, row []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range header {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		v, err := json.Marshal(cell)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	tb, ok := tabularOf(result)
	if !ok {
		return renderJSON(w, result)
	}
	header := tb.Header()
	upper := make([]string, len(header))
	for i, h := range header {
		upper[i] = strings.ToUpper(h)
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(upper)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	if _, isTable := result.Data.(*model.Table); isTable {
		align := make([]int, len(header))
		for i, h := range header {
			align[i] = tablewriter.ALIGN_RIGHT
			if h == model.FieldDate {
				align[i] = tablewriter.ALIGN_LEFT
			}
		}
		tw.SetColumnAlignment(align)
	}

	for _, row := range tb.Rows() {
		tw.Append(row)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	if tb, ok := tabularOf(result); ok {
		_ = cw.Write(tb.Header())
		for _, row := range tb.Rows() {
			_ = cw.Write(row)
		}
	} else {
		// single JSON cell
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	tb, ok := tabularOf(result)
	if !ok {
		return renderJSON(w, result)
	}
	header := tb.Header()
	escaped := make([]string, len(header))
	seps := make([]string, len(header))
	for i, h := range header {
		escaped[i] = mdEscape(h)
		seps[i] = strings.Repeat("-", max(3, len(h)))
	}
	fmt.Fprintf(w, "| %s |\n|%s|\n", strings.Join(escaped, " | "), strings.Join(seps, "|"))
	for _, row := range tb.Rows() {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Command,
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
