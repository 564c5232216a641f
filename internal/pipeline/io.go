package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/derickschaefer/dailywx/internal/cdo"
	"github.com/derickschaefer/dailywx/internal/merge"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/tabular"
	"github.com/derickschaefer/dailywx/internal/util"
)

// ─── Raw inputs ───────────────────────────────────────────────────────────────

// ReadRaw reads each file into a raw record set: a raw JSON dump of CDO
// observations when the name ends in .json, a wide daily CSV otherwise.
// Sets are returned in path order for the files that could be read; the
// error lists every file that could not.
func ReadRaw(paths ...string) ([][]model.RawRecord, error) {
	var errs util.MultiError
	var sets [][]model.RawRecord
	for _, path := range paths {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			obs, err := cdo.ReadJSON(path)
			if err != nil {
				errs.Add(err)
				continue
			}
			sets = append(sets, cdo.ToRawRecords(obs))
			continue
		}
		rows, err := tabular.ReadFile(path)
		if err != nil {
			errs.Add(err)
			continue
		}
		sets = append(sets, merge.FromRows(rows))
	}
	return sets, errs.Err()
}

// ─── Daily tables ─────────────────────────────────────────────────────────────

// EncodeTable renders t as tabular rows in Header order.
func EncodeTable(t *model.Table) []tabular.Row {
	header := t.Header()
	cells := t.Rows()
	out := make([]tabular.Row, len(cells))
	for i, row := range cells {
		out[i] = tabular.NewRow(header, row)
	}
	return out
}

// DecodeTable rebuilds a daily table from persisted rows. Raw code columns
// and derived columns map back to typed fields; any other column becomes an
// extension column. The table counts as derived when any derived column is
// present; year and month fall back to the date when their columns are
// missing or empty.
func DecodeTable(rows []tabular.Row) (*model.Table, error) {
	t := &model.Table{}
	if len(rows) == 0 {
		return t, nil
	}
	names := rows[0].Names()

	var ext []string
	for _, name := range names {
		switch {
		case name == model.FieldDate:
		case isDerived(name):
			t.Derived = true
		default:
			if c, ok := model.ParseCode(name); ok {
				t.NoteRaw(c)
				continue
			}
			ext = append(ext, name)
		}
	}
	if !contains(names, model.FieldDate) {
		return nil, fmt.Errorf("daily table has no %q column", model.FieldDate)
	}

	t.Records = make([]model.DailyRecord, len(rows))
	extVals := make([][]model.Value, len(ext))
	for i := range extVals {
		extVals[i] = make([]model.Value, len(rows))
	}
	for i, row := range rows {
		raw, _ := row.Get(model.FieldDate)
		date, ok := util.NormalizeDate(raw)
		if !ok {
			return nil, fmt.Errorf("row %d: invalid date %q", i+1, raw)
		}
		r := &t.Records[i]
		r.Date = date
		for _, c := range t.RawCodes {
			r.SetRaw(c, cellValue(row, string(c)))
		}
		if t.Derived {
			decodeDerived(r, row)
		}
		for j, name := range ext {
			extVals[j][i] = cellValue(row, name)
		}
	}

	order := make([]int, len(t.Records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return t.Records[order[a]].Date < t.Records[order[b]].Date })
	sorted := make([]model.DailyRecord, len(order))
	for i, k := range order {
		sorted[i] = t.Records[k]
		if i > 0 && sorted[i].Date == sorted[i-1].Date {
			return nil, fmt.Errorf("duplicate date %s", sorted[i].Date)
		}
	}
	t.Records = sorted

	for j, name := range ext {
		col := make([]model.Value, len(order))
		for i, k := range order {
			col[i] = extVals[j][k]
		}
		if err := t.SetColumn(name, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeDerived(r *model.DailyRecord, row tabular.Row) {
	r.TmaxC = cellValue(row, model.FieldTmaxC)
	r.TminC = cellValue(row, model.FieldTminC)
	r.TempRangeC = cellValue(row, model.FieldTempRangeC)
	r.TempAvgC = cellValue(row, model.FieldTempAvgC)
	r.PrcpMM = cellValue(row, model.FieldPrcpMM)
	r.AwndMS = cellValue(row, model.FieldAwndMS)
	r.Year = cellInt(row, model.FieldYear, r.Date[:4])
	r.Month = cellInt(row, model.FieldMonth, r.Date[5:7])
}

func cellValue(row tabular.Row, name string) model.Value {
	s, _ := row.Get(name)
	if v, ok := util.ParseNumber(s); ok {
		return model.Some(v)
	}
	return model.Null
}

func cellInt(row tabular.Row, name, fallback string) int {
	s, _ := row.Get(name)
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	if v, ok := util.ParseNumber(s); ok {
		return int(v)
	}
	n, _ := strconv.Atoi(fallback)
	return n
}

func isDerived(name string) bool {
	return contains(model.DerivedFields, name)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// ReadDaily reads a persisted daily table from a CSV file.
func ReadDaily(path string) (*model.Table, error) {
	rows, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := DecodeTable(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteDaily writes t to a CSV file, creating parent directories. The
// header is written even when the table is empty.
func WriteDaily(path string, t *model.Table) error {
	return tabular.WriteGridFile(path, t.Header(), t.Rows())
}

// ─── JSONL streams ────────────────────────────────────────────────────────────

// WriteJSONL writes one JSON object per record with keys in Header order.
// Nulls are JSON null.
func WriteJSONL(w io.Writer, t *model.Table) error {
	header := t.Header()
	bw := bufio.NewWriter(w)
	for i := range t.Records {
		b, err := t.RecordJSON(i, header)
		if err != nil {
			return err
		}
		bw.Write(b)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadJSONL reads a daily table written by WriteJSONL. Column order is
// taken from the first object. Blank lines and lines starting with "//"
// are skipped.
func ReadJSONL(r io.Reader) (*model.Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var header []string
	var rows []tabular.Row
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		names, values, err := decodeObject([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if header == nil {
			header = names
		}
		row := tabular.NewRow(header, nil)
		for i, name := range names {
			row.Set(name, values[i])
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return DecodeTable(rows)
}

// decodeObject reads one flat JSON object, keeping key order. Numbers keep
// their literal text, null becomes "".
func decodeObject(b []byte) ([]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object")
	}
	var names, values []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, nil, err
		}
		var val string
		switch v := tok.(type) {
		case nil:
		case string:
			val = v
		case json.Number:
			val = v.String()
		case bool:
			val = strconv.FormatBool(v)
		default:
			return nil, nil, fmt.Errorf("field %q: nested values are not supported", key)
		}
		names = append(names, key)
		values = append(values, val)
	}
	return names, values, nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
