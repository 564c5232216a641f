package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Getter reads one named column from a record.
type Getter func(r *DailyRecord) Value

// Table is the dense daily table owned by a single pipeline run.
// Records are sorted by ascending date with at most one record per date.
type Table struct {
	// RawCodes lists the raw measurement columns in first-seen order.
	RawCodes []Code
	// Derived is set once the feature engine has populated derived fields.
	Derived bool
	// Columns names the extension columns in the order they were added.
	Columns []string
	Records []DailyRecord
}

// Len returns the number of daily records.
func (t *Table) Len() int { return len(t.Records) }

// NoteRaw records that raw code c appears in the table.
func (t *Table) NoteRaw(c Code) {
	for _, have := range t.RawCodes {
		if have == c {
			return
		}
	}
	t.RawCodes = append(t.RawCodes, c)
}

// Index returns the position of date in the table.
func (t *Table) Index(date string) (int, bool) {
	i := sort.Search(len(t.Records), func(i int) bool { return t.Records[i].Date >= date })
	return i, i < len(t.Records) && t.Records[i].Date == date
}

// Header returns the persisted column order: date, raw codes, derived
// fields (when present), then extension columns.
func (t *Table) Header() []string {
	h := make([]string, 0, 1+len(t.RawCodes)+len(DerivedFields)+len(t.Columns))
	h = append(h, FieldDate)
	for _, c := range t.RawCodes {
		h = append(h, string(c))
	}
	if t.Derived {
		h = append(h, DerivedFields...)
	}
	return append(h, t.Columns...)
}

// Rows renders every record as strings in Header order. Nulls become "".
func (t *Table) Rows() [][]string {
	header := t.Header()
	out := make([][]string, len(t.Records))
	for i := range t.Records {
		row := make([]string, len(header))
		for j, name := range header {
			row[j] = t.Cell(i, name)
		}
		out[i] = row
	}
	return out
}

// Cell renders the named column of record i.
func (t *Table) Cell(i int, name string) string {
	r := &t.Records[i]
	switch name {
	case FieldDate:
		return r.Date
	case FieldYear:
		return strconv.Itoa(r.Year)
	case FieldMonth:
		return strconv.Itoa(r.Month)
	}
	get, err := t.Getter(name)
	if err != nil {
		return ""
	}
	return get(r).String()
}

// IsBuiltin reports whether name is a raw, derived or date column.
func IsBuiltin(name string) bool {
	if name == FieldDate {
		return true
	}
	if _, ok := ParseCode(name); ok {
		return true
	}
	for _, f := range DerivedFields {
		if f == name {
			return true
		}
	}
	return false
}

// HasColumn reports whether name is readable through Getter.
func (t *Table) HasColumn(name string) bool {
	_, err := t.Getter(name)
	return err == nil
}

func (t *Table) extIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Getter returns an accessor for the named numeric column.
func (t *Table) Getter(name string) (Getter, error) {
	if c, ok := ParseCode(name); ok {
		return func(r *DailyRecord) Value { return r.Raw(c) }, nil
	}
	if i := t.extIndex(name); i >= 0 {
		return func(r *DailyRecord) Value {
			if i < len(r.Ext) {
				return r.Ext[i]
			}
			return Null
		}, nil
	}
	var g Getter
	switch name {
	case FieldTmaxC:
		g = func(r *DailyRecord) Value { return r.TmaxC }
	case FieldTminC:
		g = func(r *DailyRecord) Value { return r.TminC }
	case FieldTempRangeC:
		g = func(r *DailyRecord) Value { return r.TempRangeC }
	case FieldTempAvgC:
		g = func(r *DailyRecord) Value { return r.TempAvgC }
	case FieldPrcpMM:
		g = func(r *DailyRecord) Value { return r.PrcpMM }
	case FieldAwndMS:
		g = func(r *DailyRecord) Value { return r.AwndMS }
	case FieldYear:
		g = func(r *DailyRecord) Value { return Some(float64(r.Year)) }
	case FieldMonth:
		g = func(r *DailyRecord) Value { return Some(float64(r.Month)) }
	default:
		return nil, fmt.Errorf("unknown column %q", name)
	}
	if !t.Derived {
		return nil, fmt.Errorf("column %q is not available before features are derived", name)
	}
	return g, nil
}

// Column returns the named column as a slice aligned with Records.
func (t *Table) Column(name string) ([]Value, error) {
	get, err := t.Getter(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(t.Records))
	for i := range t.Records {
		out[i] = get(&t.Records[i])
	}
	return out, nil
}

// SetColumn adds the extension column name, or replaces it in place when it
// already exists. Built-in columns cannot be overwritten.
func (t *Table) SetColumn(name string, vals []Value) error {
	if name == "" {
		return fmt.Errorf("column name is empty")
	}
	if IsBuiltin(name) {
		return fmt.Errorf("column %q is built in and cannot be replaced", name)
	}
	if len(vals) != len(t.Records) {
		return fmt.Errorf("column %q: %d values for %d records", name, len(vals), len(t.Records))
	}
	idx := t.extIndex(name)
	if idx < 0 {
		idx = len(t.Columns)
		t.Columns = append(t.Columns, name)
	}
	for i := range t.Records {
		r := &t.Records[i]
		for len(r.Ext) < len(t.Columns) {
			r.Ext = append(r.Ext, Null)
		}
		r.Ext[idx] = vals[i]
	}
	return nil
}

// MarshalJSON encodes the table as an array of objects in Header order.
func (t *Table) MarshalJSON() ([]byte, error) {
	header := t.Header()
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range t.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		obj, err := t.RecordJSON(i, header)
		if err != nil {
			return nil, err
		}
		buf.Write(obj)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// RecordJSON encodes record i as one JSON object with keys in header order.
func (t *Table) RecordJSON(i int, header []string) ([]byte, error) {
	r := &t.Records[i]
	var buf bytes.Buffer
	buf.WriteByte('{')
	for j, name := range header {
		if j > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		buf.Write(k)
		buf.WriteByte(':')
		var v interface{}
		switch name {
		case FieldDate:
			v = r.Date
		case FieldYear:
			v = r.Year
		case FieldMonth:
			v = r.Month
		default:
			get, err := t.Getter(name)
			if err != nil {
				return nil, err
			}
			v = get(r)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
