// Package model defines the canonical data types used throughout dailywx:
// nullable values, raw source records, the dense daily table and the result
// envelope that every command returns.
package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/derickschaefer/dailywx/internal/util"
)

// ─── Nullable Values ──────────────────────────────────────────────────────────

// Value is a nullable measurement. The zero Value is null.
type Value struct {
	Float float64
	Valid bool
}

// Null is the absent value.
var Null = Value{}

// Some returns a present Value holding f.
func Some(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Get returns the held float and whether it is present.
func (v Value) Get() (float64, bool) {
	return v.Float, v.Valid
}

// String renders the value for delimited output; null renders as "".
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return util.FormatNumber(v.Float)
}

// MarshalJSON encodes null values as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON accepts a JSON number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = Null
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Floats returns the present values of vals in order, dropping nulls.
func Floats(vals []Value) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.Valid {
			out = append(out, v.Float)
		}
	}
	return out
}

// ─── Raw Source Records ───────────────────────────────────────────────────────

// Code identifies a recognized raw GHCND measurement. Raw values are stored
// in tenths of the display unit.
type Code string

const (
	TMAX Code = "TMAX" // max temperature, tenths of °C
	TMIN Code = "TMIN" // min temperature, tenths of °C
	PRCP Code = "PRCP" // precipitation, tenths of mm
	AWND Code = "AWND" // average wind speed, tenths of m/s
)

// Codes lists every recognized measurement code.
var Codes = []Code{TMAX, TMIN, PRCP, AWND}

// ParseCode reports whether name is a recognized measurement code.
func ParseCode(name string) (Code, bool) {
	for _, c := range Codes {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// RawField is one named cell of a source row.
type RawField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawRecord is one source row: a date string plus a sparse, ordered set of
// named measurement values. Several RawRecords may share a date.
type RawRecord struct {
	Date   string     `json:"date"`
	Fields []RawField `json:"fields"`
}

// Get returns the value of the named field.
func (r RawRecord) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ─── Daily Records ────────────────────────────────────────────────────────────

// Built-in column names of the persisted daily table.
const (
	FieldDate       = "date"
	FieldTmaxC      = "tmax_c"
	FieldTminC      = "tmin_c"
	FieldTempRangeC = "temp_range_c"
	FieldTempAvgC   = "temp_avg_c"
	FieldPrcpMM     = "prcp_mm"
	FieldAwndMS     = "awnd_ms"
	FieldYear       = "year"
	FieldMonth      = "month"
)

// DerivedFields lists the Feature Engine columns in output order.
var DerivedFields = []string{
	FieldTmaxC, FieldTminC, FieldTempRangeC, FieldTempAvgC,
	FieldPrcpMM, FieldAwndMS, FieldYear, FieldMonth,
}

// DailyRecord is the canonical per-date entity. Fields are populated
// progressively: raw values by the merger, derived values by the feature
// engine, and Ext by later stages. Ext is aligned with Table.Columns.
type DailyRecord struct {
	Date string

	TMAX Value
	TMIN Value
	PRCP Value
	AWND Value

	TmaxC      Value
	TminC      Value
	TempRangeC Value
	TempAvgC   Value
	PrcpMM     Value
	AwndMS     Value
	Year       int
	Month      int

	Ext []Value
}

// Raw returns the raw value for code c.
func (r *DailyRecord) Raw(c Code) Value {
	switch c {
	case TMAX:
		return r.TMAX
	case TMIN:
		return r.TMIN
	case PRCP:
		return r.PRCP
	case AWND:
		return r.AWND
	}
	return Null
}

// SetRaw stores v as the raw value for code c.
func (r *DailyRecord) SetRaw(c Code, v Value) {
	switch c {
	case TMAX:
		r.TMAX = v
	case TMIN:
		r.TMIN = v
	case PRCP:
		r.PRCP = v
	case AWND:
		r.AWND = v
	}
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing and size metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers use the Tabular view of Data when one is available.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindDaily   = "daily"
	KindReport  = "report"
	KindSummary = "summary"
	KindRuns    = "runs"
	KindTable   = "table"
	KindStats   = "stats"
)

// Tabular is implemented by payloads that render as a grid.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Grid is a ready-made Tabular payload.
type Grid struct {
	Columns []string   `json:"columns"`
	Cells   [][]string `json:"rows"`
}

func (g *Grid) Header() []string { return g.Columns }
func (g *Grid) Rows() [][]string  { return g.Cells }
