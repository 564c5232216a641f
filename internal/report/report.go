// Package report builds the threshold anomaly report: baseline statistics,
// target-window statistics, the target-window rows and the rows whose
// z-score meets the cutoff.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/baseline"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/tabular"
	"github.com/derickschaefer/dailywx/internal/util"
)

// DefaultCutoff is the z-score at or above which a day is anomalous.
const DefaultCutoff = 2.0

// SummaryFile is the name of the text summary written by WriteFiles.
const SummaryFile = "analysis_summary.txt"

// Options configure a report.
type Options struct {
	Field    string           `json:"field"`
	ZField   string           `json:"z_field"`
	AuxField string           `json:"aux_field"`
	Baseline baseline.Period  `json:"baseline"`
	Target   analyze.Selector `json:"target"`
	Cutoff   float64          `json:"cutoff"`
}

// DefaultOptions reports on November 2024 precipitation against a
// November 2015-2024 baseline.
func DefaultOptions() Options {
	p := baseline.Period{Month: 11, FromYear: 2015, ToYear: 2024}
	return Options{
		Field:    model.FieldPrcpMM,
		ZField:   baseline.ColumnName(model.FieldPrcpMM, p.Month),
		AuxField: model.FieldTempAvgC,
		Baseline: p,
		Target:   analyze.Selector{Year: 2024, Month: 11},
		Cutoff:   DefaultCutoff,
	}
}

// Row is one line of the tabular report.
type Row struct {
	Date  string      `json:"date"`
	Value model.Value `json:"value"`
	Z     model.Value `json:"z"`
	Aux   model.Value `json:"aux"`
}

// Report is the threshold report for one table.
type Report struct {
	Options   Options         `json:"options"`
	Baseline  analyze.Summary `json:"baseline"`
	Target    analyze.Summary `json:"target"`
	Rows      []Row           `json:"rows"`
	Anomalies []Row           `json:"anomalies"`
}

// Build computes the report over t. The field and z-score columns must
// exist; a missing auxiliary column renders as nulls.
func Build(t *model.Table, opts Options) (*Report, error) {
	if opts.ZField == "" {
		opts.ZField = baseline.ColumnName(opts.Field, opts.Baseline.Month)
	}
	field, err := t.Getter(opts.Field)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	z, err := t.Getter(opts.ZField)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	aux := func(*model.DailyRecord) model.Value { return model.Null }
	if opts.AuxField != "" {
		if g, err := t.Getter(opts.AuxField); err == nil {
			aux = g
		}
	}

	var base []model.Value
	for i := range t.Records {
		r := &t.Records[i]
		if opts.Baseline.Contains(r.Year, r.Month) {
			base = append(base, field(r))
		}
	}

	target := analyze.Select(t.Records, opts.Target)
	rep := &Report{
		Options:  opts,
		Baseline: analyze.Summarize(base),
		Target:   analyze.Summarize(analyze.Values(target, field)),
		Rows:     make([]Row, 0, len(target)),
	}
	for i := range target {
		rep.Rows = append(rep.Rows, Row{
			Date:  target[i].Date,
			Value: field(&target[i]),
			Z:     z(&target[i]),
			Aux:   aux(&target[i]),
		})
	}
	for _, r := range analyze.Anomalies(target, z, opts.Cutoff) {
		r := r
		rep.Anomalies = append(rep.Anomalies, Row{Date: r.Date, Value: field(&r), Z: z(&r), Aux: aux(&r)})
	}
	return rep, nil
}

// ─── Tabular output ───────────────────────────────────────────────────────────

// Header is the fixed report column order.
func (r *Report) Header() []string {
	return []string{model.FieldDate, r.Options.Field, r.Options.ZField, r.Options.AuxField}
}

// Cells renders rows in Header order; nulls become "".
func Cells(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row.Date, row.Value.String(), row.Z.String(), row.Aux.String()}
	}
	return out
}

// DailyGrid is the target-window table.
func (r *Report) DailyGrid() *model.Grid {
	return &model.Grid{Columns: r.Header(), Cells: Cells(r.Rows)}
}

// AnomalyGrid is the table of anomalous days.
func (r *Report) AnomalyGrid() *model.Grid {
	return &model.Grid{Columns: r.Header(), Cells: Cells(r.Anomalies)}
}

// SummaryGrid lists every summary statistic as section/key/value rows.
func (r *Report) SummaryGrid() *model.Grid {
	g := &model.Grid{Columns: []string{"section", "key", "value"}}
	add := func(section, key, value string) {
		g.Cells = append(g.Cells, []string{section, key, value})
	}
	for _, kv := range r.baselineLines() {
		add("baseline", kv[0], kv[1])
	}
	for _, kv := range r.targetLines() {
		add("target", kv[0], kv[1])
	}
	add("anomalies", "cutoff", util.FormatNumber(r.Options.Cutoff))
	add("anomalies", "anomaly_days_count", fmt.Sprintf("%d", len(r.Anomalies)))
	return g
}

// ─── Text summary ─────────────────────────────────────────────────────────────

// Unit returns the unit suffix of the report field ("prcp_mm" → "mm").
func (r *Report) Unit() string {
	f := r.Options.Field
	if i := strings.LastIndex(f, "_"); i >= 0 && i < len(f)-1 {
		return f[i+1:]
	}
	return f
}

// TargetLabel describes the target window ("Nov 2024").
func (r *Report) TargetLabel() string {
	return selectorLabel(r.Options.Target)
}

// FilePrefix names the report CSVs ("nov_2024").
func (r *Report) FilePrefix() string {
	s := r.Options.Target
	switch {
	case s.Year != 0 && s.Month != 0 && s.Start == "" && s.End == "":
		return fmt.Sprintf("%s_%d", util.MonthAbbrev(s.Month), s.Year)
	case s.Start == "" && s.End == "" && s.Year != 0:
		return fmt.Sprintf("%d", s.Year)
	case s.Start == "" && s.End == "" && s.Month != 0:
		return util.MonthAbbrev(s.Month)
	case s.IsZero():
		return "all"
	}
	return "target"
}

func (r *Report) baselineLines() [][2]string {
	u := r.Unit()
	b := r.Baseline
	return [][2]string{
		{"days_used", fmt.Sprintf("%d", b.Count)},
		{"mean_" + u, num(b.Mean)},
		{"std_" + u, num(b.Std)},
		{"p50_" + u, num(b.P50)},
		{"p75_" + u, num(b.P75)},
		{"p90_" + u, num(b.P90)},
		{"p95_" + u, num(b.P95)},
	}
}

func (r *Report) targetLines() [][2]string {
	u := r.Unit()
	s := r.Target
	return [][2]string{
		{"days_used", fmt.Sprintf("%d", s.Count)},
		{"mean_" + u, num(s.Mean)},
		{"total_" + u, num(s.Total)},
		{"max_" + u, num(s.Max)},
	}
}

// Text renders the human-readable summary.
func (r *Report) Text() string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("Baseline (%s) for daily %s", r.Options.Baseline.Label(), r.Options.Field)
	for _, kv := range r.baselineLines() {
		line("%s: %s", kv[0], kv[1])
	}
	line("")

	line("%s %s summary", r.TargetLabel(), r.Options.Field)
	for _, kv := range r.targetLines() {
		line("%s: %s", kv[0], kv[1])
	}
	line("")

	line("Anomaly cutoff: z >= %s", util.FormatNumber(r.Options.Cutoff))
	line("anomaly_days_count: %d", len(r.Anomalies))
	if len(r.Anomalies) > 0 {
		line("anomaly_days:")
		for _, a := range r.Anomalies {
			line("- %s (%s=%s, z=%s)", a.Date, r.Unit(), num(a.Value), num(a.Z))
		}
	}
	return b.String()
}

// WriteText writes the text summary to w.
func (r *Report) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, r.Text())
	return err
}

// WriteFiles writes the target-window CSV, the anomaly CSV and the text
// summary into dir and returns their paths.
func (r *Report) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	prefix := r.FilePrefix()
	daily := filepath.Join(dir, prefix+"_daily.csv")
	anomalies := filepath.Join(dir, prefix+"_anomaly_days.csv")
	summary := filepath.Join(dir, SummaryFile)

	if err := tabular.WriteGridFile(daily, r.Header(), Cells(r.Rows)); err != nil {
		return nil, err
	}
	if err := tabular.WriteGridFile(anomalies, r.Header(), Cells(r.Anomalies)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(summary, []byte(r.Text()), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", summary, err)
	}
	return []string{summary, daily, anomalies}, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func num(v model.Value) string {
	if !v.Valid {
		return "n/a"
	}
	return util.FormatNumber(v.Float)
}

func selectorLabel(s analyze.Selector) string {
	var parts []string
	switch {
	case s.Year != 0 && s.Month != 0:
		name := util.MonthAbbrev(s.Month)
		parts = append(parts, fmt.Sprintf("%s %d", strings.ToUpper(name[:1])+name[1:], s.Year))
	case s.Year != 0:
		parts = append(parts, fmt.Sprintf("%d", s.Year))
	case s.Month != 0:
		name := util.MonthAbbrev(s.Month)
		parts = append(parts, strings.ToUpper(name[:1])+name[1:])
	}
	if s.Start != "" || s.End != "" {
		start, end := s.Start, s.End
		if start == "" {
			start = "…"
		}
		if end == "" {
			end = "…"
		}
		parts = append(parts, start+".."+end)
	}
	if len(parts) == 0 {
		return "All days"
	}
	return strings.Join(parts, " ")
}
