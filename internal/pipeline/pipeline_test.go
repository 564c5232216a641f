package pipeline_test

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/derickschaefer/dailywx/internal/baseline"
	"github.com/derickschaefer/dailywx/internal/cdo"
	"github.com/derickschaefer/dailywx/internal/metrics"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/report"
	"github.com/derickschaefer/dailywx/internal/tabular"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func value(t *testing.T, tbl *model.Table, col string, i int) model.Value {
	t.Helper()
	vals, err := tbl.Column(col)
	if err != nil {
		t.Fatalf("column %s: %v", col, err)
	}
	return vals[i]
}

func raw(date string, fields ...string) model.RawRecord {
	rec := model.RawRecord{Date: date}
	for i := 0; i+1 < len(fields); i += 2 {
		rec.Fields = append(rec.Fields, model.RawField{Name: fields[i], Value: fields[i+1]})
	}
	return rec
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─── Build / Clean ────────────────────────────────────────────────────────────

func TestClean_TwoSourcesOneDay(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,TMAX\n2024-11-05,300\n")
	b := writeFile(t, dir, "b.csv", "date,TMIN\n2024-11-05,100\n")
	out := filepath.Join(dir, "processed", "daily.csv")

	p := pipeline.New(pipeline.DefaultOptions(), quiet(), nil)
	tbl, err := p.Clean(out, a, b)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("records = %d, want 1", tbl.Len())
	}
	if v := value(t, tbl, model.FieldTempAvgC, 0); v.Float != 20.0 {
		t.Errorf("temp_avg_c = %v, want 20.0", v)
	}
	if v := value(t, tbl, model.FieldTempRangeC, 0); v.Float != 20.0 {
		t.Errorf("temp_range_c = %v, want 20.0", v)
	}
	if v := value(t, tbl, model.FieldPrcpMM, 0); !v.Valid || v.Float != 0 {
		t.Errorf("prcp_mm = %+v, want 0.0", v)
	}

	want := []string{
		"date", "TMAX", "TMIN",
		"tmax_c", "tmin_c", "temp_range_c", "temp_avg_c", "prcp_mm", "awnd_ms", "year", "month",
		"temp_avg_c_roll7", "prcp_mm_roll7", "temp_avg_c_roll14", "prcp_mm_roll14",
		"prcp_z_nov",
	}
	if got := tbl.Header(); !sameStrings(got, want) {
		t.Errorf("header = %v\nwant     %v", got, want)
	}
	// a single-day baseline has zero variance
	if v := value(t, tbl, "prcp_z_nov", 0); v.Valid {
		t.Errorf("z = %v, want null", v)
	}

	back, err := pipeline.ReadDaily(out)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := back.Header(); !sameStrings(got, want) {
		t.Errorf("persisted header = %v", got)
	}
	if v := value(t, back, "temp_avg_c_roll7", 0); v.Float != 20.0 {
		t.Errorf("temp_avg_c_roll7 = %v, want 20.0", v)
	}
	if back.Records[0].Year != 2024 || back.Records[0].Month != 11 {
		t.Errorf("year/month = %d/%d", back.Records[0].Year, back.Records[0].Month)
	}
}

func TestBuild_AnomalyScenario(t *testing.T) {
	period := baseline.Period{Month: 11, FromYear: 2015, ToYear: 2018}
	opts := pipeline.Options{BaselineField: model.FieldPrcpMM, Baseline: period}
	p := pipeline.New(opts, quiet(), nil)

	tbl, err := p.Build(
		[]model.RawRecord{
			raw("2015-11-01", "PRCP", "100"),
			raw("2016-11-01", "PRCP", "100"),
			raw("2017-11-01", "PRCP", "100"),
			raw("2018-11-01", "PRCP", "400"),
		},
		[]model.RawRecord{
			raw("2024-11-20", "TMAX", "200"),
			raw("2024-11-21", "PRCP", "500"),
		},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	z := value(t, tbl, "prcp_z_nov", 5)
	want := (50 - 17.5) / math.Sqrt(168.75)
	if math.Abs(z.Float-want) > 1e-12 {
		t.Errorf("z = %v, want %v", z, want)
	}

	ropts := report.DefaultOptions()
	ropts.Baseline = period

	dir := t.TempDir()
	rep, paths, err := p.Analyze(tbl, ropts, dir)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(rep.Anomalies) != 1 || rep.Anomalies[0].Date != "2024-11-21" {
		t.Errorf("anomalies = %+v", rep.Anomalies)
	}
	if len(paths) != 3 {
		t.Errorf("paths = %v", paths)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing output %s: %v", path, err)
		}
	}

	ropts.Cutoff = 3.0
	rep, _, err = p.Analyze(tbl, ropts, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(rep.Anomalies) != 0 {
		t.Errorf("anomalies at cutoff 3.0 = %+v, want none", rep.Anomalies)
	}
}

func TestBuild_InvalidPeriod(t *testing.T) {
	opts := pipeline.Options{BaselineField: model.FieldPrcpMM, Baseline: baseline.Period{Month: 0}}
	if _, err := pipeline.New(opts, quiet(), nil).Build(nil); err == nil {
		t.Error("expected error for month 0")
	}
}

func TestBuild_UnknownRollField(t *testing.T) {
	opts := pipeline.Options{Windows: []int{7}, RollFields: []string{"snow_mm"}}
	if _, err := pipeline.New(opts, quiet(), nil).Build(nil); err == nil {
		t.Error("expected error for unknown rolling field")
	}
}

func TestBuild_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	p := pipeline.New(pipeline.Options{}, quiet(), m)
	_, err := p.Build([]model.RawRecord{
		raw("2024-11-01", "PRCP", "1"),
		raw("not a date", "PRCP", "1"),
		raw("2024-11-02", "PRCP", "1"),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := testutil.ToFloat64(m.DaysMerged); got != 2 {
		t.Errorf("days merged = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestClean_SkipsUnreadableInput(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,PRCP\n2024-11-01,5\n")
	p := pipeline.New(pipeline.Options{}, quiet(), nil)
	tbl, err := p.Clean("", a, filepath.Join(dir, "missing.csv"))
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("records = %d, want 1", tbl.Len())
	}
	if _, err := p.Clean("", filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error when no input is readable")
	}
}

// ─── ReadRaw ──────────────────────────────────────────────────────────────────

func TestReadRaw(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,TMAX,STATION\n2024-11-05,300,X\n2024-11-06,,X\n")
	sets, err := pipeline.ReadRaw(a, filepath.Join(dir, "nope.csv"))
	if err == nil {
		t.Error("expected error for the missing file")
	}
	if len(sets) != 1 || len(sets[0]) != 2 {
		t.Fatalf("sets = %+v", sets)
	}
	if v, _ := sets[0][0].Get("TMAX"); v != "300" {
		t.Errorf("TMAX = %q", v)
	}
}

func TestReadRawJSONDump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cdo_nov_2024.json")
	obs := []cdo.Observation{
		{Date: "2024-11-02T00:00:00", DataType: "PRCP", Station: "X", Value: 25},
		{Date: "2024-11-01T00:00:00", DataType: "TMAX", Station: "X", Value: 300},
	}
	if err := cdo.WriteJSON(path, obs); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	sets, err := pipeline.ReadRaw(path)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if len(sets) != 1 || len(sets[0]) != 2 {
		t.Fatalf("sets = %+v", sets)
	}
	if sets[0][0].Date != "2024-11-01" {
		t.Errorf("first date = %q", sets[0][0].Date)
	}
	if v, _ := sets[0][1].Get("PRCP"); v != "25" {
		t.Errorf("PRCP = %q", v)
	}
}

// ─── DecodeTable ──────────────────────────────────────────────────────────────

func decode(t *testing.T, text string) (*model.Table, error) {
	t.Helper()
	rows, err := tabular.DecodeString(text)
	if err != nil {
		t.Fatalf("decode csv: %v", err)
	}
	return pipeline.DecodeTable(rows)
}

func TestDecodeTable_SortsAndKeepsExtensions(t *testing.T) {
	tbl, err := decode(t, "date,PRCP,prcp_mm,custom\n2024-11-02,10,1.0,7\n2024-11-01,,0.0,\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tbl.Records[0].Date != "2024-11-01" || tbl.Records[1].Date != "2024-11-02" {
		t.Errorf("dates not sorted: %s, %s", tbl.Records[0].Date, tbl.Records[1].Date)
	}
	if !tbl.Derived {
		t.Error("table with derived columns should be marked derived")
	}
	if v := value(t, tbl, "custom", 1); v.Float != 7 {
		t.Errorf("custom[1] = %v, want 7", v)
	}
	if v := value(t, tbl, "custom", 0); v.Valid {
		t.Errorf("custom[0] = %v, want null", v)
	}
	if tbl.Records[1].Year != 2024 || tbl.Records[1].Month != 11 {
		t.Errorf("year/month fallback = %d/%d", tbl.Records[1].Year, tbl.Records[1].Month)
	}
}

func TestDecodeTable_RawOnlyIsNotDerived(t *testing.T) {
	tbl, err := decode(t, "date,TMAX\n2024-11-01,250\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tbl.Derived {
		t.Error("raw-only table should not be derived")
	}
	if v := tbl.Records[0].TMAX; v.Float != 250 {
		t.Errorf("TMAX = %v", v)
	}
}

func TestDecodeTable_Errors(t *testing.T) {
	cases := map[string]string{
		"no date column": "day,TMAX\n2024-11-01,1\n",
		"bad date":       "date,TMAX\n2024-13-01,1\n",
		"duplicate date": "date,TMAX\n2024-11-01,1\n2024-11-01,2\n",
	}
	for name, text := range cases {
		if _, err := decode(t, text); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeTable_Empty(t *testing.T) {
	tbl, err := pipeline.DecodeTable(nil)
	if err != nil || tbl.Len() != 0 {
		t.Errorf("empty decode = %v, %v", tbl, err)
	}
}

func TestEncodeTable(t *testing.T) {
	tbl, err := decode(t, "date,TMAX\n2024-11-01,250\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rows := pipeline.EncodeTable(tbl)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if v, _ := rows[0].Get("TMAX"); v != "250.0" {
		t.Errorf("TMAX = %q, want 250.0", v)
	}
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func TestJSONLRoundTrip(t *testing.T) {
	p := pipeline.New(pipeline.DefaultOptions(), quiet(), nil)
	tbl, err := p.Build([]model.RawRecord{
		raw("2024-11-01", "TMAX", "250", "TMIN", "150", "PRCP", "12"),
		raw("2024-11-02", "TMAX", "260"),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, tbl); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
	if !strings.Contains(buf.String(), `"temp_avg_c":null`) {
		t.Errorf("expected null temp_avg_c on day two:\n%s", buf.String())
	}

	back, err := pipeline.ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !sameStrings(back.Header(), tbl.Header()) {
		t.Errorf("header = %v, want %v", back.Header(), tbl.Header())
	}
	if v := value(t, back, model.FieldTempAvgC, 0); v.Float != 20 {
		t.Errorf("temp_avg_c = %v, want 20", v)
	}
	if v := value(t, back, model.FieldPrcpMM, 0); v.Float != 1.2 {
		t.Errorf("prcp_mm = %v, want 1.2", v)
	}
}

func TestReadJSONL_Errors(t *testing.T) {
	if _, err := pipeline.ReadJSONL(strings.NewReader("\n// comment\n")); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := pipeline.ReadJSONL(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := pipeline.ReadJSONL(strings.NewReader(`{"date":"2024-11-01","x":[1]}` + "\n")); err == nil {
		t.Error("expected error for nested value")
	}
}
