package chart_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/chart"
	"github.com/derickschaefer/dailywx/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// days builds consecutive points starting at 2024-11-01. NaN values become
// nulls.
func days(values ...float64) []chart.Point {
	out := make([]chart.Point, len(values))
	for i, v := range values {
		val := model.Some(v)
		if math.IsNaN(v) {
			val = model.Null
		}
		out[i] = chart.Point{
			Label: fmt.Sprintf("2024-11-%02d", i+1),
			Value: val,
		}
	}
	return out
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ─── Series ───────────────────────────────────────────────────────────────────

func TestSeriesSelectsDays(t *testing.T) {
	tbl := &model.Table{Derived: true, Records: []model.DailyRecord{
		{Date: "2024-10-31", PrcpMM: model.Some(1)},
		{Date: "2024-11-01", PrcpMM: model.Some(2)},
		{Date: "2024-11-02"},
	}}
	pts, err := chart.Series(tbl, model.FieldPrcpMM, analyze.Selector{Year: 2024, Month: 11})
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pts))
	}
	if pts[0].Label != "2024-11-01" || pts[0].Value != model.Some(2) {
		t.Errorf("unexpected first point: %+v", pts[0])
	}
	if pts[1].Value.Valid {
		t.Error("missing value should stay null")
	}
}

func TestSeriesUnknownColumn(t *testing.T) {
	tbl := &model.Table{Derived: true}
	if _, err := chart.Series(tbl, "nope", analyze.Selector{}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

// ─── Bar tests ────────────────────────────────────────────────────────────────

func TestBarBasic(t *testing.T) {
	var buf strings.Builder
	err := chart.Bar(&buf, "prcp_mm", days(3.5, 5.4, 3.7, 4.0), chart.BarOptions{Width: 60})
	if err != nil {
		t.Fatalf("Bar returned error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "prcp_mm") {
		t.Error("output missing column name")
	}
	if !strings.Contains(out, "2024-11-01") || !strings.Contains(out, "2024-11-04") {
		t.Error("output missing first or last day")
	}

	lines := nonEmptyLines(out)
	if len(lines) != 5 {
		t.Errorf("expected 5 lines (1 header + 4 bars), got %d:\n%s", len(lines), out)
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, "█") {
			t.Errorf("bar line missing block character: %q", line)
		}
	}
}

func TestBarAllNull(t *testing.T) {
	var buf strings.Builder
	err := chart.Bar(&buf, "X", days(math.NaN(), math.NaN()), chart.BarOptions{Width: 60})
	if err == nil {
		t.Fatal("expected error for all-null series")
	}
	if !strings.Contains(err.Error(), "no non-null") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestBarNullFiltered(t *testing.T) {
	var buf strings.Builder
	if err := chart.Bar(&buf, "X", days(1, math.NaN(), 3), chart.BarOptions{Width: 60}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Errorf("expected 3 lines (1 header + 2 bars), got %d:\n%s", len(lines), buf.String())
	}
	if strings.Contains(buf.String(), "2024-11-02") {
		t.Error("null day should not get a bar")
	}
}

func TestBarMaxBars(t *testing.T) {
	var buf strings.Builder
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if err := chart.Bar(&buf, "X", days(vals...), chart.BarOptions{Width: 60, MaxBars: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 6 {
		t.Errorf("expected 6 lines (1 header + 5 bars), got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(buf.String(), "2024-11-10") {
		t.Error("expected last bar to be 2024-11-10")
	}
	if strings.Contains(buf.String(), "2024-11-01") {
		t.Error("expected 2024-11-01 to be excluded by MaxBars=5")
	}
}

func TestBarNegativeValues(t *testing.T) {
	var buf strings.Builder
	if err := chart.Bar(&buf, "temp_avg_c", days(-3.5, 2.0, -1.0, 4.5), chart.BarOptions{Width: 60}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "│") {
		t.Error("bidirectional bar missing zero-line │ character")
	}
	if !strings.Contains(out, "█") {
		t.Error("negative bar missing block characters")
	}
}

func TestBarFlatSeries(t *testing.T) {
	var buf strings.Builder
	if err := chart.Bar(&buf, "X", days(5, 5, 5), chart.BarOptions{Width: 60}); err != nil {
		t.Fatalf("flat series should not error: %v", err)
	}
}

func TestBarDensityWarning(t *testing.T) {
	vals := make([]float64, 65)
	for i := range vals {
		vals[i] = float64(i)
	}
	pts := days(vals...)
	for i := range pts {
		pts[i].Label = fmt.Sprintf("day-%03d", i)
	}
	var buf strings.Builder
	if err := chart.Bar(&buf, "X", pts, chart.BarOptions{Width: 80}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "⚠") {
		t.Error("expected density warning for 65-day series")
	}
}

// ─── Plot tests ───────────────────────────────────────────────────────────────

func TestPlotBasic(t *testing.T) {
	var buf strings.Builder
	err := chart.Plot(&buf, "prcp_mm", days(0, 2, 8, 3, 0, 12, 5), chart.PlotOptions{Width: 60, Height: 8})
	if err != nil {
		t.Fatalf("Plot returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "prcp_mm") {
		t.Error("output missing column name")
	}
	if !strings.Contains(out, "2024-11-01") {
		t.Error("output missing start date")
	}
	if !strings.Contains(out, "└") {
		t.Error("output missing bottom-left corner └")
	}
}

func TestPlotLineCount(t *testing.T) {
	const height = 6
	var buf strings.Builder
	if err := chart.Plot(&buf, "X", days(1, 2, 3, 4), chart.PlotOptions{Width: 60, Height: height}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// title + body rows + bottom axis + x labels
	expected := 1 + height + 1 + 1
	if len(lines) != expected {
		t.Errorf("expected %d lines, got %d:\n%s", expected, len(lines), buf.String())
	}
}

func TestPlotTitleOverride(t *testing.T) {
	var buf strings.Builder
	if err := chart.Plot(&buf, "prcp_z_nov", days(1, 2, 3), chart.PlotOptions{Width: 60, Title: "November z-scores"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := strings.Split(buf.String(), "\n")[0]
	if !strings.Contains(first, "November z-scores") {
		t.Error("custom title not present in output")
	}
	if strings.Contains(first, "prcp_z_nov") {
		t.Error("column name should be replaced by custom title on header line")
	}
}

func TestPlotTooFewValues(t *testing.T) {
	var buf strings.Builder
	err := chart.Plot(&buf, "X", days(1, math.NaN(), math.NaN()), chart.PlotOptions{Width: 60})
	if err == nil {
		t.Fatal("expected error with a single non-null value")
	}
	if !strings.Contains(err.Error(), "non-null") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestPlotNullGaps(t *testing.T) {
	var buf strings.Builder
	pts := days(1, 2, math.NaN(), math.NaN(), 5, 6)
	if err := chart.Plot(&buf, "X", pts, chart.PlotOptions{Width: 40, Height: 6}); err != nil {
		t.Fatalf("nulls in the middle should not error: %v", err)
	}
}

func TestPlotFlatSeries(t *testing.T) {
	var buf strings.Builder
	if err := chart.Plot(&buf, "X", days(3, 3, 3, 3), chart.PlotOptions{Width: 40, Height: 6}); err != nil {
		t.Fatalf("flat series should not error: %v", err)
	}
}

func TestPlotThreshold(t *testing.T) {
	var buf strings.Builder
	opts := chart.PlotOptions{Width: 60, Height: 8, Threshold: model.Some(2.0)}
	if err := chart.Plot(&buf, "prcp_z_nov", days(-0.5, 0.1, 0.4, -0.2), opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "┄") {
		t.Errorf("expected threshold line:\n%s", out)
	}
	// threshold above the data widens the y range to include it
	if !strings.Contains(out, "2.0") {
		t.Errorf("expected 2.0 tick on the y axis:\n%s", out)
	}
}

func TestPlotWidthRespected(t *testing.T) {
	const width = 50
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = math.Sin(float64(i) / 3)
	}
	var buf strings.Builder
	if err := chart.Plot(&buf, "X", days(vals...), chart.PlotOptions{Width: width, Height: 8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")[1:] {
		if runeLen := len([]rune(line)); runeLen > width {
			t.Errorf("line %d exceeds width %d: runes=%d %q", i, width, runeLen, line)
		}
	}
}

func TestPlotXAxisLabels(t *testing.T) {
	var buf strings.Builder
	if err := chart.Plot(&buf, "X", days(1, 4, 2, 5, 3), chart.PlotOptions{Width: 60, Height: 6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "2024-11-01") {
		t.Error("x-axis missing start label")
	}
	if !strings.Contains(last, "2024-11-05") {
		t.Error("x-axis missing end label")
	}
}
