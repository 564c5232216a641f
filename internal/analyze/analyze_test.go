package analyze_test

import (
	"math"
	"testing"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// vals builds a nullable series; NaN marks a null entry.
func vals(fs ...float64) []model.Value {
	out := make([]model.Value, len(fs))
	for i, f := range fs {
		if !math.IsNaN(f) {
			out[i] = model.Some(f)
		}
	}
	return out
}

func records(dates ...string) []model.DailyRecord {
	out := make([]model.DailyRecord, len(dates))
	for i, d := range dates {
		out[i] = model.DailyRecord{Date: d}
	}
	return out
}

func dateList(recs []model.DailyRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Date
	}
	return out
}

func expectDates(t *testing.T, got []model.DailyRecord, want ...string) {
	t.Helper()
	g := dateList(got)
	if len(g) != len(want) {
		t.Fatalf("dates = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("dates = %v, want %v", g, want)
		}
	}
}

// ─── Select ───────────────────────────────────────────────────────────────────

func TestSelect(t *testing.T) {
	recs := records("2023-11-30", "2024-10-31", "2024-11-01", "2024-11-15", "2024-11-30", "2024-12-01")

	expectDates(t, analyze.Select(recs, analyze.Selector{Year: 2024, Month: 11}),
		"2024-11-01", "2024-11-15", "2024-11-30")
	expectDates(t, analyze.Select(recs, analyze.Selector{Month: 11}),
		"2023-11-30", "2024-11-01", "2024-11-15", "2024-11-30")
	expectDates(t, analyze.Select(recs, analyze.Selector{Start: "2024-11-01", End: "2024-11-30"}),
		"2024-11-01", "2024-11-15", "2024-11-30")
	expectDates(t, analyze.Select(recs, analyze.Selector{Year: 2024, Start: "2024-11-15"}),
		"2024-11-15", "2024-11-30", "2024-12-01")
	expectDates(t, analyze.Select(recs, analyze.Selector{}),
		dateList(recs)...)
}

func TestSelect_SkipsEmptyDates(t *testing.T) {
	recs := records("", "2024-11-01")
	expectDates(t, analyze.Select(recs, analyze.Selector{}), "2024-11-01")
}

// ─── MeanStd ──────────────────────────────────────────────────────────────────

func TestMeanStd(t *testing.T) {
	m, s := analyze.MeanStd(vals(10, 10, math.NaN(), 10, 40))
	if !approxEqual(m.Float, 17.5, 1e-12) {
		t.Errorf("mean = %v, want 17.5", m)
	}
	if !approxEqual(s.Float, math.Sqrt(168.75), 1e-12) {
		t.Errorf("std = %v, want %v", s, math.Sqrt(168.75))
	}
}

func TestMeanStd_Empty(t *testing.T) {
	m, s := analyze.MeanStd(vals(math.NaN(), math.NaN()))
	if m.Valid || s.Valid {
		t.Errorf("expected null pair, got %v %v", m, s)
	}
	m, s = analyze.MeanStd(nil)
	if m.Valid || s.Valid {
		t.Errorf("expected null pair for nil input")
	}
}

// ─── Quantile ─────────────────────────────────────────────────────────────────

func TestQuantile_Extremes(t *testing.T) {
	xs := vals(7, 3, 9, 1, 5)
	if q := analyze.Quantile(xs, 0); q.Float != 1 {
		t.Errorf("q0 = %v, want min 1", q)
	}
	if q := analyze.Quantile(xs, 1); q.Float != 9 {
		t.Errorf("q1 = %v, want max 9", q)
	}
	if q := analyze.Quantile(xs, -0.5); q.Float != 1 {
		t.Errorf("q<0 = %v, want min", q)
	}
	if q := analyze.Quantile(xs, 1.5); q.Float != 9 {
		t.Errorf("q>1 = %v, want max", q)
	}
}

func TestQuantile_MedianOfRange(t *testing.T) {
	for n := 1; n <= 10; n++ {
		fs := make([]float64, n)
		for i := range fs {
			fs[i] = float64(i + 1)
		}
		want := float64(n+1) / 2
		if q := analyze.Quantile(vals(fs...), 0.5); !approxEqual(q.Float, want, 1e-12) {
			t.Errorf("n=%d: median = %v, want %v", n, q.Float, want)
		}
	}
}

func TestQuantile_Interpolates(t *testing.T) {
	// rank (4-1)*0.9 = 2.7 → 30 + 0.7*(40-30)
	q := analyze.Quantile(vals(40, 10, 30, 20), 0.9)
	if !approxEqual(q.Float, 37, 1e-12) {
		t.Errorf("p90 = %v, want 37", q.Float)
	}
}

func TestQuantile_EmptyIsNull(t *testing.T) {
	if q := analyze.Quantile(vals(math.NaN()), 0.5); q.Valid {
		t.Errorf("expected null, got %v", q)
	}
}

// ─── Summarize ────────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	s := analyze.Summarize(vals(0, 2, math.NaN(), 4, 10))
	if s.Count != 4 || s.Missing != 1 {
		t.Errorf("count/missing = %d/%d, want 4/1", s.Count, s.Missing)
	}
	if s.Mean.Float != 4 || s.Total.Float != 16 || s.Min.Float != 0 || s.Max.Float != 10 {
		t.Errorf("unexpected summary %+v", s)
	}
	if !approxEqual(s.P50.Float, 3, 1e-12) {
		t.Errorf("p50 = %v, want 3", s.P50)
	}
	if !approxEqual(s.P75.Float, 5.5, 1e-12) {
		t.Errorf("p75 = %v, want 5.5", s.P75)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := analyze.Summarize(nil)
	if s.Count != 0 || s.Mean.Valid || s.Total.Valid || s.Max.Valid || s.P95.Valid {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

// ─── Anomalies ────────────────────────────────────────────────────────────────

func TestAnomalies(t *testing.T) {
	recs := records("2024-11-01", "2024-11-02", "2024-11-03", "2024-11-04")
	z := vals(2.5, math.NaN(), 2.0, 1.99)
	for i := range recs {
		recs[i].Ext = []model.Value{z[i]}
	}
	get := func(r *model.DailyRecord) model.Value { return r.Ext[0] }

	expectDates(t, analyze.Anomalies(recs, get, 2.0), "2024-11-01", "2024-11-03")
	expectDates(t, analyze.Anomalies(recs, get, 3.0))
}
