package baseline_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/derickschaefer/dailywx/internal/baseline"
	"github.com/derickschaefer/dailywx/internal/model"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

var nov = baseline.Period{Month: 11, FromYear: 2015, ToYear: 2024}

// day builds a derived record; NaN precipitation means null.
func day(year, month, dom int, prcp float64) model.DailyRecord {
	r := model.DailyRecord{
		Date:  fmt.Sprintf("%04d-%02d-%02d", year, month, dom),
		Year:  year,
		Month: month,
	}
	if !math.IsNaN(prcp) {
		r.PrcpMM = model.Some(prcp)
	}
	return r
}

func table(recs ...model.DailyRecord) *model.Table {
	return &model.Table{Derived: true, Records: recs}
}

func TestCompute_PopulationStd(t *testing.T) {
	tbl := table(
		day(2015, 11, 1, 10),
		day(2016, 11, 1, 10),
		day(2017, 11, 1, 10),
		day(2018, 11, 1, 40),
		day(2018, 12, 1, 500), // wrong month
		day(2014, 11, 1, 500), // before the period
		day(2025, 11, 1, 500), // after the period
	)
	st, err := baseline.Compute(tbl, model.FieldPrcpMM, nov)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st.N != 4 {
		t.Errorf("N = %d, want 4", st.N)
	}
	if !approxEqual(st.Mean.Float, 17.5, 1e-12) {
		t.Errorf("mean = %v, want 17.5", st.Mean)
	}
	if !approxEqual(st.Std.Float, math.Sqrt(168.75), 1e-12) {
		t.Errorf("std = %v, want sqrt(168.75)", st.Std)
	}
}

func TestScore_AnomalyScenario(t *testing.T) {
	tbl := table(
		day(2015, 11, 1, 10),
		day(2016, 11, 1, 10),
		day(2017, 11, 1, 10),
		day(2018, 11, 1, 40),
		day(2024, 12, 21, 50),
	)
	// the 2024 record is outside the baseline years in this variant
	p := baseline.Period{Month: 11, FromYear: 2015, ToYear: 2018}
	if _, err := baseline.Score(tbl, model.FieldPrcpMM, p, ""); err != nil {
		t.Fatalf("score: %v", err)
	}
	z, err := tbl.Column("prcp_z_nov")
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	want := (50 - 17.5) / math.Sqrt(168.75)
	if !approxEqual(z[4].Float, want, 1e-12) {
		t.Errorf("z = %v, want %v", z[4], want)
	}
	if !approxEqual(z[4].Float, 2.50, 0.01) {
		t.Errorf("z = %v, want about 2.50", z[4].Float)
	}
}

func TestScore_BaselineZScoresAverageZero(t *testing.T) {
	tbl := table(
		day(2015, 11, 1, 0),
		day(2015, 11, 2, 3.3),
		day(2016, 11, 1, 12.7),
		day(2019, 11, 5, 0.5),
		day(2023, 11, 9, 41),
		day(2024, 11, 30, 7),
		day(2024, 12, 1, 99),
	)
	if _, err := baseline.Score(tbl, model.FieldPrcpMM, nov, "z"); err != nil {
		t.Fatalf("score: %v", err)
	}
	z, _ := tbl.Column("z")
	var sum float64
	var n int
	for i, r := range tbl.Records {
		if nov.Contains(r.Year, r.Month) {
			sum += z[i].Float
			n++
		}
	}
	if n != 6 {
		t.Fatalf("expected 6 baseline records, got %d", n)
	}
	if !approxEqual(sum/float64(n), 0, 1e-12) {
		t.Errorf("mean z over baseline = %g, want 0", sum/float64(n))
	}
	if !z[6].Valid {
		t.Error("records outside the baseline must still be scored")
	}
}

func TestScore_EmptyBaselineGivesNulls(t *testing.T) {
	tbl := table(day(2024, 12, 1, 5), day(2024, 12, 2, 6))
	st, err := baseline.Score(tbl, model.FieldPrcpMM, nov, "")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if st.Mean.Valid || st.Std.Valid {
		t.Errorf("expected null stats, got %+v", st)
	}
	z, _ := tbl.Column("prcp_z_nov")
	for i, v := range z {
		if v.Valid {
			t.Errorf("z[%d] = %v, want null", i, v.Float)
		}
	}
}

func TestScore_ZeroVarianceGivesNulls(t *testing.T) {
	tbl := table(day(2015, 11, 1, 4), day(2016, 11, 1, 4), day(2024, 12, 1, 9))
	st, err := baseline.Score(tbl, model.FieldPrcpMM, nov, "")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if st.Std.Float != 0 {
		t.Fatalf("std = %v, want 0", st.Std)
	}
	z, _ := tbl.Column("prcp_z_nov")
	for i, v := range z {
		if v.Valid {
			t.Errorf("z[%d] = %v, want null", i, v.Float)
		}
	}
}

func TestScore_NullValueGivesNullZ(t *testing.T) {
	tbl := &model.Table{Derived: true, Records: []model.DailyRecord{
		{Date: "2015-11-01", Year: 2015, Month: 11, TempAvgC: model.Some(10)},
		{Date: "2016-11-01", Year: 2016, Month: 11, TempAvgC: model.Some(20)},
		{Date: "2016-11-02", Year: 2016, Month: 11},
	}}
	if _, err := baseline.Score(tbl, model.FieldTempAvgC, nov, ""); err != nil {
		t.Fatalf("score: %v", err)
	}
	z, err := tbl.Column("temp_z_nov")
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	if !z[0].Valid || !approxEqual(z[0].Float, -1, 1e-12) {
		t.Errorf("z[0] = %+v, want -1", z[0])
	}
	if z[2].Valid {
		t.Errorf("z[2] = %+v, want null", z[2])
	}
}

func TestCompute_RequiresDerivedTable(t *testing.T) {
	tbl := &model.Table{Records: []model.DailyRecord{{Date: "2024-11-01"}}}
	if _, err := baseline.Compute(tbl, model.FieldPrcpMM, nov); err == nil {
		t.Error("expected error before features are derived")
	}
}

func TestColumnName(t *testing.T) {
	cases := map[string]string{
		"prcp_mm":    "prcp_z_nov",
		"temp_avg_c": "temp_z_nov",
		"TMAX":       "TMAX_z_nov",
	}
	for field, want := range cases {
		if got := baseline.ColumnName(field, 11); got != want {
			t.Errorf("ColumnName(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestPeriod(t *testing.T) {
	if got := nov.Label(); got != "Nov 2015-2024" {
		t.Errorf("label = %q", got)
	}
	if err := (baseline.Period{Month: 13, FromYear: 2015, ToYear: 2024}).Validate(); err == nil {
		t.Error("expected error for month 13")
	}
	if err := (baseline.Period{Month: 11, FromYear: 2024, ToYear: 2015}).Validate(); err == nil {
		t.Error("expected error for inverted years")
	}
	if err := nov.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
