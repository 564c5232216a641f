// Package transform implements stateless rolling-window operators over a
// chronologically ordered series of nullable values. Operators are pure
// functions; AddRolling is the only one that writes into a table.
package transform

import (
	"fmt"
	"math"

	"github.com/derickschaefer/dailywx/internal/model"
)

// ─── Rolling Window ───────────────────────────────────────────────────────────

// RollStat selects the statistic for rolling window computation.
type RollStat string

const (
	RollMean RollStat = "mean"
	RollSum  RollStat = "sum"
	RollMin  RollStat = "min"
	RollMax  RollStat = "max"
	RollStd  RollStat = "std"
)

// Roll computes a trailing rolling statistic. The window at position i spans
// max(0, i-window+1)..i, so it narrows at the start of the series instead of
// padding. Null values are skipped. If fewer than minPeriods non-null values
// exist in a window, the output is null.
func Roll(vals []model.Value, window int, minPeriods int, stat RollStat) ([]model.Value, error) {
	if window < 1 {
		return nil, fmt.Errorf("roll: window must be >= 1, got %d", window)
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	if minPeriods > window {
		return nil, fmt.Errorf("roll: min-periods (%d) cannot exceed window (%d)", minPeriods, window)
	}
	switch stat {
	case RollMean, RollSum, RollMin, RollMax, RollStd:
	default:
		return nil, fmt.Errorf("roll: unknown stat %q (use mean, sum, min, max, std)", stat)
	}

	out := make([]model.Value, len(vals))
	buf := make([]float64, 0, window)
	for i := range vals {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, v := range vals[start : i+1] {
			if v.Valid {
				buf = append(buf, v.Float)
			}
		}
		if len(buf) < minPeriods {
			out[i] = model.Null
			continue
		}
		out[i] = model.Some(apply(stat, buf))
	}
	return out, nil
}

// RollingMean is the trailing mean of the non-null values in each window.
// A window holding only nulls yields null; a window size below one yields an
// all-null series.
func RollingMean(vals []model.Value, window int) []model.Value {
	if window < 1 {
		return make([]model.Value, len(vals))
	}
	out, _ := Roll(vals, window, 1, RollMean)
	return out
}

// RollName is the default column name for a rolling mean ("prcp_mm_roll7").
func RollName(field string, window int) string {
	return fmt.Sprintf("%s_roll%d", field, window)
}

// AddRolling writes the rolling mean of field over window into column name.
// Existing columns other than name are left untouched.
func AddRolling(t *model.Table, field string, window int, name string) error {
	if window < 1 {
		return fmt.Errorf("rolling %s: window must be >= 1, got %d", field, window)
	}
	src, err := t.Column(field)
	if err != nil {
		return fmt.Errorf("rolling %s: %w", field, err)
	}
	if name == "" {
		name = RollName(field, window)
	}
	return t.SetColumn(name, RollingMean(src, window))
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func apply(stat RollStat, vals []float64) float64 {
	switch stat {
	case RollSum:
		return sum(vals)
	case RollMin:
		mn, _ := minmax(vals)
		return mn
	case RollMax:
		_, mx := minmax(vals)
		return mx
	case RollStd:
		return stddev(vals, mean(vals))
	}
	return mean(vals)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return sum(vals) / float64(len(vals))
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// stddev is the population standard deviation.
func stddev(vals []float64, m float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}

func minmax(vals []float64) (float64, float64) {
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
