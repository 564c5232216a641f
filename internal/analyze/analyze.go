// Package analyze selects daily records and computes descriptive statistics
// over nullable series. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/dailywx/internal/model"
)

// ─── Selection ────────────────────────────────────────────────────────────────

// Selector filters records. Zero fields are unset and match everything.
// Start and End are inclusive canonical dates compared as strings, which is
// valid because the format is fixed-width and zero-padded.
type Selector struct {
	Year  int    `json:"year,omitempty"`
	Month int    `json:"month,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Match reports whether a canonical date satisfies every supplied predicate.
func (s Selector) Match(date string) bool {
	if date == "" {
		return false
	}
	if s.Year != 0 && (len(date) < 4 || date[:4] != fmt.Sprintf("%04d", s.Year)) {
		return false
	}
	if s.Month != 0 && (len(date) < 7 || date[5:7] != fmt.Sprintf("%02d", s.Month)) {
		return false
	}
	if s.Start != "" && date < s.Start {
		return false
	}
	if s.End != "" && date > s.End {
		return false
	}
	return true
}

// IsZero reports whether no predicate is set.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// Select returns the records matching s, in their original order.
func Select(records []model.DailyRecord, s Selector) []model.DailyRecord {
	var out []model.DailyRecord
	for _, r := range records {
		if s.Match(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// Values reads one column from records using get.
func Values(records []model.DailyRecord, get model.Getter) []model.Value {
	out := make([]model.Value, len(records))
	for i := range records {
		out[i] = get(&records[i])
	}
	return out
}

// Anomalies returns the records whose z-score is present and at least
// cutoff, in their original order.
func Anomalies(records []model.DailyRecord, z model.Getter, cutoff float64) []model.DailyRecord {
	var out []model.DailyRecord
	for i := range records {
		if v, ok := z(&records[i]).Get(); ok && v >= cutoff {
			out = append(out, records[i])
		}
	}
	return out
}

// ─── Statistics ───────────────────────────────────────────────────────────────

// MeanStd returns the mean and population standard deviation of the present
// values. Both are null when no value is present.
func MeanStd(vals []model.Value) (model.Value, model.Value) {
	xs := model.Floats(vals)
	if len(xs) == 0 {
		return model.Null, model.Null
	}
	m := sumF(xs) / float64(len(xs))
	return model.Some(m), model.Some(stddevF(xs, m))
}

// Quantile returns the q-quantile (0 <= q <= 1) of the present values using
// linear interpolation between the two bracketing sorted values at rank
// (n-1)*q. q <= 0 gives the minimum and q >= 1 the maximum. An empty input
// gives null.
func Quantile(vals []model.Value, q float64) model.Value {
	sorted := model.Floats(vals)
	if len(sorted) == 0 {
		return model.Null
	}
	sort.Float64s(sorted)
	return model.Some(quantileSorted(sorted, q))
}

// Summary holds descriptive statistics for a series.
type Summary struct {
	Count   int         `json:"count"`   // present values
	Missing int         `json:"missing"` // null values
	Mean    model.Value `json:"mean"`
	Std     model.Value `json:"std"`
	Total   model.Value `json:"total"`
	Min     model.Value `json:"min"`
	Max     model.Value `json:"max"`
	P50     model.Value `json:"p50"`
	P75     model.Value `json:"p75"`
	P90     model.Value `json:"p90"`
	P95     model.Value `json:"p95"`
}

// Summarize computes descriptive statistics over vals. Nulls are excluded
// from every computation but counted.
func Summarize(vals []model.Value) Summary {
	xs := model.Floats(vals)
	s := Summary{Count: len(xs), Missing: len(vals) - len(xs)}
	if len(xs) == 0 {
		return s
	}
	s.Mean, s.Std = MeanStd(vals)
	s.Total = model.Some(sumF(xs))

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	s.Min = model.Some(sorted[0])
	s.Max = model.Some(sorted[len(sorted)-1])
	s.P50 = model.Some(quantileSorted(sorted, 0.50))
	s.P75 = model.Some(quantileSorted(sorted, 0.75))
	s.P90 = model.Some(quantileSorted(sorted, 0.90))
	s.P95 = model.Some(quantileSorted(sorted, 0.95))
	return s
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
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

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * q
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
