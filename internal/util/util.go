// Package util provides shared utilities: date normalization, numeric
// parsing and formatting, and error aggregation.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

// DateLayout is the canonical calendar date layout used by every table.
const DateLayout = "2006-01-02"

// lenientLayout accepts unpadded month and day ("2024-1-5").
const lenientLayout = "2006-1-2"

// NormalizeDate converts s to canonical YYYY-MM-DD form.
// Surrounding whitespace is ignored. Month and day may be unpadded; anything
// else (timestamps, other separators, impossible dates) is rejected.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	t, err := time.Parse(lenientLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthBounds returns the first and last calendar day of month in year.
func MonthBounds(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return FormatDate(first), FormatDate(last)
}

// MonthAbbrev returns the lower-case three letter name of month m ("nov").
// Out-of-range months return "m<n>".
func MonthAbbrev(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("m%d", m)
	}
	return strings.ToLower(time.Month(m).String()[:3])
}

// ─── Numeric Values ───────────────────────────────────────────────────────────

// ParseNumber parses a raw measurement string.
// Empty, non-numeric, NaN and infinite inputs report ok=false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatNumber renders v in shortest round-trip form. Integral values keep a
// trailing ".0" so that floats stay distinguishable from integer columns.
// Very large or very small magnitudes use exponent notation.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
