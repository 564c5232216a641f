package util_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/dailywx/internal/util"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-11-05", "2024-11-05", true},
		{" 2024-1-5 ", "2024-01-05", true},
		{"2024-02-29", "2024-02-29", true},
		{"2023-02-29", "", false},
		{"2024-11-05T00:00:00", "", false},
		{"2024/11/05", "", false},
		{"", "", false},
		{"garbage", "", false},
	}
	for _, tt := range tests {
		got, ok := util.NormalizeDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeDate(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := util.ParseDate("2024-11-30")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if util.FormatDate(d) != "2024-11-30" {
		t.Errorf("round trip = %s", util.FormatDate(d))
	}
	if _, err := util.ParseDate("2024-11-31"); err == nil {
		t.Error("expected error for impossible date")
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		year        int
		month       time.Month
		first, last string
	}{
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2023, time.February, "2023-02-01", "2023-02-28"},
		{2024, time.November, "2024-11-01", "2024-11-30"},
		{2024, time.December, "2024-12-01", "2024-12-31"},
	}
	for _, tt := range tests {
		first, last := util.MonthBounds(tt.year, tt.month)
		if first != tt.first || last != tt.last {
			t.Errorf("MonthBounds(%d, %v) = %s..%s, want %s..%s", tt.year, tt.month, first, last, tt.first, tt.last)
		}
	}
}

func TestMonthAbbrev(t *testing.T) {
	if got := util.MonthAbbrev(11); got != "nov" {
		t.Errorf("MonthAbbrev(11) = %q", got)
	}
	if got := util.MonthAbbrev(13); got != "m13" {
		t.Errorf("MonthAbbrev(13) = %q", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{" -3.5 ", -3.5, true},
		{"1e2", 100, true},
		{"", 0, false},
		{"T", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := util.ParseNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{5, "5.0"},
		{-2, "-2.0"},
		{1.2, "1.2"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e20, "1e+20"},
		{0.00001, "1e-05"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := util.FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	if m.Err() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	sentinel := errors.New("boom")
	m.Add(nil)
	m.Add(errors.New("first"))
	m.Add(sentinel)
	err := m.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "first; boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the collected error")
	}
}
