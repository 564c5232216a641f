// Package baseline computes a seasonal mean/standard-deviation baseline over
// a historical period and standardizes every daily value against it.
package baseline

import (
	"fmt"
	"math"
	"strings"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/util"
)

// Period selects the baseline records: calendar month Month in every year
// from FromYear through ToYear inclusive.
type Period struct {
	Month    int `json:"month"`
	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`
}

// Contains reports whether a record dated year/month falls in the period.
func (p Period) Contains(year, month int) bool {
	return month == p.Month && year >= p.FromYear && year <= p.ToYear
}

// Validate rejects impossible periods.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("baseline month must be 1-12, got %d", p.Month)
	}
	if p.FromYear > p.ToYear {
		return fmt.Errorf("baseline from-year %d is after to-year %d", p.FromYear, p.ToYear)
	}
	return nil
}

// Label renders the period as "Nov 2015-2024".
func (p Period) Label() string {
	name := util.MonthAbbrev(p.Month)
	name = strings.ToUpper(name[:1]) + name[1:]
	if p.FromYear == p.ToYear {
		return fmt.Sprintf("%s %d", name, p.FromYear)
	}
	return fmt.Sprintf("%s %d-%d", name, p.FromYear, p.ToYear)
}

// Stats is the baseline of one field. Mean and Std are both null when no
// baseline values were found.
type Stats struct {
	N    int         `json:"n"`
	Mean model.Value `json:"mean"`
	Std  model.Value `json:"std"`
}

// ColumnName is the default z-score column for field and month:
// ("prcp_mm", 11) → "prcp_z_nov".
func ColumnName(field string, month int) string {
	prefix := field
	if i := strings.Index(field, "_"); i > 0 {
		prefix = field[:i]
	}
	return prefix + "_z_" + util.MonthAbbrev(month)
}

// Compute collects the non-null values of field from records inside p and
// returns their mean and population standard deviation.
func Compute(t *model.Table, field string, p Period) (Stats, error) {
	if !t.Derived {
		return Stats{}, fmt.Errorf("baseline %s: features have not been derived", field)
	}
	get, err := t.Getter(field)
	if err != nil {
		return Stats{}, fmt.Errorf("baseline %s: %w", field, err)
	}
	var xs []float64
	for i := range t.Records {
		r := &t.Records[i]
		if !p.Contains(r.Year, r.Month) {
			continue
		}
		if v, ok := get(r).Get(); ok {
			xs = append(xs, v)
		}
	}
	st := Stats{N: len(xs)}
	if len(xs) == 0 {
		return st, nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	st.Mean = model.Some(m)
	st.Std = model.Some(math.Sqrt(sq / float64(len(xs))))
	return st, nil
}

// Score computes the baseline for field over p and writes
// z = (x - mean) / std into column name for every record. The z-score is
// null when x is null, the baseline is empty, or std is zero.
func Score(t *model.Table, field string, p Period, name string) (Stats, error) {
	st, err := Compute(t, field, p)
	if err != nil {
		return st, err
	}
	if name == "" {
		name = ColumnName(field, p.Month)
	}
	src, err := t.Column(field)
	if err != nil {
		return st, err
	}
	z := make([]model.Value, len(src))
	mean, hasMean := st.Mean.Get()
	std, hasStd := st.Std.Get()
	for i, v := range src {
		x, ok := v.Get()
		if !ok || !hasMean || !hasStd || std == 0 {
			continue
		}
		z[i] = model.Some((x - mean) / std)
	}
	if err := t.SetColumn(name, z); err != nil {
		return st, fmt.Errorf("baseline %s: %w", field, err)
	}
	return st, nil
}
