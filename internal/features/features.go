// Package features derives unit-converted and composite daily metrics from
// raw GHCND measurements stored in tenths of a unit.
package features

import (
	"fmt"
	"strconv"

	"github.com/derickschaefer/dailywx/internal/model"
)

// Derive populates the derived fields of every record in t and marks the
// table as derived.
//
//	tmax_c       = TMAX/10              null when TMAX is absent
//	tmin_c       = TMIN/10              null when TMIN is absent
//	temp_range_c = (TMAX-TMIN)/10       null unless both are present
//	temp_avg_c   = (TMAX+TMIN)/20       null unless both are present
//	prcp_mm      = PRCP/10              0.0 when PRCP is absent
//	awnd_ms      = AWND/10              null when AWND is absent
//	year, month  from the canonical date
//
// Records must carry canonical YYYY-MM-DD dates; Derive panics otherwise.
func Derive(t *model.Table) {
	for i := range t.Records {
		deriveOne(&t.Records[i])
	}
	t.Derived = true
}

func deriveOne(r *model.DailyRecord) {
	tmax, hasMax := r.TMAX.Get()
	tmin, hasMin := r.TMIN.Get()

	r.TmaxC = model.Null
	if hasMax {
		r.TmaxC = model.Some(tmax / 10.0)
	}
	r.TminC = model.Null
	if hasMin {
		r.TminC = model.Some(tmin / 10.0)
	}

	r.TempRangeC, r.TempAvgC = model.Null, model.Null
	if hasMax && hasMin {
		r.TempRangeC = model.Some((tmax - tmin) / 10.0)
		r.TempAvgC = model.Some((tmax + tmin) / 20.0)
	}

	// No precipitation record means no rain, not unknown.
	r.PrcpMM = model.Some(0.0)
	if p, ok := r.PRCP.Get(); ok {
		r.PrcpMM = model.Some(p / 10.0)
	}

	r.AwndMS = model.Null
	if w, ok := r.AWND.Get(); ok {
		r.AwndMS = model.Some(w / 10.0)
	}

	r.Year, r.Month = mustCalendar(r.Date)
}

// mustCalendar reads the year and month from a canonical date.
func mustCalendar(date string) (int, int) {
	if len(date) < 7 {
		panic(fmt.Sprintf("features: non-canonical date %q", date))
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		panic(fmt.Sprintf("features: non-canonical date %q: %v", date, err))
	}
	m, err := strconv.Atoi(date[5:7])
	if err != nil {
		panic(fmt.Sprintf("features: non-canonical date %q: %v", date, err))
	}
	return y, m
}
