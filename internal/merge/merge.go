// Package merge combines raw per-observation record sets into one dense
// daily table keyed by calendar date.
//
// Rules:
//   - dates are normalized to YYYY-MM-DD; records with a missing or
//     unparsable date are dropped
//   - for each recognized measurement code, a value that parses as a finite
//     number overwrites the current value for that date (later sets and later
//     records win); unparsable or empty values never overwrite
//   - unrecognized fields are ignored
//   - output holds one record per distinct date, sorted ascending
package merge

import (
	"sort"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/tabular"
	"github.com/derickschaefer/dailywx/internal/util"
)

// Stats counts what a merge consumed. It is informational only.
type Stats struct {
	Records int `json:"records"`
	Dropped int `json:"dropped"`
	Values  int `json:"values"`
	Days    int `json:"days"`
}

// FromRows converts decoded tabular rows into raw records. The "date"
// column becomes the record date; every other column becomes a field.
func FromRows(rows []tabular.Row) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(rows))
	for _, row := range rows {
		var rec model.RawRecord
		for _, c := range row {
			if c.Name == model.FieldDate {
				rec.Date = c.Value
				continue
			}
			rec.Fields = append(rec.Fields, model.RawField{Name: c.Name, Value: c.Value})
		}
		out = append(out, rec)
	}
	return out
}

// Merge folds every record set, in order, into a new daily table.
func Merge(sets ...[]model.RawRecord) (*model.Table, Stats) {
	var st Stats
	t := &model.Table{}
	byDate := make(map[string]*model.DailyRecord)
	var order []*model.DailyRecord

	for _, set := range sets {
		for _, rec := range set {
			st.Records++
			date, ok := util.NormalizeDate(rec.Date)
			if !ok {
				st.Dropped++
				continue
			}
			day, seen := byDate[date]
			if !seen {
				day = &model.DailyRecord{Date: date}
				byDate[date] = day
				order = append(order, day)
			}
			for _, f := range rec.Fields {
				code, ok := model.ParseCode(f.Name)
				if !ok {
					continue
				}
				v, ok := util.ParseNumber(f.Value)
				if !ok {
					continue
				}
				day.SetRaw(code, model.Some(v))
				t.NoteRaw(code)
				st.Values++
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Date < order[j].Date })
	t.Records = make([]model.DailyRecord, len(order))
	for i, d := range order {
		t.Records[i] = *d
	}
	st.Days = len(t.Records)
	return t, st
}
