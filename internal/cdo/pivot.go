package cdo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/tabular"
)

// ToRawRecords pivots observations into one raw record per day, keyed by
// the first ten characters of the observation timestamp. Data types keep
// their first-seen order within a day and a later observation of the same
// type replaces the earlier value. Observations without a date or type are
// skipped. Records are sorted by date.
func ToRawRecords(obs []Observation) []model.RawRecord {
	byDate := make(map[string]*model.RawRecord)
	var order []*model.RawRecord
	for _, o := range obs {
		if len(o.Date) < 10 || o.DataType == "" {
			continue
		}
		date := o.Date[:10]
		rec, ok := byDate[date]
		if !ok {
			rec = &model.RawRecord{Date: date}
			byDate[date] = rec
			order = append(order, rec)
		}
		val := strconv.FormatFloat(o.Value, 'f', -1, 64)
		replaced := false
		for i := range rec.Fields {
			if rec.Fields[i].Name == o.DataType {
				rec.Fields[i].Value = val
				replaced = true
				break
			}
		}
		if !replaced {
			rec.Fields = append(rec.Fields, model.RawField{Name: o.DataType, Value: val})
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Date < order[j].Date })
	out := make([]model.RawRecord, len(order))
	for i, r := range order {
		out[i] = *r
	}
	return out
}

// Grid lays raw records out as a CSV grid: "date" followed by every field
// name in first-seen order. Missing fields are "".
func Grid(records []model.RawRecord) ([]string, [][]string) {
	header := []string{model.FieldDate}
	index := map[string]int{}
	for _, r := range records {
		for _, f := range r.Fields {
			if _, ok := index[f.Name]; !ok {
				index[f.Name] = len(header)
				header = append(header, f.Name)
			}
		}
	}
	cells := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(header))
		row[0] = r.Date
		for _, f := range r.Fields {
			row[index[f.Name]] = f.Value
		}
		cells[i] = row
	}
	return header, cells
}

// WriteDailyCSV writes the pivoted records of obs to path and returns the
// number of days written.
func WriteDailyCSV(path string, obs []Observation) (int, error) {
	records := ToRawRecords(obs)
	header, cells := Grid(records)
	if err := tabular.WriteGridFile(path, header, cells); err != nil {
		return 0, err
	}
	return len(records), nil
}

// WriteJSON writes the raw observations to path as indented JSON.
func WriteJSON(path string, obs []Observation) error {
	if obs == nil {
		obs = []Observation{}
	}
	b, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads observations written by WriteJSON.
func ReadJSON(path string) ([]Observation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var obs []Observation
	if err := json.Unmarshal(b, &obs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return obs, nil
}
