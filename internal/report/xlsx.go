package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/derickschaefer/dailywx/internal/model"
)

// Workbook sheet names.
const (
	SheetSummary   = "summary"
	SheetDaily     = "daily"
	SheetAnomalies = "anomalies"
)

// WriteXLSX writes the report as a workbook with summary, daily and
// anomalies sheets. Numeric cells are stored as numbers; nulls are left
// blank.
func (r *Report) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SheetSummary)
	if err := writeGridSheet(f, SheetSummary, r.SummaryGrid()); err != nil {
		return err
	}
	for _, s := range []struct {
		name string
		rows []Row
	}{
		{SheetDaily, r.Rows},
		{SheetAnomalies, r.Anomalies},
	} {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}
		if err := writeRowSheet(f, s.name, r.Header(), s.rows); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func writeGridSheet(f *excelize.File, sheet string, g *model.Grid) error {
	if err := setRow(f, sheet, 1, toCells(g.Columns)); err != nil {
		return err
	}
	for i, row := range g.Cells {
		if err := setRow(f, sheet, i+2, toCells(row)); err != nil {
			return err
		}
	}
	return nil
}

func writeRowSheet(f *excelize.File, sheet string, header []string, rows []Row) error {
	if err := setRow(f, sheet, 1, toCells(header)); err != nil {
		return err
	}
	for i, row := range rows {
		cells := []interface{}{row.Date, cellValue(row.Value), cellValue(row.Z), cellValue(row.Aux)}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
		return fmt.Errorf("writing %s!%s: %w", sheet, axis, err)
	}
	return nil
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func cellValue(v model.Value) interface{} {
	if f, ok := v.Get(); ok {
		return f
	}
	return nil
}
