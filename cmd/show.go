package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/render"
)

var showFlags struct {
	Input   string
	Run     string
	Year    int
	Month   int
	Start   string
	End     string
	Columns []string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the daily table, optionally filtered by date",
	Long: `Show prints the processed daily table (or a stored clean run) in any
output format. When stdout is a pipe and no --format or --columns is given,
the table is written as JSONL so it can be fed to chart or analyze with
--input -.`,
	Example: `  dailywx show --year 2024 --month 11
  dailywx show --columns date,prcp_mm,prcp_z_nov --format csv
  dailywx show --run 3f2a | dailywx chart prcp_mm --input -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		input := showFlags.Input
		if input == "" {
			input = deps.Config.Processed
		}
		t, _, err := loadTable(cmd, deps, input, showFlags.Run)
		if err != nil {
			return err
		}

		sel := analyze.Selector{
			Year:  showFlags.Year,
			Month: showFlags.Month,
			Start: showFlags.Start,
			End:   showFlags.End,
		}
		if !sel.IsZero() {
			t = selectTable(t, sel)
		}

		format := resolveFormat(deps.Config.Format)
		if format == render.FormatTable && globalFlags.Format == "" && globalFlags.Out == "" &&
			len(showFlags.Columns) == 0 && !pipeline.IsTTY() {
			return pipeline.WriteJSONL(cmd.OutOrStdout(), t)
		}
		var data interface{} = t
		if len(showFlags.Columns) > 0 {
			g, err := projectTable(t, showFlags.Columns)
			if err != nil {
				return err
			}
			data = g
		}
		result := newResult("show", model.KindDaily, data, t.Len(), start)
		if t.Len() == 0 {
			result.Warnings = append(result.Warnings, "no days match the selection")
		}
		return emit(cmd, result, format)
	},
}

// selectTable returns a copy of t holding only the records matching sel.
func selectTable(t *model.Table, sel analyze.Selector) *model.Table {
	out := *t
	out.Records = analyze.Select(t.Records, sel)
	return &out
}

// projectTable renders the named columns of t as a grid.
func projectTable(t *model.Table, columns []string) (*model.Grid, error) {
	for _, c := range columns {
		if !model.IsBuiltin(c) && !t.HasColumn(c) {
			return nil, fmt.Errorf("unknown column %q", c)
		}
	}
	g := &model.Grid{Columns: columns, Cells: make([][]string, t.Len())}
	for i := range t.Records {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = t.Cell(i, c)
		}
		g.Cells[i] = row
	}
	return g, nil
}

func init() {
	rootCmd.AddCommand(showCmd)

	f := showCmd.Flags()
	f.StringVar(&showFlags.Input, "input", "", "daily table CSV, or - for JSONL on stdin (default: processed path)")
	f.StringVar(&showFlags.Run, "run", "", "read the table from a stored clean run (ID or unique prefix)")
	f.IntVar(&showFlags.Year, "year", 0, "only days in this year")
	f.IntVar(&showFlags.Month, "month", 0, "only days in this month (1-12)")
	f.StringVar(&showFlags.Start, "start", "", "first day (YYYY-MM-DD)")
	f.StringVar(&showFlags.End, "end", "", "last day (YYYY-MM-DD)")
	f.StringSliceVar(&showFlags.Columns, "columns", nil, "comma-separated columns to print (default: all)")
}
