package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/chart"
	"github.com/derickschaefer/dailywx/internal/model"
)

var chartFlags struct {
	Kind      string
	Input     string
	Run       string
	Year      int
	Month     int
	Start     string
	End       string
	Threshold float64
	Quantile  float64
	Width     int
	Height    int
	Title     string
	MaxBars   int
}

var chartCmd = &cobra.Command{
	Use:   "chart <column>",
	Short: "Render a daily column as an ASCII chart",
	Long: `Chart renders one column of the daily table in the terminal.

  --kind plot   multi-line chart with labeled axes (default)
  --kind bar    one horizontal bar per day; negative values extend left

Null days appear as gaps, never as zeros. Use --threshold to draw a dotted
reference line, e.g. the anomaly cutoff on a z-score column, or --quantile
to draw it at a quantile of the charted days (0.95 marks the wettest 5%). Width
auto-detects from $COLUMNS (falls back to 80).`,
	Example: `  dailywx chart prcp_mm --year 2024 --month 11
  dailywx chart prcp_z_nov --year 2024 --month 11 --threshold 2
  dailywx chart prcp_mm --start 2015-11-01 --end 2024-11-30 --quantile 0.95
  dailywx chart temp_avg_c_roll7 --start 2015-11-01 --end 2024-11-30 --height 16
  dailywx chart tmax_c --kind bar --year 2024 --month 12
  dailywx show --format jsonl | dailywx chart prcp_mm --input -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		input := chartFlags.Input
		if input == "" {
			input = deps.Config.Processed
		}
		t, _, err := loadTable(cmd, deps, input, chartFlags.Run)
		if err != nil {
			return err
		}

		column := args[0]
		sel := analyze.Selector{
			Year:  chartFlags.Year,
			Month: chartFlags.Month,
			Start: chartFlags.Start,
			End:   chartFlags.End,
		}
		pts, err := chart.Series(t, column, sel)
		if err != nil {
			return err
		}
		if len(pts) == 0 {
			return fmt.Errorf("no days match the selection")
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		switch strings.ToLower(chartFlags.Kind) {
		case "bar":
			return chart.Bar(w, column, pts, chart.BarOptions{
				Width:   chartFlags.Width,
				MaxBars: chartFlags.MaxBars,
			})
		case "plot", "":
			threshold, err := chartThreshold(cmd, pts)
			if err != nil {
				return err
			}
			return chart.Plot(w, column, pts, chart.PlotOptions{
				Width:     chartFlags.Width,
				Height:    chartFlags.Height,
				Title:     chartFlags.Title,
				Threshold: threshold,
			})
		}
		return fmt.Errorf("unknown chart kind %q (valid: plot, bar)", chartFlags.Kind)
	},
}

// chartThreshold resolves --threshold or --quantile into the reference
// line value, null when neither is set.
func chartThreshold(cmd *cobra.Command, pts []chart.Point) (model.Value, error) {
	byValue, byQuantile := cmd.Flags().Changed("threshold"), cmd.Flags().Changed("quantile")
	switch {
	case byValue && byQuantile:
		return model.Null, fmt.Errorf("--threshold and --quantile are mutually exclusive")
	case byValue:
		return model.Some(chartFlags.Threshold), nil
	case byQuantile:
		if q := chartFlags.Quantile; q < 0 || q > 1 {
			return model.Null, fmt.Errorf("--quantile must be between 0 and 1, got %v", q)
		}
		vals := make([]model.Value, len(pts))
		for i, p := range pts {
			vals[i] = p.Value
		}
		return analyze.Quantile(vals, chartFlags.Quantile), nil
	}
	return model.Null, nil
}

func init() {
	rootCmd.AddCommand(chartCmd)

	f := chartCmd.Flags()
	f.StringVar(&chartFlags.Kind, "kind", "plot", "chart kind: plot|bar")
	f.StringVar(&chartFlags.Input, "input", "", "daily table CSV, or - for JSONL on stdin (default: processed path)")
	f.StringVar(&chartFlags.Run, "run", "", "read the table from a stored clean run (ID or unique prefix)")
	f.IntVar(&chartFlags.Year, "year", 0, "only days in this year")
	f.IntVar(&chartFlags.Month, "month", 0, "only days in this month (1-12)")
	f.StringVar(&chartFlags.Start, "start", "", "first day (YYYY-MM-DD)")
	f.StringVar(&chartFlags.End, "end", "", "last day (YYYY-MM-DD)")
	f.Float64Var(&chartFlags.Threshold, "threshold", 0, "draw a dotted horizontal line at this value (plot only)")
	f.Float64Var(&chartFlags.Quantile, "quantile", 0, "draw the dotted line at this quantile (0-1) of the charted values (plot only)")
	f.IntVar(&chartFlags.Width, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	f.IntVar(&chartFlags.Height, "height", 12, "chart height in rows (plot only)")
	f.StringVar(&chartFlags.Title, "title", "", "chart title (default: column name)")
	f.IntVar(&chartFlags.MaxBars, "max-bars", 0,
		"maximum bars to render; takes the last N days (bar only, 0 = no limit)")
}
