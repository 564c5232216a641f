package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/app"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/report"
	"github.com/derickschaefer/dailywx/internal/store"
	"github.com/derickschaefer/dailywx/internal/util"
)

// reportFlags are shared by analyze and summary.
var reportFlags struct {
	Input     string
	Run       string
	Field     string
	Aux       string
	Year      int
	Month     int
	BaseMonth int
	BaseFrom  int
	BaseTo    int
}

var (
	analyzeXLSX  string
	analyzeStore bool
	analyzeName  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report the days whose baseline z-score crosses the cutoff",
	Long: `Analyze reads the processed daily table, summarizes the baseline period
and the target window, and lists the target days whose z-score is at or above
the cutoff. It writes three files into the results directory:

  <target>_daily.csv          every target day: date, field, z-score, aux field
  <target>_anomaly_days.csv   the same columns for anomalous days only
  analysis_summary.txt        the text summary printed below

The table comes from the processed CSV (default), a stored clean run (--run)
or a JSONL stream on stdin (--input -).`,
	Example: `  dailywx analyze
  dailywx analyze --year 2024 --month 12 --cutoff 1.5
  dailywx analyze --run 3f2a --xlsx results/report.xlsx
  dailywx clean --no-write --store && dailywx analyze --run <ID> --store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		pending, err := buildReport(cmd, deps)
		if err != nil {
			return err
		}
		began := time.Now()
		rep, paths, err := deps.Pipeline().Analyze(pending.table, pending.opts, deps.Config.ResultsDir)
		if err != nil {
			return err
		}
		if analyzeXLSX != "" {
			if err := rep.WriteXLSX(analyzeXLSX); err != nil {
				return err
			}
			paths = append(paths, analyzeXLSX)
		}

		w := cmd.OutOrStdout()
		if !globalFlags.Quiet {
			if err := rep.WriteText(w); err != nil {
				return err
			}
		}
		say(w, "\n✓ Report for %s from %s\n", rep.TargetLabel(), pending.source)
		for _, path := range paths {
			say(w, "  %s\n", path)
		}

		if analyzeStore {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			run, err := deps.Store.PutRun(store.Run{
				Kind:      "analyze",
				Name:      analyzeName,
				Inputs:    []string{pending.source},
				Outputs:   paths,
				Days:      len(rep.Rows),
				Anomalies: len(rep.Anomalies),
				Params: map[string]string{
					"field":    rep.Options.Field,
					"z_field":  rep.Options.ZField,
					"target":   rep.TargetLabel(),
					"baseline": rep.Options.Baseline.Label(),
					"cutoff":   util.FormatNumber(rep.Options.Cutoff),
				},
			})
			if err != nil {
				return fmt.Errorf("recording run: %w", err)
			}
			say(w, "  stored as run %s\n", run.ID)
		}
		if globalFlags.Verbose {
			say(cmd.ErrOrStderr(), "\n[%d rows • %d anomalies • %dms]\n",
				len(rep.Rows), len(rep.Anomalies), time.Since(began).Milliseconds())
		}
		return nil
	},
}

// ─── summary ──────────────────────────────────────────────────────────────────

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print baseline and target-window statistics as a table",
	Long: `Summary computes the same statistics as analyze (count, mean, std, total,
percentiles) for the baseline period and the target window as
section/key/value rows, without writing any files. Use --format for csv, json or markdown output.

  --view summary     section/key/value statistics (default)
  --view daily       every day of the target window with its value and z-score
  --view anomalies   only the days at or above the cutoff`,
	Example: `  dailywx summary
  dailywx summary --field temp_avg_c --month 12 --format md
  dailywx summary --view anomalies --cutoff 1.5
  dailywx summary --run 3f2a --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		pending, err := buildReport(cmd, deps)
		if err != nil {
			return err
		}
		rep, err := report.Build(pending.table, pending.opts)
		if err != nil {
			return err
		}

		grid, err := summaryView(rep, summaryViewName)
		if err != nil {
			return err
		}
		result := newResult("summary", model.KindSummary, grid, len(grid.Cells), start)
		if len(rep.Rows) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no days in %s; target statistics are empty", rep.TargetLabel()))
		}
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

var summaryViewName string

// summaryView picks the grid of rep that --view names.
func summaryView(rep *report.Report, view string) (*model.Grid, error) {
	switch view {
	case "", "summary":
		return rep.SummaryGrid(), nil
	case "daily":
		return rep.DailyGrid(), nil
	case "anomalies":
		return rep.AnomalyGrid(), nil
	}
	return nil, fmt.Errorf("unknown view %q (valid: summary, daily, anomalies)", view)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// pendingReport is a loaded table with the options to report on it.
type pendingReport struct {
	table  *model.Table
	source string
	opts   report.Options
}

// buildReport loads the table and resolves report options from config and
// the shared report flags. Flags win over config.
func buildReport(cmd *cobra.Command, deps *app.Deps) (*pendingReport, error) {
	input := reportFlags.Input
	if input == "" {
		input = deps.Config.Processed
	}
	t, source, err := loadTable(cmd, deps, input, reportFlags.Run)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded daily table", "source", source, "days", t.Len())

	opts := deps.ReportOptions()
	f := cmd.Flags()
	if f.Changed("field") {
		opts.Field = reportFlags.Field
	}
	if f.Changed("aux") {
		opts.AuxField = reportFlags.Aux
	}
	if f.Changed("year") {
		opts.Target.Year = reportFlags.Year
	}
	if f.Changed("month") {
		opts.Target.Month = reportFlags.Month
	}
	if f.Changed("baseline-month") {
		opts.Baseline.Month = reportFlags.BaseMonth
	}
	if f.Changed("baseline-from") {
		opts.Baseline.FromYear = reportFlags.BaseFrom
	}
	if f.Changed("baseline-to") {
		opts.Baseline.ToYear = reportFlags.BaseTo
	}
	if err := opts.Baseline.Validate(); err != nil {
		return nil, err
	}
	if opts.Target.IsZero() {
		return nil, fmt.Errorf("no target window: set --year and/or --month")
	}
	return &pendingReport{table: t, source: source, opts: opts}, nil
}

func addReportFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&reportFlags.Input, "input", "", "daily table CSV, or - for JSONL on stdin (default: processed path)")
	f.StringVar(&reportFlags.Run, "run", "", "read the table from a stored clean run (ID or unique prefix)")
	f.StringVar(&reportFlags.Field, "field", "", "column to report on (default: prcp_mm)")
	f.StringVar(&reportFlags.Aux, "aux", "", "auxiliary column shown alongside (default: temp_avg_c)")
	f.IntVar(&reportFlags.Year, "year", 0, "target year (default: 2024)")
	f.IntVar(&reportFlags.Month, "month", 0, "target month 1-12 (default: 11)")
	f.IntVar(&reportFlags.BaseMonth, "baseline-month", 0, "baseline month (default: 11)")
	f.IntVar(&reportFlags.BaseFrom, "baseline-from", 0, "first baseline year (default: 2015)")
	f.IntVar(&reportFlags.BaseTo, "baseline-to", 0, "last baseline year (default: 2024)")
	f.Float64("cutoff", report.DefaultCutoff, "anomaly z-score cutoff")
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(summaryCmd)

	addReportFlags(analyzeCmd)
	addReportFlags(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryViewName, "view", "summary", "what to print: summary|daily|anomalies")

	analyzeCmd.Flags().String("results-dir", "", "directory for the report files (default: results)")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the report as an Excel workbook")
	analyzeCmd.Flags().BoolVar(&analyzeStore, "store", false, "record the run in the local database")
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "label for the stored run")
}
