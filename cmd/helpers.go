package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/app"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/render"
	"github.com/derickschaefer/dailywx/internal/util"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, or def otherwise. The
// returned close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// newResult wraps data in a Result envelope.
func newResult(command, kind string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// emit renders result to --out or the command's stdout and prints the
// warnings/timing footer on stderr.
func emit(cmd *cobra.Command, result *model.Result, format string) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeFn()
	if err := render.Render(w, result, format); err != nil {
		return err
	}
	render.PrintFooter(cmd.ErrOrStderr(), result, globalFlags.Verbose)
	return nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTableTo renders a two-column key/value list to w using aligned columns.
func printKVTableTo(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

// openStore builds deps for cmd and opens the local database. Callers
// defer deps.Close.
func openStore(cmd *cobra.Command) (*app.Deps, error) {
	deps, err := buildDeps(cmd)
	if err != nil {
		return nil, err
	}
	if err := deps.RequireStore(); err != nil {
		return nil, err
	}
	return deps, nil
}

// loadTable reads the daily table from a stored run when runID is set, from
// a JSONL stream on stdin when path is "-", or from the processed CSV at path
// otherwise. It returns the table and a description of where it came from.
func loadTable(cmd *cobra.Command, deps *app.Deps, path, runID string) (*model.Table, string, error) {
	if runID == "" && path == "-" {
		t, err := pipeline.ReadJSONL(cmd.InOrStdin())
		if err != nil {
			return nil, "", err
		}
		return t, "stdin", nil
	}
	if runID == "" {
		t, err := pipeline.ReadDaily(path)
		if err != nil {
			return nil, "", err
		}
		return t, path, nil
	}
	if err := deps.RequireStore(); err != nil {
		return nil, "", err
	}
	run, err := deps.Store.FindRun(runID)
	if err != nil {
		return nil, "", err
	}
	t, ok, err := deps.Store.GetTable(run.ID)
	if err != nil {
		return nil, "", fmt.Errorf("reading table for run %s: %w", run.ID, err)
	}
	if !ok {
		return nil, "", fmt.Errorf("run %s has no stored table (only clean runs saved with --store do)", run.ID)
	}
	return t, "run " + run.ID, nil
}

// rangeName builds the raw file stem for a fetched date range:
// cdo_nov_dec_2024 for whole months within one year, cdo_<start>_<end>
// otherwise.
func rangeName(start, end string) string {
	s, err1 := util.ParseDate(start)
	e, err2 := util.ParseDate(end)
	if err1 != nil || err2 != nil || e.Before(s) || s.Year() != e.Year() || s.Day() != 1 {
		return "cdo_" + start + "_" + end
	}
	if _, last := util.MonthBounds(e.Year(), e.Month()); last != util.FormatDate(e) {
		return "cdo_" + start + "_" + end
	}
	var months []string
	for m := s.Month(); m <= e.Month(); m++ {
		months = append(months, util.MonthAbbrev(int(m)))
	}
	return fmt.Sprintf("cdo_%s_%d", strings.Join(months, "_"), s.Year())
}

// historyName builds the raw file stem for a month-across-years pull, e.g.
// cdo_hist_nov_2015_2024.
func historyName(month, fromYear, toYear int) string {
	return fmt.Sprintf("cdo_hist_%s_%d_%d", util.MonthAbbrev(month), fromYear, toYear)
}

// say prints a progress line unless --quiet is set.
func say(w io.Writer, format string, args ...interface{}) {
	if globalFlags.Quiet {
		return
	}
	fmt.Fprintf(w, format, args...)
}
