package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/store"
)

var (
	cleanInputs  []string
	cleanRawKeys []string
	cleanWindows []int
	cleanStore   bool
	cleanName    string
	cleanNoWrite bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Merge raw daily CSVs into the processed daily table",
	Long: `Clean reads one or more raw daily CSV files, merges them by date (later
inputs win for the same date and column), converts units, adds rolling means
and the baseline z-score, and writes the processed daily table.

By default it reads the files listed under 'inputs' in dailywx.yaml from the
raw directory. Raw pulls saved with 'fetch --store' can be merged instead with
--raw-key (see 'dailywx store list').`,
	Example: `  dailywx clean
  dailywx clean --input data/raw/cdo_hist_nov_2015_2024_daily.csv --input data/raw/cdo_nov_dec_2024_daily.csv
  dailywx clean --window 3 --window 30 --processed /tmp/daily.csv
  dailywx clean --raw-key "station:GHCND:USW00023174|start:2024-11-01|end:2024-12-31" --store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		p := deps.Pipeline()
		if cmd.Flags().Changed("window") {
			p.Options.Windows = cleanWindows
		}
		out := deps.Config.Processed
		if cleanNoWrite {
			out = ""
		}

		var (
			t      *model.Table
			inputs []string
		)
		if len(cleanRawKeys) > 0 {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			var sets [][]model.RawRecord
			for _, key := range cleanRawKeys {
				entry, ok, err := deps.Store.GetRaw(key)
				if err != nil {
					return fmt.Errorf("reading raw entry: %w", err)
				}
				if !ok {
					return fmt.Errorf("raw entry not found: %s", key)
				}
				sets = append(sets, entry.Records)
			}
			inputs = cleanRawKeys
			if t, err = p.Build(sets...); err != nil {
				return err
			}
			if out != "" {
				if err := pipeline.WriteDaily(out, t); err != nil {
					return err
				}
				deps.Metrics.AddRows(t.Len())
			}
		} else {
			inputs = cleanInputs
			if len(inputs) == 0 {
				for _, name := range deps.Config.Inputs {
					inputs = append(inputs, filepath.Join(deps.Config.RawDir, name))
				}
			}
			if t, err = p.Clean(out, inputs...); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		first, last := "", ""
		if t.Len() > 0 {
			first, last = t.Records[0].Date, t.Records[t.Len()-1].Date
		}
		say(w, "✓ Cleaned %d days from %d input(s)  %s .. %s\n", t.Len(), len(inputs), first, last)
		if out != "" {
			say(w, "  %s (%d columns)\n", out, len(t.Header()))
		}

		if !cleanStore {
			return nil
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		run := store.Run{
			ID:     store.NewRunID(),
			Kind:   "clean",
			Name:   cleanName,
			Inputs: inputs,
			Days:   t.Len(),
			Params: cleanParams(p.Options.Windows, p.Options.RollFields, p.Options.BaselineField, p.Options.Baseline.Label()),
		}
		if out != "" {
			run.Outputs = []string{out}
		}
		if err := deps.Store.PutTable(run.ID, t); err != nil {
			return fmt.Errorf("storing table: %w", err)
		}
		if run, err = deps.Store.PutRun(run); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		say(w, "  stored as run %s\n", run.ID)
		return nil
	},
}

// cleanParams records the pipeline settings a stored run was built with.
func cleanParams(windows []int, fields []string, field, period string) map[string]string {
	ws := make([]string, len(windows))
	for i, w := range windows {
		ws[i] = strconv.Itoa(w)
	}
	return map[string]string{
		"windows":        strings.Join(ws, ","),
		"roll_fields":    strings.Join(fields, ","),
		"baseline_field": field,
		"baseline":       period,
	}
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	f := cleanCmd.Flags()
	f.StringArrayVar(&cleanInputs, "input", nil, "raw daily CSV to merge (repeatable, in precedence order)")
	f.StringArrayVar(&cleanRawKeys, "raw-key", nil, "stored raw entry to merge instead of files (repeatable)")
	f.IntSliceVar(&cleanWindows, "window", nil, "rolling window in days (repeatable; default 7,14)")
	f.String("raw-dir", "", "directory holding the configured inputs (default: data/raw)")
	f.String("processed", "", "processed daily CSV to write (default: data/processed/la_daily_cdo.csv)")
	f.BoolVar(&cleanNoWrite, "no-write", false, "build the table without writing the processed CSV")
	f.BoolVar(&cleanStore, "store", false, "save the table and a run entry to the local database")
	f.StringVar(&cleanName, "name", "", "label for the stored run")
}
