package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/render"
	"github.com/derickschaefer/dailywx/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List and inspect runs recorded with --store",
	Long: `Every fetch, clean or analyze invocation run with --store leaves a run
entry in the local database. Clean runs also keep the full daily table, which
analyze, chart and show can read back with --run <ID>.

  dailywx runs list
  dailywx runs show <ID>
  dailywx runs rm <ID>

IDs may be abbreviated to any unique prefix.`,
}

// ─── runs list ────────────────────────────────────────────────────────────────

var runsListKind string

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, oldest first",
	Example: `  dailywx runs list
  dailywx runs list --kind clean --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		runs, err := deps.Store.ListRuns()
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if runsListKind != "" {
			kept := runs[:0]
			for _, r := range runs {
				if r.Kind == runsListKind {
					kept = append(kept, r)
				}
			}
			runs = kept
		}

		format := resolveFormat(deps.Config.Format)
		if len(runs) == 0 && format == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use --store with fetch, clean or analyze to record one.")
			return nil
		}
		return emit(cmd, newResult("runs list", model.KindRuns, runsGrid(runs), len(runs), start), format)
	},
}

// runsGrid renders runs as one row each with a short ID.
func runsGrid(runs []store.Run) *model.Grid {
	g := &model.Grid{Columns: []string{"id", "kind", "name", "created", "days", "anomalies"}}
	for _, r := range runs {
		g.Cells = append(g.Cells, []string{
			shortID(r.ID),
			r.Kind,
			r.Name,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(r.Days),
			strconv.Itoa(r.Anomalies),
		})
	}
	return g
}

// shortID returns the first block of a UUID, enough to be a unique prefix in
// any realistic local store.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// ─── runs show ────────────────────────────────────────────────────────────────

var runsShowCmd = &cobra.Command{
	Use:     "show <ID>",
	Short:   "Show full details of a run",
	Example: `  dailywx runs show 3f2a9c1e`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		run, err := deps.Store.FindRun(args[0])
		if err != nil {
			return err
		}
		_, hasTable, err := deps.Store.GetTable(run.ID)
		if err != nil {
			return fmt.Errorf("reading table for run %s: %w", run.ID, err)
		}

		printSimpleTable(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, func(add func(...string)) {
			add("ID", run.ID)
			add("Kind", run.Kind)
			add("Name", run.Name)
			add("Created", run.CreatedAt.Format(time.RFC3339))
			add("Days", strconv.Itoa(run.Days))
			if run.Kind == "analyze" {
				add("Anomalies", strconv.Itoa(run.Anomalies))
			}
			add("Table", yesNo(hasTable))
			for _, in := range run.Inputs {
				add("Input", in)
			}
			for _, out := range run.Outputs {
				add("Output", out)
			}
			keys := make([]string, 0, len(run.Params))
			for k := range run.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(k, run.Params[k])
			}
		})
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ─── runs rm ──────────────────────────────────────────────────────────────────

var runsRmCmd = &cobra.Command{
	Use:     "rm <ID>",
	Aliases: []string{"delete"},
	Short:   "Delete a run and its stored table",
	Example: `  dailywx runs rm 3f2a9c1e`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		run, err := deps.Store.FindRun(args[0])
		if err != nil {
			return err
		}
		if err := deps.Store.DeleteRun(run.ID); err != nil {
			return fmt.Errorf("deleting run: %w", err)
		}
		say(cmd.OutOrStdout(), "✓ Deleted run %s  (%s %s)\n", run.ID, run.Kind, run.Name)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRmCmd)

	runsListCmd.Flags().StringVar(&runsListKind, "kind", "", "only runs of this kind: fetch|clean|analyze")
}
