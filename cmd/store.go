package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/cdo"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/render"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect raw pulls accumulated in the local database",
	Long: `Commands for inspecting the raw CDO pulls saved with 'dailywx fetch --store'.

Use 'dailywx clean --raw-key <KEY>' to build a daily table from stored pulls.
Use 'dailywx cache stats' for bucket-level storage stats.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListStation string

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored raw pulls",
	Example: `  dailywx store list
  dailywx store list --station GHCND:USW00023174 --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		keys, err := deps.Store.ListRawKeys(storeListStation)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}

		format := resolveFormat(deps.Config.Format)
		if len(keys) == 0 && format == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No raw pulls in local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: dailywx fetch range --store")
			return nil
		}

		g := &model.Grid{Columns: []string{"key", "station", "days", "first", "last", "fetched"}}
		for _, k := range keys {
			entry, ok, err := deps.Store.GetRaw(k)
			if err != nil {
				return fmt.Errorf("reading %s: %w", k, err)
			}
			if !ok {
				continue
			}
			first, last := "", ""
			if n := len(entry.Records); n > 0 {
				first, last = entry.Records[0].Date, entry.Records[n-1].Date
			}
			g.Cells = append(g.Cells, []string{
				entry.Key,
				entry.Station,
				fmt.Sprintf("%d", len(entry.Records)),
				first,
				last,
				entry.FetchedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		if err := emit(cmd, newResult("store list", model.KindTable, g, len(g.Cells), start), format); err != nil {
			return err
		}
		if format == render.FormatTable {
			say(cmd.ErrOrStderr(), "\n%d raw pulls  •  %s\n", len(g.Cells), deps.Store.Path())
		}
		return nil
	},
}

// ─── store get ────────────────────────────────────────────────────────────────

var storeGetCmd = &cobra.Command{
	Use:   "get <KEY>",
	Short: "Print a stored raw pull as a daily grid",
	Long: `Print the pivoted records of one raw pull: date followed by every data
type, values as returned by the API (tenths of a unit for GHCND).

KEY is the full key shown by 'dailywx store list' or any unique substring of it,
for example the start date.`,
	Example: `  dailywx store get 2024-11-01
  dailywx store get "station:GHCND:USW00023174|start:2024-11-01|end:2024-12-31" --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		key, err := resolveRawKey(args[0], func() ([]string, error) { return deps.Store.ListRawKeys("") })
		if err != nil {
			return err
		}
		entry, ok, err := deps.Store.GetRaw(key)
		if err != nil {
			return fmt.Errorf("reading raw entry: %w", err)
		}
		if !ok {
			return fmt.Errorf("no stored raw pull for %s\n\n  Use: dailywx fetch range --store", key)
		}

		header, rows := cdo.Grid(entry.Records)
		g := &model.Grid{Columns: header, Cells: rows}
		return emit(cmd, newResult("store get", model.KindTable, g, len(rows), start), resolveFormat(deps.Config.Format))
	},
}

// resolveRawKey returns arg when it is a stored key, or the single stored key
// containing arg as a substring.
func resolveRawKey(arg string, list func() ([]string, error)) (string, error) {
	keys, err := list()
	if err != nil {
		return "", fmt.Errorf("reading store: %w", err)
	}
	var matches []string
	for _, k := range keys {
		if k == arg {
			return k, nil
		}
		if strings.Contains(k, arg) {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no stored raw pull matches %q", arg)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%q matches %d stored pulls; use the full key:\n  %s",
		arg, len(matches), strings.Join(matches, "\n  "))
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)

	storeListCmd.Flags().StringVar(&storeListStation, "station", "", "only pulls for this station")
}
