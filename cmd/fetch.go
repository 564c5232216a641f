package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/app"
	"github.com/derickschaefer/dailywx/internal/cdo"
	"github.com/derickschaefer/dailywx/internal/store"
	"github.com/derickschaefer/dailywx/internal/util"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull daily observations from the NOAA CDO API",
	Long: `Fetch daily GHCND observations (TMAX, TMIN, PRCP, AWND) for one station
and write them under the raw directory as two files:

  <name>.json        the observations exactly as returned by the API
  <name>_daily.csv   one row per day: date followed by each data type

  fetch history   one calendar month across a range of years (the baseline)
  fetch range     every day between two dates (the target period)

Use --store to also keep the pivoted records in the local database.`,
}

var (
	fetchStore bool
	fetchName  string
	fetchMonth int
	fetchFrom  int
	fetchTo    int
	fetchStart string
	fetchEnd   string
)

// ─── fetch history ────────────────────────────────────────────────────────────

var fetchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Fetch one calendar month for every year in a range",
	Example: `  dailywx fetch history
  dailywx fetch history --month 12 --from-year 2000 --to-year 2024
  dailywx fetch history --station GHCND:USW00094728 --store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.Config.ValidateToken(); err != nil {
			return err
		}

		station := deps.Config.Station
		obs, err := deps.Client.MonthAcrossYears(cmd.Context(), station, fetchFrom, fetchTo, fetchMonth)
		if err != nil {
			return err
		}
		name := fetchName
		if name == "" {
			name = historyName(fetchMonth, fetchFrom, fetchTo)
		}
		first, _ := util.MonthBounds(fetchFrom, time.Month(fetchMonth))
		_, last := util.MonthBounds(fetchTo, time.Month(fetchMonth))
		return saveFetch(cmd, deps, obs, name, station, first, last)
	},
}

// ─── fetch range ──────────────────────────────────────────────────────────────

var fetchRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Fetch every day between two dates",
	Example: `  dailywx fetch range
  dailywx fetch range --start 2025-01-01 --end 2025-01-31 --name cdo_jan_2025`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.Config.ValidateToken(); err != nil {
			return err
		}

		station := deps.Config.Station
		obs, err := deps.Client.Range(cmd.Context(), station, fetchStart, fetchEnd)
		if err != nil {
			return err
		}
		name := fetchName
		if name == "" {
			name = rangeName(fetchStart, fetchEnd)
		}
		return saveFetch(cmd, deps, obs, name, station, fetchStart, fetchEnd)
	},
}

// saveFetch writes the raw JSON and daily CSV for obs and, with --store,
// records the pivoted days and a fetch run in the local database.
func saveFetch(cmd *cobra.Command, deps *app.Deps, obs []cdo.Observation, name, station, start, end string) error {
	began := time.Now()
	dir := deps.Config.RawDir
	jsonPath := filepath.Join(dir, name+".json")
	csvPath := filepath.Join(dir, name+"_daily.csv")

	if err := cdo.WriteJSON(jsonPath, obs); err != nil {
		return err
	}
	days, err := cdo.WriteDailyCSV(csvPath, obs)
	if err != nil {
		return err
	}
	deps.Metrics.AddRows(days)

	var runID string
	if fetchStore {
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		key := store.RawKey(station, start, end)
		if err := deps.Store.PutRaw(key, station, cdo.ToRawRecords(obs)); err != nil {
			return fmt.Errorf("storing raw records: %w", err)
		}
		run, err := deps.Store.PutRun(store.Run{
			Kind:    "fetch",
			Name:    name,
			Outputs: []string{jsonPath, csvPath},
			Days:    days,
			Params:  map[string]string{"station": station, "start": start, "end": end, "key": key},
		})
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		runID = run.ID
	}

	w := cmd.OutOrStdout()
	say(w, "✓ Fetched %d observations (%d days) for %s  %s .. %s\n", len(obs), days, station, start, end)
	say(w, "  %s\n  %s\n", jsonPath, csvPath)
	if runID != "" {
		say(w, "  stored as run %s\n", runID)
	}
	if globalFlags.Verbose {
		say(cmd.ErrOrStderr(), "\n[%d observations • %dms]\n", len(obs), time.Since(began).Milliseconds())
	}
	return nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchHistoryCmd)
	fetchCmd.AddCommand(fetchRangeCmd)

	for _, c := range []*cobra.Command{fetchHistoryCmd, fetchRangeCmd} {
		c.Flags().BoolVar(&fetchStore, "store", false, "also save the pivoted records and a run entry to the local database")
		c.Flags().StringVar(&fetchName, "name", "", "file stem for the outputs (default derived from the dates)")
		c.Flags().String("raw-dir", "", "directory for the raw files (default: data/raw)")
	}

	fetchHistoryCmd.Flags().IntVar(&fetchMonth, "month", 11, "calendar month to pull (1-12)")
	fetchHistoryCmd.Flags().IntVar(&fetchFrom, "from-year", 2015, "first year")
	fetchHistoryCmd.Flags().IntVar(&fetchTo, "to-year", 2024, "last year")

	fetchRangeCmd.Flags().StringVar(&fetchStart, "start", "2024-11-01", "first day (YYYY-MM-DD)")
	fetchRangeCmd.Flags().StringVar(&fetchEnd, "end", "2024-12-31", "last day (YYYY-MM-DD)")
}
