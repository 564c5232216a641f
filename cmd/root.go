// Package cmd implements the dailywx CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/app"
	"github.com/derickschaefer/dailywx/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Flags that map onto config keys (--token, --format, --db, --station) are
// resolved through config.Load; the rest are read here directly.
var globalFlags struct {
	ConfigFile  string
	Token       string
	Station     string
	DB          string
	Format      string
	Out         string
	MetricsFile string
	Quiet       bool
	Verbose     bool
	Debug       bool
}

// activeDeps is the container built by the running command, kept so the
// post-run hook can flush its metrics.
var activeDeps *app.Deps

// rootCmd is the base command. Running `dailywx` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "dailywx",
	Short: "Daily weather ETL and anomaly analysis for NOAA CDO data",
	Long: `dailywx fetches daily station observations from the NOAA Climate Data
Online (CDO) v2 API, cleans them into a daily table with derived metric
columns, rolling means and baseline z-scores, and reports the days whose
z-score crosses a threshold.

Data sourced from NOAA NCEI Climate Data Online;
https://www.ncei.noaa.gov/cdo-web/

Request a free token at: https://www.ncdc.noaa.gov/cdo-web/token

Quick start:
  dailywx config init          # create a dailywx.yaml
  dailywx fetch history        # November 2015-2024 for the default station
  dailywx fetch range          # 2024-11-01 .. 2024-12-31
  dailywx clean                # raw CSVs -> data/processed/la_daily_cdo.csv
  dailywx analyze              # report files under results/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), globalFlags.Debug, globalFlags.Verbose, globalFlags.Quiet))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return flushMetrics()
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config (defaults, file, env, then the command's
// explicitly set flags) and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps(cmd *cobra.Command) (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	deps := app.New(cfg)
	activeDeps = deps
	return deps, nil
}

// newLogger returns a text logger on w. --debug wins over --quiet, which
// wins over --verbose; the default shows warnings and errors only.
func newLogger(w io.Writer, debug, verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// flushMetrics writes the active registry to --metrics-file, if set.
func flushMetrics() error {
	if globalFlags.MetricsFile == "" || activeDeps == nil {
		return nil
	}
	if err := activeDeps.Metrics.WriteTextfile(globalFlags.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	slog.Debug("wrote metrics", "path", globalFlags.MetricsFile)
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.ConfigFile, "config", "",
		"config file (default: ./dailywx.yaml if present)")
	pf.StringVar(&globalFlags.Token, "token", "",
		"NOAA CDO token (overrides env NOAA_TOKEN and dailywx.yaml)")
	pf.StringVar(&globalFlags.Station, "station", "",
		"GHCND station ID (default: GHCND:USW00023174, Los Angeles Intl)")
	pf.StringVar(&globalFlags.DB, "db", "",
		"bbolt database path (default: ~/.dailywx/dailywx.db)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.MetricsFile, "metrics-file", "",
		"write Prometheus textfile metrics here when the command finishes")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"log pipeline stages and show timing after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses (token redacted)")
}
