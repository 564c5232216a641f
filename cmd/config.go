package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/config"
	"github.com/derickschaefer/dailywx/internal/render"
	"github.com/derickschaefer/dailywx/internal/util"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dailywx configuration",
	Long: `Read and write dailywx configuration stored in dailywx.yaml.

Settings resolve from lowest to highest precedence: built-in defaults,
dailywx.yaml, environment (NOAA_TOKEN, then DAILYWX_* with __ for nesting,
e.g. DAILYWX_ANALYSIS__CUTOFF=1.5), then command-line flags.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template dailywx.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if globalFlags.ConfigFile != "" {
			path = globalFlags.ConfigFile
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✓ Created %s\n", path)
		fmt.Fprintln(w, "  Edit it and set your token, or export NOAA_TOKEN.")
		fmt.Fprintln(w, "  Request a free token at: https://www.ncdc.noaa.gov/cdo-web/token")
		return nil
	},
}

var configGetShowSecrets bool

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.ConfigFile, cmd.Flags())
		if err != nil {
			return err
		}

		token := cfg.RedactedToken()
		if configGetShowSecrets {
			token = cfg.Token
		}
		if token == "" {
			token = "(not set)"
		}
		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		rows := configRows(cfg, token, src)
		w := cmd.OutOrStdout()
		if resolveFormat("") == render.FormatJSON {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printKVTableTo(w, rows)
		return nil
	},
}

// configRows flattens the resolved config into key/value rows.
func configRows(cfg *config.Config, token, src string) [][]string {
	pc, ac := cfg.Pipeline, cfg.Analysis
	windows := make([]string, len(pc.Windows))
	for i, w := range pc.Windows {
		windows[i] = strconv.Itoa(w)
	}
	return [][]string{
		{"token", token},
		{"base_url", cfg.BaseURL},
		{"station", cfg.Station},
		{"timeout", cfg.Timeout.String()},
		{"rate", fmt.Sprintf("%s req/s", util.FormatNumber(cfg.Rate))},
		{"retries", strconv.Itoa(cfg.Retries)},
		{"backoff", cfg.Backoff.String()},
		{"format", cfg.Format},
		{"db_path", cfg.DBPath},
		{"raw_dir", cfg.RawDir},
		{"inputs", strings.Join(cfg.Inputs, ", ")},
		{"processed", cfg.Processed},
		{"results_dir", cfg.ResultsDir},
		{"pipeline.windows", strings.Join(windows, ", ")},
		{"pipeline.roll_fields", strings.Join(pc.RollFields, ", ")},
		{"pipeline.field", pc.Field},
		{"pipeline.baseline", fmt.Sprintf("month %d, %d-%d", pc.Baseline.Month, pc.Baseline.FromYear, pc.Baseline.ToYear)},
		{"analysis.field", ac.Field},
		{"analysis.aux_field", ac.AuxField},
		{"analysis.target", fmt.Sprintf("%d-%02d", ac.TargetYear, ac.TargetMonth)},
		{"analysis.cutoff", util.FormatNumber(ac.Cutoff)},
		{"config_file", src},
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)

	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show the token in plain text")
}
