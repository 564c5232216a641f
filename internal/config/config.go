// Package config handles loading and resolving dailywx configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. dailywx.yaml in the current working directory, or the --config file
//  3. environment: NOAA_TOKEN, then DAILYWX_* (DAILYWX_PIPELINE__WINDOWS -> pipeline.windows)
//  4. CLI flags that were explicitly set
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "dailywx.yaml"
	DefaultFormat     = "table"
	DefaultBaseURL    = "https://www.ncei.noaa.gov/cdo-web/api/v2/"
	DefaultStation    = "GHCND:USW00023174"
	DefaultTimeout    = 120 * time.Second
	DefaultRate       = 4.0
	DefaultRetries    = 5
	DefaultBackoff    = 2 * time.Second
	DefaultRawDir     = "data/raw"
	DefaultProcessed  = "data/processed/la_daily_cdo.csv"
	DefaultResultsDir = "results"
	DefaultCutoff     = 2.0

	EnvPrefix = "DAILYWX_"
	EnvToken  = "NOAA_TOKEN"
	EnvDBPath = "DAILYWX_DB_PATH"
)

// DefaultInputs are the raw CSV files clean reads from RawDir.
var DefaultInputs = []string{
	"cdo_hist_nov_2015_2024_daily.csv",
	"cdo_nov_dec_2024_daily.csv",
}

// Baseline selects the reference period for z-scores.
type Baseline struct {
	Month    int `koanf:"month" yaml:"month"`
	FromYear int `koanf:"from_year" yaml:"from_year"`
	ToYear   int `koanf:"to_year" yaml:"to_year"`
}

// Pipeline configures the clean stage.
type Pipeline struct {
	Windows    []int    `koanf:"windows" yaml:"windows"`
	RollFields []string `koanf:"roll_fields" yaml:"roll_fields"`
	Field      string   `koanf:"field" yaml:"field"`
	Baseline   Baseline `koanf:"baseline" yaml:"baseline"`
}

// Analysis configures the analyze stage.
type Analysis struct {
	Field       string  `koanf:"field" yaml:"field"`
	AuxField    string  `koanf:"aux_field" yaml:"aux_field"`
	TargetYear  int     `koanf:"target_year" yaml:"target_year"`
	TargetMonth int     `koanf:"target_month" yaml:"target_month"`
	Cutoff      float64 `koanf:"cutoff" yaml:"cutoff"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the file is only read during loading.
type Config struct {
	Token      string        `koanf:"token" yaml:"token"`
	BaseURL    string        `koanf:"base_url" yaml:"base_url"`
	Timeout    time.Duration `koanf:"timeout" yaml:"timeout"`
	Rate       float64       `koanf:"rate" yaml:"rate"`
	Retries    int           `koanf:"retries" yaml:"retries"`
	Backoff    time.Duration `koanf:"backoff" yaml:"backoff"`
	Station    string        `koanf:"station" yaml:"station"`
	Format     string        `koanf:"format" yaml:"format"`
	DBPath     string        `koanf:"db_path" yaml:"db_path"`
	RawDir     string        `koanf:"raw_dir" yaml:"raw_dir"`
	Inputs     []string      `koanf:"inputs" yaml:"inputs"`
	Processed  string        `koanf:"processed" yaml:"processed"`
	ResultsDir string        `koanf:"results_dir" yaml:"results_dir"`
	Pipeline   Pipeline      `koanf:"pipeline" yaml:"pipeline"`
	Analysis   Analysis      `koanf:"analysis" yaml:"analysis"`

	// path of the config file that was loaded (empty if none found)
	ConfigPath string `koanf:"-" yaml:"-"`
}

// flagKeys maps CLI flag names onto config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"token":       "token",
	"base-url":    "base_url",
	"station":     "station",
	"format":      "format",
	"db":          "db_path",
	"raw-dir":     "raw_dir",
	"processed":   "processed",
	"results-dir": "results_dir",
	"rate":        "rate",
	"timeout":     "timeout",
	"cutoff":      "analysis.cutoff",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"base_url":                    DefaultBaseURL,
		"timeout":                     DefaultTimeout.String(),
		"rate":                        DefaultRate,
		"retries":                     DefaultRetries,
		"backoff":                     DefaultBackoff.String(),
		"station":                     DefaultStation,
		"format":                      DefaultFormat,
		"raw_dir":                     DefaultRawDir,
		"inputs":                      DefaultInputs,
		"processed":                   DefaultProcessed,
		"results_dir":                 DefaultResultsDir,
		"pipeline.windows":            []int{7, 14},
		"pipeline.roll_fields":        []string{"temp_avg_c", "prcp_mm"},
		"pipeline.field":              "prcp_mm",
		"pipeline.baseline.month":     11,
		"pipeline.baseline.from_year": 2015,
		"pipeline.baseline.to_year":   2024,
		"analysis.field":              "prcp_mm",
		"analysis.aux_field":          "temp_avg_c",
		"analysis.target_year":        2024,
		"analysis.target_month":       11,
		"analysis.cutoff":             DefaultCutoff,
	}
}

// Load resolves configuration from all sources. cfgFile is the value of
// --config (empty to look for dailywx.yaml in the working directory); flags
// may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvToken); v != "" {
		if err := k.Load(confmap.Provider(map[string]interface{}{"token": v}, "."), nil); err != nil {
			return nil, fmt.Errorf("loading %s: %w", EnvToken, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigPath = path

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".dailywx", "dailywx.db")
		}
	}
	return &cfg, nil
}

// findConfigFile returns the config file to load. An explicit path must
// exist; the default file is optional.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return filepath.Abs(explicit)
	}
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// Validate returns an error if pipeline or analysis settings are unusable.
func (c *Config) Validate() error {
	var errs []error
	for _, w := range c.Pipeline.Windows {
		if w < 1 {
			errs = append(errs, fmt.Errorf("pipeline.windows: window must be >= 1, got %d", w))
		}
	}
	b := c.Pipeline.Baseline
	if b.Month < 1 || b.Month > 12 {
		errs = append(errs, fmt.Errorf("pipeline.baseline.month must be 1-12, got %d", b.Month))
	}
	if b.FromYear > b.ToYear {
		errs = append(errs, fmt.Errorf("pipeline.baseline: from_year %d is after to_year %d", b.FromYear, b.ToYear))
	}
	if c.Analysis.Cutoff <= 0 {
		errs = append(errs, fmt.Errorf("analysis.cutoff must be positive, got %g", c.Analysis.Cutoff))
	}
	if c.Rate <= 0 {
		errs = append(errs, fmt.Errorf("rate must be positive, got %g", c.Rate))
	}
	return errors.Join(errs...)
}

// ValidateToken returns an error if no CDO token is configured.
func (c *Config) ValidateToken() error {
	if c.Token == "" {
		return errors.New(
			"NOAA CDO token not found.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        dailywx --token YOUR_TOKEN ...\n" +
				"  2. Environment:     export NOAA_TOKEN=YOUR_TOKEN\n" +
				"  3. dailywx.yaml:    token: YOUR_TOKEN\n\n" +
				"Request a free token at https://www.ncdc.noaa.gov/cdo-web/token",
		)
	}
	return nil
}

// RedactedToken returns the token with most characters replaced by asterisks.
// Safe for logging and display.
func (c *Config) RedactedToken() string {
	if len(c.Token) <= 4 {
		return "****"
	}
	return c.Token[:2] + "****" + c.Token[len(c.Token)-2:]
}

// Template returns a Config populated with the built-in defaults, suitable
// for writing an initial dailywx.yaml via `dailywx config init`.
func Template() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		Rate:       DefaultRate,
		Retries:    DefaultRetries,
		Backoff:    DefaultBackoff,
		Station:    DefaultStation,
		Format:     DefaultFormat,
		RawDir:     DefaultRawDir,
		Inputs:     append([]string(nil), DefaultInputs...),
		Processed:  DefaultProcessed,
		ResultsDir: DefaultResultsDir,
		Pipeline: Pipeline{
			Windows:    []int{7, 14},
			RollFields: []string{"temp_avg_c", "prcp_mm"},
			Field:      "prcp_mm",
			Baseline:   Baseline{Month: 11, FromYear: 2015, ToYear: 2024},
		},
		Analysis: Analysis{
			Field:       "prcp_mm",
			AuxField:    "temp_avg_c",
			TargetYear:  2024,
			TargetMonth: 11,
			Cutoff:      DefaultCutoff,
		},
	}
}

// WriteFile serialises cfg as YAML to the given path.
func WriteFile(path string, cfg Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
