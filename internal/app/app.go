// Package app wires together configuration, the CDO client, the local store
// and the metrics registry into a single Deps struct that commands receive
// at runtime.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/derickschaefer/dailywx/internal/analyze"
	"github.com/derickschaefer/dailywx/internal/baseline"
	"github.com/derickschaefer/dailywx/internal/cdo"
	"github.com/derickschaefer/dailywx/internal/config"
	"github.com/derickschaefer/dailywx/internal/metrics"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/report"
	"github.com/derickschaefer/dailywx/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is opened lazily by RequireStore so commands that never touch the
// database do not take its file lock.
type Deps struct {
	Config  *config.Config
	Client  *cdo.Client
	Store   *store.Store
	Metrics *metrics.Metrics
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	m := metrics.New()
	client := cdo.NewClient(cfg.Token, cdo.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Rate:    cfg.Rate,
		Retries: cfg.Retries,
		Backoff: cfg.Backoff,
		Metrics: m,
	})
	return &Deps{
		Config:  cfg,
		Client:  client,
		Metrics: m,
	}
}

// RequireStore opens the bbolt store at Config.DBPath on first use.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return errors.New("no database path configured (set db_path or DAILYWX_DB_PATH)")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	d.Store = s
	return nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

// Pipeline builds a pipeline from the configured windows, roll fields and
// baseline period. Unset settings keep the pipeline defaults.
func (d *Deps) Pipeline() *pipeline.Pipeline {
	pc := d.Config.Pipeline
	opts := pipeline.DefaultOptions()
	if len(pc.Windows) > 0 {
		opts.Windows = pc.Windows
	}
	if len(pc.RollFields) > 0 {
		opts.RollFields = pc.RollFields
	}
	if pc.Field != "" {
		opts.BaselineField = pc.Field
	}
	opts.Baseline = mergePeriod(opts.Baseline, pc.Baseline)
	return pipeline.New(opts, slog.Default(), d.Metrics)
}

// ReportOptions builds report options from the configured analysis and
// baseline settings. Unset settings keep the report defaults.
func (d *Deps) ReportOptions() report.Options {
	pc, ac := d.Config.Pipeline, d.Config.Analysis
	opts := report.DefaultOptions()
	opts.ZField = ""
	if ac.Field != "" {
		opts.Field = ac.Field
	}
	if ac.AuxField != "" {
		opts.AuxField = ac.AuxField
	}
	if ac.Cutoff != 0 {
		opts.Cutoff = ac.Cutoff
	}
	opts.Baseline = mergePeriod(opts.Baseline, pc.Baseline)
	opts.Target = analyze.Selector{Year: ac.TargetYear, Month: ac.TargetMonth}
	return opts
}

// mergePeriod overlays the non-zero fields of the configured baseline on def.
func mergePeriod(def baseline.Period, bc config.Baseline) baseline.Period {
	if bc.Month != 0 {
		def.Month = bc.Month
	}
	if bc.FromYear != 0 {
		def.FromYear = bc.FromYear
	}
	if bc.ToYear != 0 {
		def.ToYear = bc.ToYear
	}
	return def
}
