// Package pipeline runs the daily-table stages in order (merge, derive,
// rolling windows, baseline z-score) and reads and writes persisted daily
// tables as CSV files or JSONL streams.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/derickschaefer/dailywx/internal/baseline"
	"github.com/derickschaefer/dailywx/internal/features"
	"github.com/derickschaefer/dailywx/internal/merge"
	"github.com/derickschaefer/dailywx/internal/metrics"
	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/report"
	"github.com/derickschaefer/dailywx/internal/transform"
)

// Options configure the derived columns added after the merge.
type Options struct {
	// Windows × RollFields rolling means, named <field>_roll<w>, added with
	// windows as the outer loop.
	Windows    []int    `json:"windows"`
	RollFields []string `json:"roll_fields"`

	// BaselineField is standardized against Baseline into ZColumn
	// (default baseline.ColumnName). An empty field skips scoring.
	BaselineField string          `json:"baseline_field"`
	Baseline      baseline.Period `json:"baseline"`
	ZColumn       string          `json:"z_column"`
}

// DefaultOptions returns the 7/14-day rolling means of temp_avg_c and
// prcp_mm and a November 2015-2024 precipitation baseline.
func DefaultOptions() Options {
	return Options{
		Windows:       []int{7, 14},
		RollFields:    []string{model.FieldTempAvgC, model.FieldPrcpMM},
		BaselineField: model.FieldPrcpMM,
		Baseline:      baseline.Period{Month: 11, FromYear: 2015, ToYear: 2024},
	}
}

// Pipeline runs the stages with logging and metrics.
type Pipeline struct {
	Options Options
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// New returns a pipeline. A nil logger uses slog.Default; nil metrics
// record nothing.
func New(opts Options, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Options: opts, Logger: logger, Metrics: m}
}

// Build merges the raw record sets into a new daily table and adds the
// derived, rolling and z-score columns.
func (p *Pipeline) Build(sets ...[]model.RawRecord) (*model.Table, error) {
	done := p.Metrics.Stage("merge")
	t, st := merge.Merge(sets...)
	done()
	p.Metrics.ObserveMerge(st)
	p.Logger.Info("merged raw records",
		"sets", len(sets), "records", st.Records, "dropped", st.Dropped, "days", st.Days)

	done = p.Metrics.Stage("derive")
	features.Derive(t)
	done()

	done = p.Metrics.Stage("rolling")
	for _, w := range p.Options.Windows {
		for _, field := range p.Options.RollFields {
			name := transform.RollName(field, w)
			if err := transform.AddRolling(t, field, w, name); err != nil {
				done()
				return nil, fmt.Errorf("rolling %s: %w", name, err)
			}
			p.Logger.Debug("added rolling column", "column", name)
		}
	}
	done()

	if p.Options.BaselineField != "" {
		if err := p.Options.Baseline.Validate(); err != nil {
			return nil, err
		}
		done = p.Metrics.Stage("baseline")
		bst, err := baseline.Score(t, p.Options.BaselineField, p.Options.Baseline, p.Options.ZColumn)
		done()
		if err != nil {
			return nil, err
		}
		p.Logger.Info("scored baseline",
			"field", p.Options.BaselineField, "period", p.Options.Baseline.Label(),
			"n", bst.N, "mean", bst.Mean.String(), "std", bst.Std.String())
		if bst.N == 0 {
			p.Logger.Warn("baseline is empty; z-scores are null", "period", p.Options.Baseline.Label())
		}
	}
	return t, nil
}

// Clean reads the raw CSV files, builds the daily table and writes it to
// out. Unreadable inputs are skipped with a warning and reported together
// in the returned error only when none could be read.
func (p *Pipeline) Clean(out string, inputs ...string) (*model.Table, error) {
	sets, err := ReadRaw(inputs...)
	if err != nil {
		if len(sets) == 0 {
			return nil, err
		}
		p.Logger.Warn("some inputs could not be read", "err", err)
	}
	t, err := p.Build(sets...)
	if err != nil {
		return nil, err
	}
	if out != "" {
		if err := WriteDaily(out, t); err != nil {
			return nil, err
		}
		p.Metrics.AddRows(t.Len())
		p.Logger.Info("wrote daily table", "path", out, "rows", t.Len(), "columns", len(t.Header()))
	}
	return t, nil
}

// Analyze builds the threshold report over t and writes its CSVs and text
// summary into outDir. It returns the report and the written paths.
func (p *Pipeline) Analyze(t *model.Table, opts report.Options, outDir string) (*report.Report, []string, error) {
	done := p.Metrics.Stage("report")
	rep, err := report.Build(t, opts)
	done()
	if err != nil {
		return nil, nil, err
	}
	p.Metrics.AddAnomalies(len(rep.Anomalies))
	p.Logger.Info("built report",
		"target", rep.TargetLabel(), "rows", len(rep.Rows), "anomalies", len(rep.Anomalies))

	if outDir == "" {
		return rep, nil, nil
	}
	paths, err := rep.WriteFiles(outDir)
	if err != nil {
		return nil, nil, err
	}
	p.Metrics.AddRows(len(rep.Rows) + len(rep.Anomalies))
	for _, path := range paths {
		p.Logger.Debug("wrote report file", "path", filepath.Clean(path))
	}
	return rep, paths, nil
}
