package app_test

import (
	"path/filepath"
	"testing"

	"github.com/derickschaefer/dailywx/internal/app"
	"github.com/derickschaefer/dailywx/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Template()
	cfg.DBPath = filepath.Join(t.TempDir(), "dailywx.db")
	return &cfg
}

func TestPipelineFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Windows = []int{3}
	cfg.Pipeline.Baseline.FromYear = 2000

	p := app.New(cfg).Pipeline()
	if len(p.Options.Windows) != 1 || p.Options.Windows[0] != 3 {
		t.Errorf("windows = %v, want [3]", p.Options.Windows)
	}
	if p.Options.BaselineField != "prcp_mm" {
		t.Errorf("baseline field = %q", p.Options.BaselineField)
	}
	if p.Options.Baseline.FromYear != 2000 || p.Options.Baseline.Month != 11 {
		t.Errorf("baseline = %+v", p.Options.Baseline)
	}
	if p.Metrics == nil {
		t.Error("pipeline should share the deps metrics registry")
	}
}

func TestReportOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.TargetMonth = 12
	cfg.Analysis.Cutoff = 1.5

	opts := app.New(cfg).ReportOptions()
	if opts.Target.Year != 2024 || opts.Target.Month != 12 {
		t.Errorf("target = %+v", opts.Target)
	}
	if opts.Cutoff != 1.5 {
		t.Errorf("cutoff = %v", opts.Cutoff)
	}
	if opts.Field != "prcp_mm" || opts.AuxField != "temp_avg_c" {
		t.Errorf("fields = %q, %q", opts.Field, opts.AuxField)
	}
}

func TestRequireStoreIsLazyAndReusable(t *testing.T) {
	deps := app.New(testConfig(t))
	if deps.Store != nil {
		t.Fatal("store should not be opened by New")
	}
	if err := deps.RequireStore(); err != nil {
		t.Fatalf("RequireStore: %v", err)
	}
	first := deps.Store
	if err := deps.RequireStore(); err != nil {
		t.Fatalf("second RequireStore: %v", err)
	}
	if deps.Store != first {
		t.Error("RequireStore should reuse the open store")
	}
	if err := deps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if deps.Store != nil {
		t.Error("Close should release the store")
	}
	if err := deps.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRequireStoreWithoutPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = ""
	if err := app.New(cfg).RequireStore(); err == nil {
		t.Fatal("expected error with no db path")
	}
}
