package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/derickschaefer/dailywx/internal/merge"
	"github.com/derickschaefer/dailywx/internal/metrics"
)

func TestObserveMerge(t *testing.T) {
	m := metrics.New()
	m.ObserveMerge(merge.Stats{Records: 10, Dropped: 2, Days: 7})
	m.ObserveMerge(merge.Stats{Records: 1, Days: 1})

	if got := testutil.ToFloat64(m.RecordsRead); got != 11 {
		t.Errorf("records read = %v, want 11", got)
	}
	if got := testutil.ToFloat64(m.RecordsDropped); got != 2 {
		t.Errorf("records dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DaysMerged); got != 8 {
		t.Errorf("days merged = %v, want 8", got)
	}
}

func TestRequestsByOutcome(t *testing.T) {
	m := metrics.New()
	m.Request("ok")
	m.Request("retry")
	m.Request("retry")
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("retry")); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveMerge(merge.Stats{Records: 1})
	m.AddRows(3)
	m.AddAnomalies(1)
	m.Request("ok")
	m.Page()
	m.Stage("merge")()
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("nil write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := metrics.New()
	m.AddRows(42)
	m.AddAnomalies(1)
	m.Stage("derive")()

	path := filepath.Join(t.TempDir(), "dailywx.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(b)
	for _, want := range []string{
		"dailywx_rows_written_total 42",
		"dailywx_anomaly_days_total 1",
		`dailywx_stage_duration_seconds_count{stage="derive"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}
