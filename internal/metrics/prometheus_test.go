package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func testResult() *reconcile.Result {
	finished := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	acc := reconcile.Fold([]models.TenantRecord{
		{Tenant: models.Tenant{ID: "t-1", Name: "Acme"}, RegisteredCount: 3, BillableCount: 2},
		{Tenant: models.Tenant{ID: "t-2", Name: "Over"}, RegisteredCount: 1, BillableCount: 4},
		{Tenant: models.Tenant{ID: "t-3", Name: "Dormant"}, State: models.TenantStateSkipped},
	})
	return &reconcile.Result{
		StartedAt:  finished.Add(-30 * time.Second),
		FinishedAt: finished,
		Entries:    acc.Entries,
		Skipped:    acc.Skipped,
		Summary:    acc.Summary(),
	}
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveRun(testResult())

	t.Run("sets per-tenant gauges", func(t *testing.T) {
		if v := getGaugeValue(t, m.TenantRegistered, "t-1", "Acme"); v != 3 {
			t.Errorf("expected 3 registered, got %f", v)
		}
		if v := getGaugeValue(t, m.TenantBillable, "t-2", "Over"); v != 4 {
			t.Errorf("expected 4 billable, got %f", v)
		}
		if v := getGaugeValue(t, m.TenantDifference, "t-2", "Over"); v != -3 {
			t.Errorf("expected difference -3, got %f", v)
		}
	})

	t.Run("sets run totals", func(t *testing.T) {
		want := map[string]float64{"tenants": 3, "processed": 2, "skipped": 1, "registered": 4, "billable": 6, "difference": -2, "anomalies": 1}
		for kind, expected := range want {
			if v := getGaugeValue(t, m.RunTotals, kind); v != expected {
				t.Errorf("%s: expected %f, got %f", kind, expected, v)
			}
		}
	})

	t.Run("records duration and last success", func(t *testing.T) {
		var metric dto.Metric
		if err := m.RunDuration.(prometheus.Metric).Write(&metric); err != nil {
			t.Fatalf("failed to write metric: %v", err)
		}
		if metric.GetHistogram().GetSampleSum() != 30 {
			t.Errorf("expected 30s duration, got %f", metric.GetHistogram().GetSampleSum())
		}

		metric.Reset()
		if err := m.LastSuccess.Write(&metric); err != nil {
			t.Fatalf("failed to write metric: %v", err)
		}
		if int64(metric.GetGauge().GetValue()) != testResult().FinishedAt.Unix() {
			t.Errorf("unexpected last success %f", metric.GetGauge().GetValue())
		}
	})
}

func TestMetrics_ObserveRunDropsStaleTenants(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveRun(testResult())

	next := testResult()
	next.Entries = next.Entries[:1]
	m.ObserveRun(next)

	if n := seriesCount(t, m.TenantRegistered); n != 1 {
		t.Errorf("expected 1 tenant series after second run, got %d", n)
	}
}

func TestMetrics_UpstreamFailures(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordUpstreamFailure("/integrations/billing/usage")
	m.RecordUpstreamFailure("/integrations/billing/usage")
	m.RecordUpstreamFailure("/users")

	if v := getCounterValue(t, m.UpstreamFailures, "/integrations/billing/usage"); v != 2 {
		t.Errorf("expected 2, got %f", v)
	}
	if v := getCounterValue(t, m.UpstreamFailures, "/users"); v != 1 {
		t.Errorf("expected 1, got %f", v)
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveRun(testResult())

	path := filepath.Join(t.TempDir(), "textfile", "msp_report.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`msp_report_tenant_registered_users{tenant="Acme",tenant_id="t-1"} 3`,
		`msp_report_run_total{kind="billable"} 6`,
		"# TYPE msp_report_run_duration_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestMetrics_RestoreLastSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msp_report.prom")

	first := newTestMetrics(t)
	first.ObserveRun(testResult())
	if err := first.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}

	next := newTestMetrics(t)
	if err := next.RestoreLastSuccess(path); err != nil {
		t.Fatalf("RestoreLastSuccess() error: %v", err)
	}
	if v := gaugeValue(t, next.LastSuccess); int64(v) != testResult().FinishedAt.Unix() {
		t.Errorf("expected restored last success %d, got %f", testResult().FinishedAt.Unix(), v)
	}
}

func TestMetrics_RestoreLastSuccessMissing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		write   bool
		wantErr bool
	}{
		{name: "no file"},
		{name: "no metric", content: "# TYPE other gauge\nother 1\n", write: true},
		{name: "bad value", content: "msp_report_last_success_timestamp_seconds abc\n", write: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "msp_report.prom")
			if tt.write {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			m := newTestMetrics(t)
			err := m.RestoreLastSuccess(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RestoreLastSuccess() error = %v, wantErr %v", err, tt.wantErr)
			}
			if v := gaugeValue(t, m.LastSuccess); v != 0 {
				t.Errorf("expected gauge to stay 0, got %f", v)
			}
		})
	}
}

// Helper functions for extracting Prometheus metric values.

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := gauge.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func seriesCount(t *testing.T, c prometheus.Collector) int {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	n := 0
	for range ch {
		n++
	}
	return n
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
