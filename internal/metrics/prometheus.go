// Package metrics exposes reconciliation results as Prometheus metrics and
// writes them in the node_exporter textfile format.
package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "msp_report"

// lastSuccessName is the exposed name of Metrics.LastSuccess.
const lastSuccessName = namespace + "_last_success_timestamp_seconds"

// Metrics holds the collectors for one process.
type Metrics struct {
	gatherer prometheus.Gatherer

	TenantRegistered *prometheus.GaugeVec
	TenantBillable   *prometheus.GaugeVec
	TenantDifference *prometheus.GaugeVec
	RunTotals        *prometheus.GaugeVec
	UpstreamFailures *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	tenantLabels := []string{"tenant_id", "tenant"}

	m := &Metrics{
		gatherer: reg,
		TenantRegistered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_registered_users",
			Help:      "Active, unblocked users per tenant in the last run.",
		}, tenantLabels),
		TenantBillable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_billable_users",
			Help:      "Users counted by the billing engine per tenant in the last run.",
		}, tenantLabels),
		TenantDifference: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_user_difference",
			Help:      "Registered minus billable users per tenant in the last run.",
		}, tenantLabels),
		RunTotals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_total",
			Help:      "Aggregate counts of the last run by kind.",
		}, []string{"kind"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Failed upstream API calls by endpoint.",
		}, []string{"endpoint"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of report runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      lastSuccessName,
			Help:      "Unix time of the last successful run.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.TenantRegistered, m.TenantBillable, m.TenantDifference,
		m.RunTotals, m.UpstreamFailures, m.RunDuration, m.LastSuccess,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// RecordUpstreamFailure counts a failed upstream call.
func (m *Metrics) RecordUpstreamFailure(endpoint string) {
	m.UpstreamFailures.WithLabelValues(endpoint).Inc()
}

// ObserveRun replaces the per-tenant gauges with the values of result and
// updates the run totals.
func (m *Metrics) ObserveRun(result *reconcile.Result) {
	m.TenantRegistered.Reset()
	m.TenantBillable.Reset()
	m.TenantDifference.Reset()

	for _, e := range result.Entries {
		m.TenantRegistered.WithLabelValues(e.Tenant.ID, e.Tenant.Name).Set(float64(e.RegisteredCount))
		m.TenantBillable.WithLabelValues(e.Tenant.ID, e.Tenant.Name).Set(float64(e.BillableCount))
		m.TenantDifference.WithLabelValues(e.Tenant.ID, e.Tenant.Name).Set(float64(e.Difference))
	}

	s := result.Summary
	totals := map[string]int{
		"tenants":    s.TenantCount,
		"processed":  s.ProcessedCount,
		"skipped":    s.SkippedCount,
		"registered": s.TotalRegistered,
		"billable":   s.TotalBillable,
		"difference": s.TotalDifference,
		"anomalies":  s.AnomalyCount,
		"degraded":   s.DegradedCount,
	}
	for kind, v := range totals {
		m.RunTotals.WithLabelValues(kind).Set(float64(v))
	}

	m.RunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	m.LastSuccess.Set(float64(result.FinishedAt.Unix()))
}

// WriteTextfile writes all registered metrics to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// RestoreLastSuccess sets LastSuccess from a textfile written by an earlier
// process, so a run that fails before any success does not reset it to 0.
// A missing file or metric leaves the gauge unchanged.
func (m *Metrics) RestoreLastSuccess(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open metrics textfile: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != lastSuccessName {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", lastSuccessName, err)
		}
		m.LastSuccess.Set(v)
		return nil
	}
	return scanner.Err()
}
