package reconcile

import "github.com/MacJediWizard/msp-report/internal/models"

// Reconcile computes the registered-minus-billable difference of a processed
// tenant record and marks it reconciled.
func Reconcile(rec models.TenantRecord) models.ReportEntry {
	rec.State = models.TenantStateReconciled
	return models.ReportEntry{
		TenantRecord: rec,
		Difference:   rec.RegisteredCount - rec.BillableCount,
	}
}

// Aggregate sums the reconciled entries into an executive summary. It only
// sees processed tenants, so TenantCount equals ProcessedCount here; use
// Accumulator.Summary to include skipped tenants.
func Aggregate(entries []models.ReportEntry) models.ExecutiveSummary {
	var s models.ExecutiveSummary
	for _, e := range entries {
		s.TotalRegistered += e.RegisteredCount
		s.TotalBillable += e.BillableCount
		if e.Anomaly() {
			s.AnomalyCount++
		}
		if len(e.Warnings) > 0 {
			s.DegradedCount++
		}
	}
	s.ProcessedCount = len(entries)
	s.TenantCount = len(entries)
	s.TotalDifference = s.TotalRegistered - s.TotalBillable
	return s
}

// Accumulator collects tenant records in processing order. Add returns the
// updated accumulator and leaves the receiver unchanged.
type Accumulator struct {
	Entries []models.ReportEntry
	Skipped []models.TenantRecord
}

// Add folds one finished tenant record into the accumulator.
func (a Accumulator) Add(rec models.TenantRecord) Accumulator {
	next := Accumulator{
		Entries: append([]models.ReportEntry(nil), a.Entries...),
		Skipped: append([]models.TenantRecord(nil), a.Skipped...),
	}
	if rec.Skipped() {
		next.Skipped = append(next.Skipped, rec)
		return next
	}
	next.Entries = append(next.Entries, Reconcile(rec))
	return next
}

// Summary aggregates the reconciled entries and counts skipped tenants
// toward the tenant total only.
func (a Accumulator) Summary() models.ExecutiveSummary {
	s := Aggregate(a.Entries)
	s.SkippedCount = len(a.Skipped)
	s.TenantCount = s.ProcessedCount + s.SkippedCount
	for _, rec := range a.Skipped {
		if len(rec.Warnings) > 0 {
			s.DegradedCount++
		}
	}
	return s
}

// Fold processes records in order into a fresh accumulator. It gives the
// same result as chaining Add but appends in place.
func Fold(records []models.TenantRecord) Accumulator {
	acc := Accumulator{Entries: make([]models.ReportEntry, 0, len(records))}
	for _, rec := range records {
		if rec.Skipped() {
			acc.Skipped = append(acc.Skipped, rec)
			continue
		}
		acc.Entries = append(acc.Entries, Reconcile(rec))
	}
	return acc
}
