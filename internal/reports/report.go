// Package reports renders reconciliation results as a text report, a JSON
// document and a console summary, and writes the report artifacts.
package reports

import (
	"time"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
)

// ReportType identifies the JSON document produced by this package.
const ReportType = "msp_billing_reconciliation"

// DocumentVersion is the version of the JSON document layout.
const DocumentVersion = "1.0"

// Report is the renderable view of a finished run.
type Report struct {
	GeneratedAt time.Time
	Entries     []models.ReportEntry
	Skipped     []models.TenantRecord
	Summary     models.ExecutiveSummary
}

// NewReport creates a Report from a reconciliation result.
func NewReport(result *reconcile.Result) *Report {
	return &Report{
		GeneratedAt: result.FinishedAt,
		Entries:     result.Entries,
		Skipped:     result.Skipped,
		Summary:     result.Summary,
	}
}

// RoleCount is the number of users holding a role.
type RoleCount struct {
	Role  string
	Count int
}

// RoleDistribution counts users per role in first-seen order. Users without
// a role count as models.DefaultRole.
func RoleDistribution(users []models.User) []RoleCount {
	var out []RoleCount
	index := make(map[string]int)
	for _, u := range users {
		role := u.RoleOrDefault()
		if i, ok := index[role]; ok {
			out[i].Count++
			continue
		}
		index[role] = len(out)
		out = append(out, RoleCount{Role: role, Count: 1})
	}
	return out
}
