package reports

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MacJediWizard/msp-report/internal/models"
)

// BuildDocument converts a report into the JSON document layout. Only
// reconciled tenants appear in tenant_details; skipped tenants count toward
// total_tenants.
func BuildDocument(r *Report) models.ReportDocument {
	doc := models.ReportDocument{
		Metadata: models.ReportMetadata{
			GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
			ReportType:  ReportType,
			Version:     DocumentVersion,
		},
		Summary: models.DocumentSummary{
			TotalTenants:         r.Summary.TenantCount,
			TotalRegisteredUsers: r.Summary.TotalRegistered,
			TotalBillableUsers:   r.Summary.TotalBillable,
		},
		Tenants: make([]models.TenantDocument, 0, len(r.Entries)),
	}

	for _, e := range r.Entries {
		users := make([]models.UserDocument, 0, len(e.Users))
		status := e.BillingStatus()
		for _, u := range e.Users {
			users = append(users, models.UserDocument{
				Name:          u.DisplayName(),
				Email:         u.Email,
				Role:          u.RoleOrDefault(),
				LastLogin:     u.LastLogin,
				BillingStatus: status,
			})
		}

		doc.Tenants = append(doc.Tenants, models.TenantDocument{
			TenantInfo: models.TenantInfo{
				ID:          e.Tenant.ID,
				Name:        e.Tenant.Name,
				Domain:      e.Tenant.Domain,
				Status:      string(e.Tenant.Status),
				BillingPlan: e.Plan.String(),
			},
			Metrics: models.TenantMetrics{
				RegisteredActiveUsers: e.RegisteredCount,
				BillableActiveUsers:   e.BillableCount,
			},
			BillingUsage:    e.Usage,
			RegisteredUsers: users,
		})
	}

	return doc
}

// RenderJSON returns the indented JSON document of a report.
func RenderJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(BuildDocument(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report document: %w", err)
	}
	return append(data, '\n'), nil
}
