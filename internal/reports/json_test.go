package reports

import (
	"encoding/json"
	"testing"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(newTestReport(t))

	assert.Equal(t, "2026-10-16T09:30:05Z", doc.Metadata.GeneratedAt)
	assert.Equal(t, ReportType, doc.Metadata.ReportType)
	assert.Equal(t, DocumentVersion, doc.Metadata.Version)

	assert.Equal(t, models.DocumentSummary{TotalTenants: 2, TotalRegisteredUsers: 3, TotalBillableUsers: 2}, doc.Summary)

	// Skipped tenants are not part of tenant_details.
	require.Len(t, doc.Tenants, 1)
	tenant := doc.Tenants[0]
	assert.Equal(t, models.TenantInfo{ID: "t-1", Name: "Acme", Domain: "acme.test", Status: "active", BillingPlan: "Business"}, tenant.TenantInfo)
	assert.Equal(t, models.TenantMetrics{RegisteredActiveUsers: 3, BillableActiveUsers: 2}, tenant.Metrics)
	require.Len(t, tenant.RegisteredUsers, 3)
	assert.Equal(t, "N/A", tenant.RegisteredUsers[1].Name)
	assert.Equal(t, "user", tenant.RegisteredUsers[1].Role)
	assert.Equal(t, "Billable", tenant.RegisteredUsers[1].BillingStatus)
}

func TestRenderJSON_Shape(t *testing.T) {
	data, err := RenderJSON(newTestReport(t))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.ElementsMatch(t, []string{"report_metadata", "executive_summary", "tenant_details"}, keys(raw))
	assert.ElementsMatch(t, []string{"generated_at", "report_type", "version"}, keys(raw["report_metadata"].(map[string]any)))
	assert.ElementsMatch(t, []string{"total_tenants", "total_registered_users", "total_billable_users"}, keys(raw["executive_summary"].(map[string]any)))

	tenant := raw["tenant_details"].([]any)[0].(map[string]any)
	assert.ElementsMatch(t, []string{"tenant_info", "metrics", "billing_usage", "registered_users"}, keys(tenant))
	assert.ElementsMatch(t, []string{"id", "name", "domain", "status", "billing_plan"}, keys(tenant["tenant_info"].(map[string]any)))
	assert.ElementsMatch(t, []string{"registered_active_users", "billable_active_users"}, keys(tenant["metrics"].(map[string]any)))

	usage := tenant["billing_usage"].(map[string]any)
	assert.ElementsMatch(t, []string{"active_users", "active_peers", "total_users", "total_peers"}, keys(usage))
	// Missing counters are 0, never null.
	assert.Equal(t, float64(0), usage["total_peers"])

	users := tenant["registered_users"].([]any)
	first := users[0].(map[string]any)
	assert.ElementsMatch(t, []string{"name", "email", "role", "last_login", "billing_status"}, keys(first))
	assert.Equal(t, "2026-09-30T12:15:00Z", first["last_login"])
	assert.Nil(t, users[1].(map[string]any)["last_login"])
}

func TestRenderJSON_EmptyListsAreArrays(t *testing.T) {
	acc := reconcile.Fold([]models.TenantRecord{{
		Tenant: models.Tenant{ID: "t-1", Status: models.TenantStatusActive},
	}})
	data, err := RenderJSON(&Report{Entries: acc.Entries, Summary: acc.Summary()})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"registered_users": []`)

	data, err = RenderJSON(&Report{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tenant_details": []`)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
