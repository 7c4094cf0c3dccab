package reports

import (
	"strings"
	"testing"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/stretchr/testify/assert"
)

func TestRenderText_Sections(t *testing.T) {
	out := string(RenderText(newTestReport(t)))

	header := strings.Index(out, "MSP BILLING RECONCILIATION REPORT")
	tenant := strings.Index(out, "TENANT: Acme")
	skipped := strings.Index(out, "SKIPPED TENANTS")
	summary := strings.Index(out, "EXECUTIVE SUMMARY")

	assert.True(t, header >= 0 && tenant > header, "tenant section follows header")
	assert.True(t, skipped > tenant, "skipped tenants follow tenant sections")
	assert.True(t, summary > skipped, "summary comes last")

	assert.Contains(t, out, "Generated: 2026-10-16 09:30:05 UTC")
	assert.NotContains(t, out, "TENANT: Dormant")
	assert.Contains(t, out, "Dormant")
}

func TestRenderText_TenantDetails(t *testing.T) {
	out := string(RenderText(newTestReport(t)))

	for _, want := range []string{
		"Billing Plan:",
		"Business",
		"Registered Users:  3",
		"Billable Users:    2",
		"Active Peers:",
		"Name",
		"Last Login",
		"Billing Status",
		"2026-09-30 12:15:00",
		"N/A",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderText_LastLoginNever(t *testing.T) {
	out := string(RenderText(newTestReport(t)))

	var never int
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "@acme.test") && strings.Contains(line, "Never") {
			never++
		}
	}
	// bob has the zero sentinel, Cy has null.
	assert.Equal(t, 2, never)
}

func TestRenderText_RoleDistributionOrder(t *testing.T) {
	out := string(RenderText(newTestReport(t)))

	admin := strings.Index(out, "  admin: 2")
	user := strings.Index(out, "  user: 1")
	assert.True(t, admin > 0 && user > admin, "roles appear in first-seen order")
}

func TestRenderText_Anomaly(t *testing.T) {
	acc := reconcile.Fold([]models.TenantRecord{{
		Tenant:          models.Tenant{ID: "t-1", Name: "Over", Status: models.TenantStatusActive},
		RegisteredCount: 1,
		BillableCount:   4,
		Users:           []models.User{{Email: "a@over.test", Status: "active"}},
		Warnings:        []string{"plan lookup failed: status 404"},
	}})
	r := &Report{Entries: acc.Entries, Summary: acc.Summary()}

	out := string(RenderText(r))
	assert.Contains(t, out, "ANOMALY: 3 more billable than registered users\n")
	assert.Contains(t, out, "across all tenants")
	assert.Contains(t, out, "  - plan lookup failed: status 404")
	assert.Contains(t, out, "Billable")
	assert.Contains(t, out, "Unknown")
	assert.NotContains(t, out, "SKIPPED TENANTS")
}

func TestRenderText_NoUsers(t *testing.T) {
	acc := reconcile.Fold([]models.TenantRecord{{
		Tenant: models.Tenant{ID: "t-1", Name: "Empty", Status: models.TenantStatusActive},
	}})
	out := string(RenderText(&Report{Entries: acc.Entries, Summary: acc.Summary()}))

	assert.Contains(t, out, "(none)")
	assert.NotContains(t, out, "Role Distribution")
	assert.Contains(t, out, "Active Users:  0")
}

func TestRoleDistribution(t *testing.T) {
	users := []models.User{
		{Role: "owner"},
		{},
		{Role: "admin"},
		{Role: "owner"},
		{Role: "user"},
	}

	assert.Equal(t, []RoleCount{
		{Role: "owner", Count: 2},
		{Role: "user", Count: 2},
		{Role: "admin", Count: 1},
	}, RoleDistribution(users))
	assert.Empty(t, RoleDistribution(nil))
}
