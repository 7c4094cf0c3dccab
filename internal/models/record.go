package models

// TenantState is the processing state of a tenant within one report run.
type TenantState string

const (
	// TenantStateListed is the entry state for every tenant returned by the lister.
	TenantStateListed TenantState = "listed"
	// TenantStatePlanDetected follows plan detection, which runs for every tenant.
	TenantStatePlanDetected TenantState = "plan_detected"
	// TenantStateSkipped is terminal for tenants that are not active.
	TenantStateSkipped TenantState = "skipped"
	// TenantStateUsersFetched follows the user fetch, successful or degraded.
	TenantStateUsersFetched TenantState = "users_fetched"
	// TenantStateBillingFetched follows the billing fetch, successful or degraded.
	TenantStateBillingFetched TenantState = "billing_fetched"
	// TenantStateReconciled is terminal for processed tenants.
	TenantStateReconciled TenantState = "reconciled"
)

// IsTerminal reports whether no further transition is possible from the state.
func (s TenantState) IsTerminal() bool {
	return s == TenantStateSkipped || s == TenantStateReconciled
}

// TenantRecord combines the independently fetched datasets of one tenant.
type TenantRecord struct {
	Tenant Tenant
	Plan   PlanTier
	State  TenantState

	// Users holds only registered (active, unblocked) users.
	Users           []User
	RegisteredCount int
	BillableCount   int
	Usage           BillingUsage

	// Warnings describes degraded fetches for this tenant.
	Warnings []string
}

// Skipped reports whether the tenant was not reconciled because it is not active.
func (r TenantRecord) Skipped() bool {
	return r.State == TenantStateSkipped
}

// ReportEntry is a reconciled tenant record.
type ReportEntry struct {
	TenantRecord

	// Difference is RegisteredCount - BillableCount; negative values are anomalies.
	Difference int
}

// Anomaly reports whether more users are billable than registered.
func (e ReportEntry) Anomaly() bool {
	return e.Difference < 0
}

// BillingStatus returns the per-user billing label shown for this tenant's users.
// The upstream API has no per-user billing attribution, so every user of a
// tenant with a non-zero billable count is labelled "Billable".
func (e ReportEntry) BillingStatus() string {
	if e.BillableCount > 0 {
		return "Billable"
	}
	return "Not Billable"
}

// ExecutiveSummary aggregates all tenants of a run.
type ExecutiveSummary struct {
	// TenantCount includes skipped tenants.
	TenantCount     int
	ProcessedCount  int
	SkippedCount    int
	TotalRegistered int
	TotalBillable   int
	TotalDifference int
	AnomalyCount    int
	DegradedCount   int
}

// Anomaly reports whether more users are billable than registered across all tenants.
func (s ExecutiveSummary) Anomaly() bool {
	return s.TotalDifference < 0
}
