package models

// The types below define the JSON report document. Field names and nesting
// are consumed by downstream tooling and must not change.

// ReportDocument is the structured JSON report of a run.
type ReportDocument struct {
	Metadata ReportMetadata   `json:"report_metadata"`
	Summary  DocumentSummary  `json:"executive_summary"`
	Tenants  []TenantDocument `json:"tenant_details"`
}

// ReportMetadata describes how and when the report was produced.
type ReportMetadata struct {
	GeneratedAt string `json:"generated_at"`
	ReportType  string `json:"report_type"`
	Version     string `json:"version"`
}

// DocumentSummary is the executive summary section of the JSON report.
type DocumentSummary struct {
	TotalTenants         int `json:"total_tenants"`
	TotalRegisteredUsers int `json:"total_registered_users"`
	TotalBillableUsers   int `json:"total_billable_users"`
}

// TenantDocument is one reconciled tenant in the JSON report.
type TenantDocument struct {
	TenantInfo      TenantInfo     `json:"tenant_info"`
	Metrics         TenantMetrics  `json:"metrics"`
	BillingUsage    BillingUsage   `json:"billing_usage"`
	RegisteredUsers []UserDocument `json:"registered_users"`
}

// TenantInfo identifies a tenant in the JSON report.
type TenantInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Status      string `json:"status"`
	BillingPlan string `json:"billing_plan"`
}

// TenantMetrics holds the reconciled counts of a tenant.
type TenantMetrics struct {
	RegisteredActiveUsers int `json:"registered_active_users"`
	BillableActiveUsers   int `json:"billable_active_users"`
}

// UserDocument is one registered user in the JSON report.
type UserDocument struct {
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	LastLogin     Timestamp `json:"last_login"`
	BillingStatus string    `json:"billing_status"`
}
