// Package models defines the data types shared across the msp-report pipeline.
package models

// TenantStatus represents the lifecycle status of a managed tenant.
type TenantStatus string

const (
	// TenantStatusActive indicates the tenant is live and gets reconciled.
	TenantStatusActive TenantStatus = "active"
	// TenantStatusInactive indicates the tenant is suspended or pending.
	TenantStatusInactive TenantStatus = "inactive"
)

// IsActive reports whether the tenant should be reconciled.
func (s TenantStatus) IsActive() bool {
	return s == TenantStatusActive
}

// Tenant is one customer account managed under the MSP umbrella.
type Tenant struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Domain string       `json:"domain"`
	Status TenantStatus `json:"status"`
}

// BillingUsage holds the upstream billing engine's usage counters for a tenant.
// Counters missing from the upstream response stay zero.
type BillingUsage struct {
	ActiveUsers int `json:"active_users"`
	ActivePeers int `json:"active_peers"`
	TotalUsers  int `json:"total_users"`
	TotalPeers  int `json:"total_peers"`
}
