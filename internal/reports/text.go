package reports

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/MacJediWizard/msp-report/internal/models"
)

const (
	ruleWidth = 80
	timeFmt   = "2006-01-02 15:04:05 MST"
)

var (
	heavyRule = strings.Repeat("=", ruleWidth)
	lightRule = strings.Repeat("-", ruleWidth)
)

// RenderText returns the human-readable report: header, one section per
// reconciled tenant, skipped tenants, then the executive summary.
func RenderText(r *Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, heavyRule)
	fmt.Fprintln(&buf, "MSP BILLING RECONCILIATION REPORT")
	fmt.Fprintf(&buf, "Generated: %s\n", r.GeneratedAt.UTC().Format(timeFmt))
	fmt.Fprintln(&buf, heavyRule)

	for _, e := range r.Entries {
		fmt.Fprintln(&buf)
		writeTenantSection(&buf, e)
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, "SKIPPED TENANTS (not active)")
		fmt.Fprintln(&buf, lightRule)
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tID\tSTATUS\tPLAN")
		for _, rec := range r.Skipped {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Tenant.Name, rec.Tenant.ID, rec.Tenant.Status, rec.Plan)
		}
		tw.Flush()
	}

	fmt.Fprintln(&buf)
	writeSummary(&buf, r)

	return buf.Bytes()
}

func writeTenantSection(buf *bytes.Buffer, e models.ReportEntry) {
	fmt.Fprintf(buf, "TENANT: %s\n", e.Tenant.Name)
	fmt.Fprintln(buf, lightRule)

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Tenant ID:\t%s\n", e.Tenant.ID)
	fmt.Fprintf(tw, "Domain:\t%s\n", orNA(e.Tenant.Domain))
	fmt.Fprintf(tw, "Status:\t%s\n", e.Tenant.Status)
	fmt.Fprintf(tw, "Billing Plan:\t%s\n", e.Plan)
	fmt.Fprintf(tw, "Registered Users:\t%d\n", e.RegisteredCount)
	fmt.Fprintf(tw, "Billable Users:\t%d\n", e.BillableCount)
	fmt.Fprintf(tw, "Difference:\t%d\n", e.Difference)
	tw.Flush()

	fmt.Fprintln(buf)
	fmt.Fprintln(buf, "Billing Usage:")
	tw = tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Active Users:\t%d\n", e.Usage.ActiveUsers)
	fmt.Fprintf(tw, "  Active Peers:\t%d\n", e.Usage.ActivePeers)
	fmt.Fprintf(tw, "  Total Users:\t%d\n", e.Usage.TotalUsers)
	fmt.Fprintf(tw, "  Total Peers:\t%d\n", e.Usage.TotalPeers)
	tw.Flush()

	fmt.Fprintln(buf)
	fmt.Fprintln(buf, "Registered Users:")
	if len(e.Users) == 0 {
		fmt.Fprintln(buf, "  (none)")
	} else {
		status := e.BillingStatus()
		tw = tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  Name\tEmail\tRole\tLast Login\tBilling Status")
		fmt.Fprintln(tw, "  ----\t-----\t----\t----------\t--------------")
		for _, u := range e.Users {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", u.DisplayName(), u.Email, u.RoleOrDefault(), u.LastLogin, status)
		}
		tw.Flush()

		fmt.Fprintln(buf)
		fmt.Fprintln(buf, "Role Distribution:")
		for _, rc := range RoleDistribution(e.Users) {
			fmt.Fprintf(buf, "  %s: %d\n", rc.Role, rc.Count)
		}
	}

	if e.Anomaly() {
		fmt.Fprintln(buf)
		fmt.Fprintf(buf, "ANOMALY: %d more billable than registered users\n", -e.Difference)
	}

	if len(e.Warnings) > 0 {
		fmt.Fprintln(buf)
		fmt.Fprintln(buf, "Warnings:")
		for _, w := range e.Warnings {
			fmt.Fprintf(buf, "  - %s\n", w)
		}
	}
}

func writeSummary(buf *bytes.Buffer, r *Report) {
	s := r.Summary

	fmt.Fprintln(buf, heavyRule)
	fmt.Fprintln(buf, "EXECUTIVE SUMMARY")
	fmt.Fprintln(buf, heavyRule)

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total Tenants:\t%d\n", s.TenantCount)
	fmt.Fprintf(tw, "Processed Tenants:\t%d\n", s.ProcessedCount)
	fmt.Fprintf(tw, "Skipped Tenants:\t%d\n", s.SkippedCount)
	fmt.Fprintf(tw, "Total Registered Users:\t%d\n", s.TotalRegistered)
	fmt.Fprintf(tw, "Total Billable Users:\t%d\n", s.TotalBillable)
	fmt.Fprintf(tw, "Total Difference:\t%d\n", s.TotalDifference)
	fmt.Fprintf(tw, "Tenants With Anomalies:\t%d\n", s.AnomalyCount)
	fmt.Fprintf(tw, "Tenants With Warnings:\t%d\n", s.DegradedCount)
	tw.Flush()

	if s.Anomaly() {
		fmt.Fprintln(buf)
		fmt.Fprintf(buf, "ANOMALY: %d more billable than registered users across all tenants\n", -s.TotalDifference)
	}

	fmt.Fprintln(buf)
	fmt.Fprintln(buf, "Note: Billing Status is derived from the tenant's billable count, not from")
	fmt.Fprintln(buf, "per-user billing data.")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
