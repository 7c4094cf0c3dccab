package reports

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(26)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	anomalyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// ConsoleSummary renders a styled executive summary for the terminal.
// artifacts may be nil.
func ConsoleSummary(r *Report, artifacts *Artifacts) string {
	s := r.Summary

	row := func(label string, value any) string {
		return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
	}

	lines := []string{
		titleStyle.Render("MSP Billing Reconciliation"),
		"",
		row("Tenants", s.TenantCount),
		row("Processed / Skipped", fmt.Sprintf("%d / %d", s.ProcessedCount, s.SkippedCount)),
		row("Registered users", s.TotalRegistered),
		row("Billable users", s.TotalBillable),
		row("Difference", s.TotalDifference),
	}

	if s.AnomalyCount > 0 {
		lines = append(lines, anomalyStyle.Render(fmt.Sprintf("%d tenant(s) with more billable than registered users", s.AnomalyCount)))
	}
	if s.DegradedCount > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d tenant(s) with incomplete data, see warnings in the report", s.DegradedCount)))
	}

	if artifacts != nil {
		lines = append(lines, "", row("Text report", artifacts.TextPath), row("JSON report", artifacts.JSONPath))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}
