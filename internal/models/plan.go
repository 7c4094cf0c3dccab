package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PlanTier represents the subscription level of a tenant. Besides the known
// tiers it may hold any upstream tier name, first letter capitalized.
type PlanTier string

const (
	// PlanTeam is the team subscription tier.
	PlanTeam PlanTier = "Team"
	// PlanBusiness is the business subscription tier.
	PlanBusiness PlanTier = "Business"
	// PlanEnterprise is the enterprise subscription tier.
	PlanEnterprise PlanTier = "Enterprise"
	// PlanUnknown is used when no tier could be resolved.
	PlanUnknown PlanTier = "Unknown"
)

// KnownPlanTiers returns the tiers with a fixed upstream mapping.
func KnownPlanTiers() []PlanTier {
	return []PlanTier{PlanTeam, PlanBusiness, PlanEnterprise}
}

// IsKnown reports whether the tier is one of the fixed tiers.
func (p PlanTier) IsKnown() bool {
	for _, known := range KnownPlanTiers() {
		if p == known {
			return true
		}
	}
	return false
}

// String returns the tier name, "Unknown" for the empty tier.
func (p PlanTier) String() string {
	if p == "" {
		return string(PlanUnknown)
	}
	return string(p)
}

// ParsePlanTier maps an upstream plan_tier value to a PlanTier. The known
// names match case-insensitively; any other non-empty value is kept verbatim
// with its first letter capitalized. Empty input yields PlanUnknown.
func ParsePlanTier(value string) PlanTier {
	value = strings.TrimSpace(value)
	if value == "" {
		return PlanUnknown
	}
	for _, known := range KnownPlanTiers() {
		if strings.EqualFold(value, string(known)) {
			return known
		}
	}
	return PlanTier(capitalizeFirst(value))
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
