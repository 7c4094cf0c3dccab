package plan

import (
	"encoding/json"
	"strings"

	"github.com/MacJediWizard/msp-report/internal/models"
	"golang.org/x/text/cases"
)

// Subscription is a decoded subscription document. Fields is nil when the
// body is not a JSON object.
type Subscription struct {
	Raw    []byte
	Fields map[string]any
}

// ParseSubscription decodes a raw subscription body. It never fails: a body
// that is not a JSON object yields a Subscription with only Raw set.
func ParseSubscription(raw []byte) Subscription {
	sub := Subscription{Raw: raw}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		sub.Fields = fields
	}
	return sub
}

// Lookup returns the value at a dotted path such as "subscription.plan".
func (s Subscription) Lookup(path string) (any, bool) {
	var cur any = s.Fields
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Extractor is one heuristic in the detection chain. Extract reports false
// when the heuristic has nothing to say about the subscription.
type Extractor struct {
	Name    string
	Extract func(Subscription) (models.PlanTier, bool)
}

// DefaultCandidateFields are the fields inspected when plan_tier is absent.
func DefaultCandidateFields() []string {
	return []string{"plan", "subscription.plan", "tier", "name", "product"}
}

// DefaultExtractors returns the standard chain: plan_tier, then the first
// non-empty candidate field, then a search of the whole body.
func DefaultExtractors(candidateFields []string) []Extractor {
	if len(candidateFields) == 0 {
		candidateFields = DefaultCandidateFields()
	}
	return []Extractor{
		PlanTierExtractor(),
		CandidateFieldExtractor(candidateFields),
		BodySearchExtractor(),
	}
}

// PlanTierExtractor maps an explicit plan_tier field.
func PlanTierExtractor() Extractor {
	return Extractor{
		Name: "plan_tier",
		Extract: func(s Subscription) (models.PlanTier, bool) {
			v, ok := s.Lookup("plan_tier")
			if !ok {
				return "", false
			}
			text := stringify(v)
			if strings.TrimSpace(text) == "" {
				return "", false
			}
			return models.ParsePlanTier(text), true
		},
	}
}

// CandidateFieldExtractor inspects the first non-empty field among fields
// for a known tier keyword.
func CandidateFieldExtractor(fields []string) Extractor {
	fields = append([]string(nil), fields...)
	return Extractor{
		Name: "candidate_field",
		Extract: func(s Subscription) (models.PlanTier, bool) {
			for _, f := range fields {
				v, ok := s.Lookup(f)
				if !ok {
					continue
				}
				text := stringify(v)
				if strings.TrimSpace(text) == "" {
					continue
				}
				return matchKeyword(text)
			}
			return "", false
		},
	}
}

// BodySearchExtractor searches the whole response body for a tier keyword.
func BodySearchExtractor() Extractor {
	return Extractor{
		Name: "body_search",
		Extract: func(s Subscription) (models.PlanTier, bool) {
			if len(s.Raw) == 0 {
				return "", false
			}
			return matchKeyword(string(s.Raw))
		},
	}
}

// matchKeyword prefers "business" over "team" when both appear.
func matchKeyword(text string) (models.PlanTier, bool) {
	folded := cases.Fold().String(text)
	switch {
	case strings.Contains(folded, "business"):
		return models.PlanBusiness, true
	case strings.Contains(folded, "team"):
		return models.PlanTeam, true
	default:
		return "", false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
