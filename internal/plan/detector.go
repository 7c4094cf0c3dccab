// Package plan resolves the subscription tier of a tenant from a subscription
// document whose schema is not stable. Resolution is best effort: it tries an
// ordered chain of extractors and falls back to Unknown.
package plan

import (
	"context"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/rs/zerolog"
)

// SourceFallback is the Detection source when no extractor matched.
const SourceFallback = "fallback"

// SourceUnavailable is the Detection source when the subscription could not be fetched.
const SourceUnavailable = "unavailable"

// SubscriptionFetcher returns the raw subscription document of a tenant.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, tenantID string) ([]byte, error)
}

// Detection is the outcome of a plan lookup. Tier is always set; Err is
// non-nil only when the subscription could not be fetched.
type Detection struct {
	Tier   models.PlanTier
	Source string
	Err    error
}

// Detector runs the extractor chain against a tenant's subscription.
type Detector struct {
	fetcher    SubscriptionFetcher
	extractors []Extractor
	logger     zerolog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithExtractors replaces the extractor chain.
func WithExtractors(extractors ...Extractor) Option {
	return func(d *Detector) {
		d.extractors = extractors
	}
}

// WithCandidateFields uses the default chain with a custom candidate field list.
func WithCandidateFields(fields []string) Option {
	return func(d *Detector) {
		d.extractors = DefaultExtractors(fields)
	}
}

// NewDetector creates a Detector using the default extractor chain unless overridden.
func NewDetector(fetcher SubscriptionFetcher, logger zerolog.Logger, opts ...Option) *Detector {
	d := &Detector{
		fetcher:    fetcher,
		extractors: DefaultExtractors(nil),
		logger:     logger.With().Str("component", "plan_detector").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect resolves the plan tier of a tenant. It never fails; an unreachable
// subscription endpoint yields Unknown with Err set.
func (d *Detector) Detect(ctx context.Context, tenantID string) Detection {
	raw, err := d.fetcher.GetSubscription(ctx, tenantID)
	if err != nil {
		return Detection{Tier: models.PlanUnknown, Source: SourceUnavailable, Err: err}
	}

	det := d.Resolve(raw)
	d.logger.Debug().
		Str("tenant_id", tenantID).
		Str("plan", det.Tier.String()).
		Str("source", det.Source).
		Msg("plan detected")
	return det
}

// Resolve runs the extractor chain against a raw subscription body.
func (d *Detector) Resolve(raw []byte) Detection {
	sub := ParseSubscription(raw)
	for _, ex := range d.extractors {
		if tier, ok := ex.Extract(sub); ok {
			return Detection{Tier: tier, Source: ex.Name}
		}
	}
	return Detection{Tier: models.PlanUnknown, Source: SourceFallback}
}
