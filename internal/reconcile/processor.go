// Package reconcile runs the per-tenant pipeline: plan detection, user and
// billing fetches, and reconciliation of registered against billable users.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/msp-report/internal/models"
	"github.com/MacJediWizard/msp-report/internal/plan"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoTenants is returned when the tenant listing succeeds but is empty.
var ErrNoTenants = errors.New("no tenants returned")

// TenantLister lists the managed tenants.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

// PlanDetector resolves a tenant's plan tier.
type PlanDetector interface {
	Detect(ctx context.Context, tenantID string) plan.Detection
}

// UserFetcher lists a tenant's non-service users.
type UserFetcher interface {
	ListUsers(ctx context.Context, tenantID string) ([]models.User, error)
}

// UsageFetcher fetches a tenant's billing usage.
type UsageFetcher interface {
	GetUsage(ctx context.Context, tenantID string) (models.BillingUsage, error)
}

// Result is the outcome of one run.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Entries are the reconciled tenants in API order.
	Entries []models.ReportEntry
	// Skipped are the non-active tenants in API order.
	Skipped []models.TenantRecord
	Summary models.ExecutiveSummary
}

// Processor runs the reconciliation pipeline over all tenants.
type Processor struct {
	lister      TenantLister
	detector    PlanDetector
	users       UserFetcher
	usage       UsageFetcher
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// Config holds the processor's collaborators.
type Config struct {
	Lister   TenantLister
	Detector PlanDetector
	Users    UserFetcher
	Usage    UsageFetcher
	// Concurrency is the number of tenants processed at once; values below 2
	// mean strictly sequential processing.
	Concurrency int
}

// NewProcessor creates a new Processor.
func NewProcessor(cfg Config, logger zerolog.Logger) *Processor {
	return &Processor{
		lister:      cfg.Lister,
		detector:    cfg.Detector,
		users:       cfg.Users,
		usage:       cfg.Usage,
		concurrency: cfg.Concurrency,
		now:         time.Now,
		logger:      logger.With().Str("component", "reconcile").Logger(),
	}
}

// Run lists the tenants and processes each of them. Only a tenant listing
// failure, an empty listing or a cancelled context fails the run; per-tenant
// failures degrade that tenant's record and are logged.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	started := p.now()

	tenants, err := p.lister.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		return nil, ErrNoTenants
	}

	p.logger.Info().
		Int("tenants", len(tenants)).
		Int("concurrency", max(p.concurrency, 1)).
		Msg("processing tenants")

	records, err := p.processAll(ctx, tenants)
	if err != nil {
		return nil, err
	}

	acc := Fold(records)
	result := &Result{
		StartedAt:  started,
		FinishedAt: p.now(),
		Entries:    acc.Entries,
		Skipped:    acc.Skipped,
		Summary:    acc.Summary(),
	}

	p.logger.Info().
		Int("processed", result.Summary.ProcessedCount).
		Int("skipped", result.Summary.SkippedCount).
		Int("registered", result.Summary.TotalRegistered).
		Int("billable", result.Summary.TotalBillable).
		Int("degraded", result.Summary.DegradedCount).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("reconciliation completed")

	return result, nil
}

// processAll returns one finished record per tenant, indexed like tenants.
func (p *Processor) processAll(ctx context.Context, tenants []models.Tenant) ([]models.TenantRecord, error) {
	records := make([]models.TenantRecord, len(tenants))

	if p.concurrency < 2 {
		for i, t := range tenants {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run interrupted: %w", err)
			}
			records[i] = p.processTenant(ctx, t)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted: %w", err)
		}
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, t := range tenants {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = p.processTenant(gctx, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}
	return records, nil
}

// processTenant drives one tenant from listed to its terminal state. Skipped
// tenants stop after plan detection; the reconciled state is set when the
// record is folded.
func (p *Processor) processTenant(ctx context.Context, t models.Tenant) models.TenantRecord {
	log := p.logger.With().Str("tenant_id", t.ID).Str("tenant", t.Name).Logger()
	rec := models.TenantRecord{Tenant: t, State: models.TenantStateListed}

	det := p.detector.Detect(ctx, t.ID)
	rec.Plan = det.Tier
	if det.Err != nil {
		log.Warn().Err(det.Err).Msg("plan lookup failed, using Unknown")
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("plan lookup failed: %v", det.Err))
	}
	rec.State = models.TenantStatePlanDetected

	if !t.Status.IsActive() {
		log.Info().Str("status", string(t.Status)).Msg("skipping tenant that is not active")
		rec.State = models.TenantStateSkipped
		return rec
	}

	users, err := p.users.ListUsers(ctx, t.ID)
	if err != nil {
		log.Warn().Err(err).Msg("user fetch failed, counting 0 registered users")
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("user fetch failed: %v", err))
		users = nil
	}
	rec.Users = models.RegisteredUsers(users)
	rec.RegisteredCount = len(rec.Users)
	rec.State = models.TenantStateUsersFetched

	usage, err := p.usage.GetUsage(ctx, t.ID)
	if err != nil {
		log.Warn().Err(err).Msg("billing fetch failed, using zero usage")
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("billing fetch failed: %v", err))
		usage = models.BillingUsage{}
	}
	rec.Usage = usage
	rec.BillableCount = usage.ActiveUsers
	rec.State = models.TenantStateBillingFetched

	log.Debug().
		Str("plan", rec.Plan.String()).
		Int("registered", rec.RegisteredCount).
		Int("billable", rec.BillableCount).
		Msg("tenant processed")

	return rec
}
