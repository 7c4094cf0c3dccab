package main

import (
	"context"
	"fmt"
	"io"

	"github.com/MacJediWizard/msp-report/internal/archive"
	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/history"
	"github.com/MacJediWizard/msp-report/internal/metrics"
	"github.com/MacJediWizard/msp-report/internal/notifications"
	"github.com/MacJediWizard/msp-report/internal/plan"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/MacJediWizard/msp-report/internal/reports"
	"github.com/MacJediWizard/msp-report/internal/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// pipeline runs one report: fetch, reconcile, write artifacts, then the
// optional post-run steps. Metrics live as long as the pipeline, so a daemon
// keeps counters and the last success time across runs.
type pipeline struct {
	cfg     *config.ReportConfig
	out     io.Writer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func newPipeline(cfg *config.ReportConfig, out io.Writer, logger zerolog.Logger) (*pipeline, error) {
	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if cfg.MetricsFile != "" {
		if err := m.RestoreLastSuccess(cfg.MetricsFile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("failed to read previous metrics textfile")
		}
	}
	return &pipeline{cfg: cfg, out: out, metrics: m, logger: logger}, nil
}

// Run executes the pipeline. It returns an error only for fatal failures, in
// which case no report artifacts are written. Post-run step failures are
// logged.
func (p *pipeline) Run(ctx context.Context) error {
	defer p.writeMetrics()

	client, err := upstream.NewClientFromConfig(p.cfg, p.metrics, p.logger)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	processor := reconcile.NewProcessor(reconcile.Config{
		Lister:      client,
		Detector:    plan.NewDetector(client, p.logger, plan.WithCandidateFields(p.cfg.PlanFields)),
		Users:       client,
		Usage:       client,
		Concurrency: p.cfg.Concurrency,
	}, p.logger)

	result, err := processor.Run(ctx)
	if err != nil {
		return err
	}

	report := reports.NewReport(result)
	artifacts, err := reports.NewGenerator(p.cfg.OutputDir, p.logger).Write(report)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	p.metrics.ObserveRun(result)

	p.recordHistory(ctx, result, artifacts)
	p.notifySlack(ctx, report, artifacts)
	p.archive(ctx, report, artifacts)

	if p.out != nil {
		fmt.Fprintln(p.out, reports.ConsoleSummary(report, artifacts))
	}
	return nil
}

func (p *pipeline) writeMetrics() {
	if p.cfg.MetricsFile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
		p.logger.Error().Err(err).Str("path", p.cfg.MetricsFile).Msg("failed to write metrics textfile")
		return
	}
	p.logger.Debug().Str("path", p.cfg.MetricsFile).Msg("metrics textfile written")
}

func (p *pipeline) recordHistory(ctx context.Context, result *reconcile.Result, artifacts *reports.Artifacts) {
	path, err := historyPath(p.cfg)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to resolve history path")
		return
	}

	store, err := history.NewStore(path, p.logger)
	if err != nil {
		p.logger.Error().Err(err).Str("path", path).Msg("failed to open run history")
		return
	}
	defer store.Close()

	run := history.NewRun(result, artifacts)
	if err := store.RecordRun(ctx, run); err != nil {
		p.logger.Error().Err(err).Msg("failed to record run history")
		return
	}
	p.logger.Debug().Str("run_id", run.ID.String()).Msg("run recorded")
}

func (p *pipeline) notifySlack(ctx context.Context, report *reports.Report, artifacts *reports.Artifacts) {
	if !p.cfg.Slack.Enabled() {
		return
	}
	notifier, err := notifications.NewSlackNotifier(p.cfg.Slack, p.logger)
	if err != nil {
		p.logger.Error().Err(err).Msg("invalid slack configuration")
		return
	}
	if err := notifier.SendRunSummary(ctx, report, artifacts); err != nil {
		p.logger.Error().Err(err).Msg("failed to send slack summary")
	}
}

func (p *pipeline) archive(ctx context.Context, report *reports.Report, artifacts *reports.Artifacts) {
	if !p.cfg.S3.Enabled() {
		return
	}
	archiver, err := archive.NewArchiver(ctx, p.cfg.S3, p.logger)
	if err != nil {
		p.logger.Error().Err(err).Msg("invalid s3 configuration")
		return
	}
	if _, err := archiver.Archive(ctx, report.GeneratedAt, artifacts); err != nil {
		p.logger.Error().Err(err).Msg("failed to archive report artifacts")
	}
}

func historyPath(cfg *config.ReportConfig) (string, error) {
	if cfg.HistoryDB != "" {
		return cfg.HistoryDB, nil
	}
	return config.DefaultHistoryPath()
}
