// Package notifications posts run summaries to chat webhooks.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/reports"
	"github.com/rs/zerolog"
)

const (
	colorOK      = "#22c55e"
	colorWarning = "#f59e0b"
	colorAnomaly = "#dc2626"
)

// SlackNotifier sends run summaries to a Slack incoming webhook.
type SlackNotifier struct {
	cfg    config.SlackConfig
	client *http.Client
	logger zerolog.Logger
}

// NewSlackNotifier creates a notifier for the configured webhook. Requests
// are only sent to public addresses.
func NewSlackNotifier(cfg config.SlackConfig, logger zerolog.Logger) (*SlackNotifier, error) {
	if err := ValidateWebhookURL(cfg.WebhookURL, false); err != nil {
		return nil, fmt.Errorf("slack: %w", err)
	}

	return &SlackNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{DialContext: ValidatingDialer()},
		},
		logger: logger.With().Str("component", "slack_notifier").Logger(),
	}, nil
}

type slackMessage struct {
	Text        string            `json:"text,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Fallback  string       `json:"fallback,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// SendRunSummary posts the executive summary of a run. artifacts may be nil.
func (n *SlackNotifier) SendRunSummary(ctx context.Context, r *reports.Report, artifacts *reports.Artifacts) error {
	msg := buildSummaryMessage(r, artifacts)
	msg.Channel = n.cfg.Channel
	msg.Username = n.cfg.Username

	if err := n.send(ctx, msg); err != nil {
		return err
	}
	n.logger.Info().Msg("run summary sent to slack")
	return nil
}

func buildSummaryMessage(r *reports.Report, artifacts *reports.Artifacts) *slackMessage {
	s := r.Summary

	title := "MSP billing reconciliation completed"
	if s.AnomalyCount > 0 {
		title = fmt.Sprintf("MSP billing reconciliation: %d tenant(s) with more billable than registered users", s.AnomalyCount)
	}

	att := slackAttachment{
		Color:    summaryColor(r),
		Title:    title,
		Fallback: fmt.Sprintf("%s. Registered %d, billable %d.", title, s.TotalRegistered, s.TotalBillable),
		Fields: []slackField{
			{Title: "Tenants", Value: fmt.Sprintf("%d (%d skipped)", s.TenantCount, s.SkippedCount), Short: true},
			{Title: "Difference", Value: fmt.Sprintf("%d", s.TotalDifference), Short: true},
			{Title: "Registered Users", Value: fmt.Sprintf("%d", s.TotalRegistered), Short: true},
			{Title: "Billable Users", Value: fmt.Sprintf("%d", s.TotalBillable), Short: true},
		},
		Timestamp: r.GeneratedAt.Unix(),
	}
	if s.DegradedCount > 0 {
		att.Fields = append(att.Fields, slackField{Title: "Tenants With Warnings", Value: fmt.Sprintf("%d", s.DegradedCount), Short: true})
	}
	if artifacts != nil {
		att.Footer = filepath.Base(artifacts.TextPath)
	}

	return &slackMessage{Attachments: []slackAttachment{att}}
}

func summaryColor(r *reports.Report) string {
	switch {
	case r.Summary.AnomalyCount > 0:
		return colorAnomaly
	case r.Summary.DegradedCount > 0:
		return colorWarning
	default:
		return colorOK
	}
}

func (n *SlackNotifier) send(ctx context.Context, msg *slackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}
