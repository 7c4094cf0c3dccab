// Package history keeps a local SQLite record of completed report runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/MacJediWizard/msp-report/internal/reports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run does not exist.
var ErrRunNotFound = errors.New("run not found")

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultListLimit is used when ListRuns is called without a positive limit.
const DefaultListLimit = 20

// Run is one recorded report run.
type Run struct {
	ID              uuid.UUID
	StartedAt       time.Time
	FinishedAt      time.Time
	TenantCount     int
	ProcessedCount  int
	SkippedCount    int
	TotalRegistered int
	TotalBillable   int
	AnomalyCount    int
	DegradedCount   int
	TextPath        string
	JSONPath        string

	// Tenants is left empty by ListRuns.
	Tenants []TenantResult
}

// TenantResult is the reconciled outcome of one tenant within a run.
type TenantResult struct {
	TenantID   string
	Name       string
	Plan       string
	Registered int
	Billable   int
	Difference int
}

// NewRun builds a run record from a reconciliation result. artifacts may be nil.
func NewRun(result *reconcile.Result, artifacts *reports.Artifacts) *Run {
	s := result.Summary
	run := &Run{
		ID:              uuid.New(),
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
		TenantCount:     s.TenantCount,
		ProcessedCount:  s.ProcessedCount,
		SkippedCount:    s.SkippedCount,
		TotalRegistered: s.TotalRegistered,
		TotalBillable:   s.TotalBillable,
		AnomalyCount:    s.AnomalyCount,
		DegradedCount:   s.DegradedCount,
	}
	if artifacts != nil {
		run.TextPath = artifacts.TextPath
		run.JSONPath = artifacts.JSONPath
	}
	for _, e := range result.Entries {
		run.Tenants = append(run.Tenants, TenantResult{
			TenantID:   e.Tenant.ID,
			Name:       e.Tenant.Name,
			Plan:       e.Plan.String(),
			Registered: e.RegisteredCount,
			Billable:   e.BillableCount,
			Difference: e.Difference,
		})
	}
	return run
}

// Store persists runs in SQLite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens or creates the history database at path.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger.With().Str("component", "history_store").Logger(),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	store.logger.Debug().Str("path", path).Msg("history database initialized")
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			tenant_count INTEGER NOT NULL,
			processed_count INTEGER NOT NULL,
			skipped_count INTEGER NOT NULL,
			total_registered INTEGER NOT NULL,
			total_billable INTEGER NOT NULL,
			anomaly_count INTEGER NOT NULL DEFAULT 0,
			degraded_count INTEGER NOT NULL DEFAULT 0,
			text_path TEXT,
			json_path TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

		CREATE TABLE IF NOT EXISTS run_tenants (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			plan TEXT NOT NULL,
			registered INTEGER NOT NULL,
			billable INTEGER NOT NULL,
			difference INTEGER NOT NULL,
			PRIMARY KEY (run_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_run_tenants_tenant_id ON run_tenants(tenant_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and its per-tenant results in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, tenant_count, processed_count, skipped_count,
			total_registered, total_billable, anomaly_count, degraded_count, text_path, json_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID.String(),
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.TenantCount,
		run.ProcessedCount,
		run.SkippedCount,
		run.TotalRegistered,
		run.TotalBillable,
		run.AnomalyCount,
		run.DegradedCount,
		nullString(run.TextPath),
		nullString(run.JSONPath),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, t := range run.Tenants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tenants (run_id, position, tenant_id, name, plan, registered, billable, difference)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID.String(), i, t.TenantID, t.Name, t.Plan, t.Registered, t.Billable, t.Difference)
		if err != nil {
			return fmt.Errorf("insert run tenant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	s.logger.Debug().Str("run_id", run.ID.String()).Int("tenants", len(run.Tenants)).Msg("run recorded")
	return nil
}

const runColumns = `id, started_at, finished_at, tenant_count, processed_count, skipped_count,
	total_registered, total_billable, anomaly_count, degraded_count, text_path, json_path`

// ListRuns returns the most recent runs, newest first, without tenant results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its tenant results.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, name, plan, registered, billable, difference
		FROM run_tenants WHERE run_id = ? ORDER BY position
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query run tenants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t TenantResult
		if err := rows.Scan(&t.TenantID, &t.Name, &t.Plan, &t.Registered, &t.Billable, &t.Difference); err != nil {
			return nil, fmt.Errorf("scan run tenant: %w", err)
		}
		run.Tenants = append(run.Tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tenants: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                   Run
		id, started, finished string
		textPath, jsonPath    sql.NullString
	)
	err := row.Scan(&id, &started, &finished, &run.TenantCount, &run.ProcessedCount, &run.SkippedCount,
		&run.TotalRegistered, &run.TotalBillable, &run.AnomalyCount, &run.DegradedCount, &textPath, &jsonPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	run.TextPath = textPath.String
	run.JSONPath = jsonPath.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
