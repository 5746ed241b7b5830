// Package audit records provisioning runs in MySQL for compliance review.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamcloud/looker-provisioner/internal/database"
	"github.com/iamcloud/looker-provisioner/internal/provision"
)

// RunType distinguishes the two kinds of recorded runs.
type RunType string

const (
	RunTypeProvision    RunType = "provision"
	RunTypeDecommission RunType = "decommission"
)

const insertRunSQL = `INSERT INTO provisioner_runs
	(run_type, correlation_id, project_id, group_email, status, group_id, folder_id, dashboard_ids, error, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Store writes run records to MySQL. A nil *Store disables auditing, so
// callers never need to branch on whether auditing is configured.
type Store struct {
	db *sql.DB
}

// Open connects to the audit database and applies any pending schema
// migrations before returning the store.
func Open(dsn string) (*Store, error) {
	db, err := database.NewPool(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle, used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordProvision persists the outcome of one provisioning run.
// Failures to write the audit row are logged, never surfaced: the run's
// outcome is already decided and auditing must not change it.
func (s *Store) RecordProvision(ctx context.Context, result provision.Result, duration time.Duration) {
	if s == nil || s.db == nil {
		return
	}

	dashboardIDs, err := json.Marshal(result.DashboardIDs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal audit dashboard ids", "err", err)
		dashboardIDs = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, insertRunSQL,
		string(RunTypeProvision),
		result.CorrelationID,
		result.ProjectID,
		result.GroupEmail,
		result.Status,
		nullInt64(result.GroupID),
		nullInt64(result.FolderID),
		string(dashboardIDs),
		nullString(result.Error),
		duration.Milliseconds(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record provision run", "err", err)
	}
}

// RecordDecommission persists the outcome of one teardown run.
func (s *Store) RecordDecommission(ctx context.Context, result provision.DecommissionResult, duration time.Duration) {
	if s == nil || s.db == nil {
		return
	}

	_, err := s.db.ExecContext(ctx, insertRunSQL,
		string(RunTypeDecommission),
		result.CorrelationID,
		result.ProjectID,
		"",
		result.Status,
		sql.NullInt64{},
		sql.NullInt64{},
		"[]",
		nullString(result.Error),
		duration.Milliseconds(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record decommission run", "err", err)
	}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
