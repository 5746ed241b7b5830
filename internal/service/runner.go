// Package service glues one provisioning run together: parse, provision,
// publish the outcome event, record the audit row.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/iamcloud/looker-provisioner/internal/audit"
	"github.com/iamcloud/looker-provisioner/internal/events"
	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/provision"
)

// Runner executes provisioning and decommission runs end to end. It is
// shared by the HTTP handlers, the pull worker, and the one-shot CLI so
// all three entry points behave identically.
type Runner struct {
	provisioner *provision.Provisioner
	publisher   *events.ResultPublisher
	auditStore  *audit.Store
}

// NewRunner creates a runner. Publisher and audit store may be nil when the
// corresponding backend is not configured.
func NewRunner(provisioner *provision.Provisioner, publisher *events.ResultPublisher, auditStore *audit.Store) *Runner {
	return &Runner{
		provisioner: provisioner,
		publisher:   publisher,
		auditStore:  auditStore,
	}
}

// RunProvision executes one provisioning run from raw event bytes.
// The returned result is always populated; a run never panics outward
// and is never retried here.
func (r *Runner) RunProvision(ctx context.Context, raw []byte) provision.Result {
	ctx = ensureCorrelationID(ctx)
	start := time.Now()

	req, err := provision.ParseRequest(raw)
	if err != nil {
		// Best effort: surface whatever identifiers the payload carried
		var partial provision.Request
		_ = json.Unmarshal(raw, &partial)

		correlationID, _ := logging.GetCorrelationID(ctx)
		result := provision.ErrorResult(err, partial.ProjectID, partial.GroupEmail, correlationID)

		slog.ErrorContext(ctx, "provision.rejected", "error", err)
		r.finishProvision(ctx, result, time.Since(start))
		return result
	}

	result, err := r.provisioner.Provision(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "provision.failed", "project_id", req.ProjectID, "error", err)
	} else {
		slog.InfoContext(ctx, "provision.completed",
			"project_id", req.ProjectID,
			"group_id", result.GroupID,
			"folder_id", result.FolderID,
			"dashboards", len(result.DashboardIDs))
	}

	r.finishProvision(ctx, result, time.Since(start))
	return result
}

// RunDecommission executes one teardown run from raw event bytes.
func (r *Runner) RunDecommission(ctx context.Context, raw []byte) provision.DecommissionResult {
	ctx = ensureCorrelationID(ctx)
	start := time.Now()

	var req provision.DecommissionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		err = provision.NewValidationError("invalid decommission payload: %v", err)
		return r.rejectDecommission(ctx, req, err, start)
	}
	if err := req.Validate(); err != nil {
		return r.rejectDecommission(ctx, req, err, start)
	}

	result, err := r.provisioner.Decommission(ctx, &req)
	if err != nil {
		slog.ErrorContext(ctx, "decommission.failed", "project_id", req.ProjectID, "error", err)
	} else {
		slog.InfoContext(ctx, "decommission.completed",
			"project_id", req.ProjectID,
			"folder_found", result.FolderFound,
			"deleted_dashboards", result.DeletedDashboards)
	}

	r.finishDecommission(ctx, result, time.Since(start))
	return result
}

func (r *Runner) rejectDecommission(ctx context.Context, req provision.DecommissionRequest, err error, start time.Time) provision.DecommissionResult {
	correlationID, _ := logging.GetCorrelationID(ctx)
	result := provision.DecommissionResult{
		Status:        provision.StatusValidationError,
		ProjectID:     req.ProjectID,
		CorrelationID: correlationID,
		Error:         err.Error(),
	}

	slog.ErrorContext(ctx, "decommission.rejected", "error", err)
	r.finishDecommission(ctx, result, time.Since(start))
	return result
}

func (r *Runner) finishProvision(ctx context.Context, result provision.Result, duration time.Duration) {
	r.publisher.PublishProvisionResult(ctx, result)
	r.auditStore.RecordProvision(ctx, result, duration)
}

func (r *Runner) finishDecommission(ctx context.Context, result provision.DecommissionResult, duration time.Duration) {
	r.publisher.PublishDecommissionResult(ctx, result)
	r.auditStore.RecordDecommission(ctx, result, duration)
}

func ensureCorrelationID(ctx context.Context) context.Context {
	if _, ok := logging.GetCorrelationID(ctx); !ok {
		ctx = logging.WithCorrelationID(ctx, logging.GenerateCorrelationID())
	}
	return ctx
}
