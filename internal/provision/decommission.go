package provision

import (
	"context"
	"log/slog"

	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/validation"
)

// DecommissionRequest describes a project teardown. By default the project
// folder is archived by renaming; dashboard deletion is opt-in.
type DecommissionRequest struct {
	ProjectID        string `json:"projectId"`
	DeleteDashboards bool   `json:"deleteDashboards,omitempty"`
}

// Validate checks the decommission request fields.
func (r *DecommissionRequest) Validate() error {
	if err := validation.ProjectID(r.ProjectID); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// DecommissionResult reports what a teardown run did.
type DecommissionResult struct {
	Status            string `json:"status"`
	ProjectID         string `json:"projectId"`
	FolderFound       bool   `json:"folderFound"`
	ArchivedFolder    bool   `json:"archivedFolder"`
	DeletedDashboards int    `json:"deletedDashboards"`
	CorrelationID     string `json:"correlationId,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Decommission archives the project folder and optionally deletes its
// dashboards. A missing folder is not an error; the run reports it and stops.
// Archiving is idempotent: an already-archived folder is not found by the
// canonical name lookup, so a re-run is a no-op.
func (p *Provisioner) Decommission(ctx context.Context, req *DecommissionRequest) (DecommissionResult, error) {
	correlationID, ok := logging.GetCorrelationID(ctx)
	if !ok {
		correlationID = logging.GenerateCorrelationID()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}

	result := DecommissionResult{
		Status:        StatusOK,
		ProjectID:     req.ProjectID,
		CorrelationID: correlationID,
	}

	name := FolderName(req.ProjectID)

	folders, err := p.sdk.SearchFolders(ctx, name, 0)
	if err != nil {
		return p.decommissionFailed(ctx, result, newProvisioningError("search_folders", err))
	}

	if len(folders) == 0 {
		slog.WarnContext(ctx, "Folder not found for decommissioning",
			"event", "decommission.folder_not_found",
			"project_id", req.ProjectID)
		return result, nil
	}

	folderID := folders[0].ID.Int64()
	result.FolderFound = true

	if req.DeleteDashboards {
		dashboards, err := p.sdk.DashboardsInFolder(ctx, folderID)
		if err != nil {
			return p.decommissionFailed(ctx, result, newProvisioningError("search_dashboards", err))
		}

		for _, d := range dashboards {
			if err := p.sdk.DeleteDashboard(ctx, d.ID.Int64()); err != nil {
				return p.decommissionFailed(ctx, result, newProvisioningError("delete_dashboard", err))
			}
			result.DeletedDashboards++
		}
	}

	if err := p.sdk.UpdateFolderName(ctx, folderID, archivedFolderPrefix+name); err != nil {
		return p.decommissionFailed(ctx, result, newProvisioningError("update_folder", err))
	}
	result.ArchivedFolder = true

	slog.InfoContext(ctx, "Decommissioned project",
		"event", "project.decommission",
		"project_id", req.ProjectID,
		"deleted_dashboards", result.DeletedDashboards)

	return result, nil
}

// decommissionFailed finalizes a failed teardown result.
func (p *Provisioner) decommissionFailed(ctx context.Context, result DecommissionResult, err error) (DecommissionResult, error) {
	slog.ErrorContext(ctx, "Decommission failed",
		"event", "decommission.failed",
		"project_id", result.ProjectID,
		"err", err)

	result.Status = StatusError
	result.Error = err.Error()

	return result, err
}
