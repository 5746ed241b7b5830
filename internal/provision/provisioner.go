// Package provision implements the idempotent Looker provisioning workflow:
// ensure a group, map it into the SAML configuration, ensure a project
// folder, and clone template dashboards into it. Every stage looks up remote
// state before creating anything, so a run can be safely re-delivered.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/looker"
)

// GroupMatchPolicy controls how multiple groups matching the same name are
// handled during the group stage.
type GroupMatchPolicy string

const (
	// GroupMatchLenient uses the first match and logs a warning.
	GroupMatchLenient GroupMatchPolicy = "lenient"
	// GroupMatchStrict fails the run when more than one group matches.
	GroupMatchStrict GroupMatchPolicy = "strict"
)

// samlGroupAliasPrefix is the prefix under which the SAML integration
// sometimes creates directory-synced groups. Group lookup checks this alias
// before concluding a group is absent.
const samlGroupAliasPrefix = "saml-"

// folderNamePrefix is the naming convention for project folders.
const folderNamePrefix = "Project: "

// archivedFolderPrefix is prepended to a folder name on decommissioning.
const archivedFolderPrefix = "Archived: "

// Options configures provisioning behavior and its defaults.
type Options struct {
	// DefaultTemplateDashboardIDs is used when a request carries no
	// templateDashboardIds.
	DefaultTemplateDashboardIDs []int64

	// DefaultParentFolderID is the parent under which project folders are
	// created when the request carries no templateFolderId. Zero means the
	// instance root.
	DefaultParentFolderID int64

	// GroupMatchPolicy decides what happens when group lookup is ambiguous.
	GroupMatchPolicy GroupMatchPolicy

	// FailOnUnknownToken switches token substitution from keep-unresolved to
	// fail-with-validation-error.
	FailOnUnknownToken bool
}

// Provisioner drives Looker toward the desired per-project end state. It
// holds no state between invocations; the Looker instance is the single
// source of truth and is queried fresh on every run.
type Provisioner struct {
	sdk  looker.SDK
	opts Options
}

// New creates a Provisioner over the given Looker SDK.
func New(sdk looker.SDK, opts Options) *Provisioner {
	if opts.GroupMatchPolicy == "" {
		opts.GroupMatchPolicy = GroupMatchLenient
	}
	return &Provisioner{sdk: sdk, opts: opts}
}

// FolderName returns the canonical folder name for a project.
func FolderName(projectID string) string {
	return folderNamePrefix + projectID
}

// CloneTitle returns the canonical title of a dashboard clone. All
// idempotency checks in the dashboard stage go through titlesEqual on this
// value, so a later switch to metadata-based matching only touches these two
// functions.
func CloneTitle(templateTitle, projectID string) string {
	return fmt.Sprintf("%s (project: %s)", templateTitle, projectID)
}

// titlesEqual is the single comparison used to decide whether an existing
// dashboard is the clone for a template. Title-string matching is a known
// limitation inherited from the original workflow.
func titlesEqual(a, b string) bool {
	return a == b
}

// EnsureGroup finds or creates the Looker group named after the Google group
// email and returns its id.
func (p *Provisioner) EnsureGroup(ctx context.Context, groupEmail string) (int64, error) {
	groups, err := p.sdk.SearchGroups(ctx, groupEmail)
	if err != nil {
		return 0, newProvisioningError("search_groups", err)
	}

	if len(groups) == 0 {
		// Directory-synced groups occasionally appear under the SAML alias.
		aliased, err := p.sdk.SearchGroups(ctx, samlGroupAliasPrefix+groupEmail)
		if err != nil {
			return 0, newProvisioningError("search_groups", err)
		}
		groups = aliased
	}

	if len(groups) > 1 {
		if p.opts.GroupMatchPolicy == GroupMatchStrict {
			return 0, newProvisioningError("search_groups",
				fmt.Errorf("%d groups match name %q", len(groups), groupEmail))
		}
		slog.WarnContext(ctx, "Multiple groups match name, using first",
			"event", "group.ambiguous",
			"group_email", groupEmail,
			"matches", len(groups))
	}

	if len(groups) > 0 {
		slog.InfoContext(ctx, "Reusing group",
			"event", "group.reuse",
			"group_email", groupEmail,
			"group_id", groups[0].ID.Int64())
		remoteEntitiesReused.WithLabelValues("group").Inc()
		return groups[0].ID.Int64(), nil
	}

	created, err := p.sdk.CreateGroup(ctx, groupEmail)
	if err != nil {
		return 0, newProvisioningError("create_group", err)
	}

	slog.InfoContext(ctx, "Created group",
		"event", "group.create",
		"group_email", groupEmail,
		"group_id", created.ID.Int64())
	remoteEntitiesCreated.WithLabelValues("group").Inc()

	return created.ID.Int64(), nil
}

// EnsureSamlMapping adds the group to the SAML configuration if it is not
// already mapped. The update is a read-merge-write of the groups list only;
// a concurrent external edit between read and write is an accepted race.
func (p *Provisioner) EnsureSamlMapping(ctx context.Context, groupID int64, groupEmail string) error {
	cfg, err := p.sdk.SamlConfig(ctx)
	if err != nil {
		return newProvisioningError("saml_config", err)
	}

	if cfg.GroupIsMapped(groupEmail) {
		slog.InfoContext(ctx, "Reusing SAML mapping",
			"event", "saml.group.reuse",
			"group_email", groupEmail)
		remoteEntitiesReused.WithLabelValues("saml_mapping").Inc()
		return nil
	}

	merged := looker.AppendGroupMapping(cfg, groupEmail, groupID)
	if err := p.sdk.UpdateSamlGroups(ctx, merged.Groups); err != nil {
		return newProvisioningError("update_saml_config", err)
	}

	slog.InfoContext(ctx, "Added SAML group mapping",
		"event", "saml.group.add",
		"group_email", groupEmail,
		"group_id", groupID)
	remoteEntitiesCreated.WithLabelValues("saml_mapping").Inc()

	return nil
}

// EnsureProjectFolder finds or creates the "Project: <id>" folder under
// parentID and returns its id. More than one existing match is a
// data-integrity condition and fails the run rather than silently picking one.
func (p *Provisioner) EnsureProjectFolder(ctx context.Context, projectID string, parentID int64) (int64, error) {
	name := FolderName(projectID)

	folders, err := p.sdk.SearchFolders(ctx, name, parentID)
	if err != nil {
		return 0, newProvisioningError("search_folders", err)
	}

	switch len(folders) {
	case 0:
		created, err := p.sdk.CreateFolder(ctx, name, parentID)
		if err != nil {
			return 0, newProvisioningError("create_folder", err)
		}
		slog.InfoContext(ctx, "Created folder",
			"event", "folder.create",
			"folder_name", name,
			"folder_id", created.ID.Int64())
		remoteEntitiesCreated.WithLabelValues("folder").Inc()
		return created.ID.Int64(), nil

	case 1:
		slog.InfoContext(ctx, "Reusing folder",
			"event", "folder.reuse",
			"folder_name", name,
			"folder_id", folders[0].ID.Int64())
		remoteEntitiesReused.WithLabelValues("folder").Inc()
		return folders[0].ID.Int64(), nil

	default:
		return 0, newProvisioningError("search_folders",
			fmt.Errorf("%d folders named %q under parent %d; refusing to pick one", len(folders), name, parentID))
	}
}

// CloneDashboardIfMissing clones a template dashboard into the project folder
// unless a clone already exists. Existing clones are returned as-is and are
// never re-templated; that is the idempotency contract for re-runs.
func (p *Provisioner) CloneDashboardIfMissing(ctx context.Context, templateID, folderID int64, projectID string, sub *Substituter) (int64, error) {
	template, err := p.sdk.Dashboard(ctx, templateID)
	if err != nil {
		return 0, newProvisioningError("dashboard_fetch", err)
	}

	resolved, err := sub.ApplyToDashboard(looker.DashboardText{
		Title:       template.Title,
		Description: template.Description,
	})
	if err != nil {
		return 0, err
	}

	// The clone title is computed from the resolved template title so lookup
	// and create agree across runs even when the title carries tokens.
	desiredTitle := CloneTitle(resolved.Title, projectID)

	existing, err := p.sdk.SearchDashboards(ctx, desiredTitle, folderID)
	if err != nil {
		return 0, newProvisioningError("search_dashboards", err)
	}

	for _, d := range existing {
		if titlesEqual(d.Title, desiredTitle) {
			slog.InfoContext(ctx, "Reusing dashboard",
				"event", "dashboard.reuse",
				"dashboard_id", d.ID.Int64(),
				"template_id", templateID)
			remoteEntitiesReused.WithLabelValues("dashboard").Inc()
			return d.ID.Int64(), nil
		}
	}

	clone, err := p.sdk.CopyDashboard(ctx, templateID, folderID, desiredTitle)
	if err != nil {
		return 0, newProvisioningError("dashboard_copy", err)
	}

	if resolved.Description != "" {
		if err := p.sdk.UpdateDashboardText(ctx, clone.ID.Int64(), looker.DashboardText{
			Description: resolved.Description,
		}); err != nil {
			return 0, newProvisioningError("dashboard_update", err)
		}
	}

	slog.InfoContext(ctx, "Cloned dashboard",
		"event", "dashboard.clone",
		"dashboard_id", clone.ID.Int64(),
		"template_id", templateID)
	remoteEntitiesCreated.WithLabelValues("dashboard").Inc()

	return clone.ID.Int64(), nil
}

// Provision runs the complete four-stage workflow for a validated request.
// Stages run strictly in order; the first failure short-circuits the rest.
// Partially created remote entities are left in place: they are found and
// reused on the next delivery.
func (p *Provisioner) Provision(ctx context.Context, req *Request) (Result, error) {
	correlationID, ok := logging.GetCorrelationID(ctx)
	if !ok {
		correlationID = logging.GenerateCorrelationID()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}

	slog.InfoContext(ctx, "Provision start",
		"event", "provision.start",
		"project_id", req.ProjectID,
		"group_email", req.GroupEmail)

	templateIDs := req.TemplateDashboardIDs
	if templateIDs == nil {
		templateIDs = p.opts.DefaultTemplateDashboardIDs
	}

	parentFolderID := req.TemplateFolderID
	if parentFolderID == 0 {
		parentFolderID = p.opts.DefaultParentFolderID
	}

	sub := NewSubstituter(BuildTokenContext(req), p.opts.FailOnUnknownToken)

	groupID, err := p.stage(ctx, "group", func(ctx context.Context) (int64, error) {
		return p.EnsureGroup(ctx, req.GroupEmail)
	})
	if err != nil {
		return p.failed(ctx, req, correlationID, err)
	}

	_, err = p.stage(ctx, "saml_mapping", func(ctx context.Context) (int64, error) {
		return 0, p.EnsureSamlMapping(ctx, groupID, req.GroupEmail)
	})
	if err != nil {
		return p.failed(ctx, req, correlationID, err)
	}

	folderID, err := p.stage(ctx, "folder", func(ctx context.Context) (int64, error) {
		return p.EnsureProjectFolder(ctx, req.ProjectID, parentFolderID)
	})
	if err != nil {
		return p.failed(ctx, req, correlationID, err)
	}

	dashboardIDs := make([]int64, 0, len(templateIDs))
	_, err = p.stage(ctx, "dashboards", func(ctx context.Context) (int64, error) {
		for _, templateID := range templateIDs {
			dashboardID, err := p.CloneDashboardIfMissing(ctx, templateID, folderID, req.ProjectID, sub)
			if err != nil {
				return 0, err
			}
			dashboardIDs = append(dashboardIDs, dashboardID)
		}
		return 0, nil
	})
	if err != nil {
		return p.failed(ctx, req, correlationID, err)
	}

	result := Result{
		Status:        StatusOK,
		ProjectID:     req.ProjectID,
		GroupEmail:    req.GroupEmail,
		GroupID:       groupID,
		FolderID:      folderID,
		DashboardIDs:  dashboardIDs,
		CorrelationID: correlationID,
	}

	slog.InfoContext(ctx, "Provision complete",
		"event", "provision.complete",
		"project_id", req.ProjectID,
		"group_id", groupID,
		"folder_id", folderID,
		"dashboard_count", len(dashboardIDs))
	provisionRunsTotal.WithLabelValues(StatusOK).Inc()

	return result, nil
}

// stage runs one workflow stage with deadline enforcement and timing metrics.
func (p *Provisioner) stage(ctx context.Context, name string, fn func(context.Context) (int64, error)) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, newProvisioningError(name, err)
	}

	start := time.Now()
	id, err := fn(ctx)
	provisionStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	return id, err
}

// failed logs the terminal failure and builds the error result.
func (p *Provisioner) failed(ctx context.Context, req *Request, correlationID string, err error) (Result, error) {
	slog.ErrorContext(ctx, "Provision failed",
		"event", "provision.failed",
		"project_id", req.ProjectID,
		"err", err)

	result := ErrorResult(err, req.ProjectID, req.GroupEmail, correlationID)
	provisionRunsTotal.WithLabelValues(result.Status).Inc()

	return result, err
}
