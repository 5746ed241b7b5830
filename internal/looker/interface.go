package looker

import "context"

// SDK is the capability surface the provisioner requires from the Looker API.
// The REST client implements it against a live instance; tests substitute an
// in-memory fake. None of these methods retry internally; transient failures
// surface to the caller, which relies on re-delivery for recovery.
type SDK interface {
	// SearchGroups returns all groups whose name exactly matches name.
	SearchGroups(ctx context.Context, name string) ([]Group, error)

	// CreateGroup creates a group with the given name.
	CreateGroup(ctx context.Context, name string) (Group, error)

	// SamlConfig fetches the current SAML configuration.
	SamlConfig(ctx context.Context) (SamlConfig, error)

	// UpdateSamlGroups replaces the SAML group mappings. Callers must pass a
	// merged list built with AppendGroupMapping; this method never computes
	// the merge itself.
	UpdateSamlGroups(ctx context.Context, groups []SamlGroupMapping) error

	// SearchFolders returns all folders named name under parentID.
	// A parentID of 0 searches from the instance root.
	SearchFolders(ctx context.Context, name string, parentID int64) ([]Folder, error)

	// CreateFolder creates a folder named name under parentID.
	CreateFolder(ctx context.Context, name string, parentID int64) (Folder, error)

	// Dashboard fetches a dashboard by id.
	Dashboard(ctx context.Context, id int64) (Dashboard, error)

	// SearchDashboards returns dashboards with the exact title within folderID.
	SearchDashboards(ctx context.Context, title string, folderID int64) ([]Dashboard, error)

	// CopyDashboard copies templateID into folderID under the given title.
	CopyDashboard(ctx context.Context, templateID, folderID int64, title string) (Dashboard, error)

	// UpdateDashboardText updates the mutable text fields of a dashboard.
	UpdateDashboardText(ctx context.Context, id int64, text DashboardText) error

	// UpdateFolderName renames a folder.
	UpdateFolderName(ctx context.Context, id int64, name string) error

	// DashboardsInFolder lists all dashboards contained in folderID.
	DashboardsInFolder(ctx context.Context, folderID int64) ([]Dashboard, error)

	// DeleteDashboard permanently deletes a dashboard.
	DeleteDashboard(ctx context.Context, id int64) error
}
