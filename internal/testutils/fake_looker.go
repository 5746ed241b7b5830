// Package testutils provides test doubles shared across package tests.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/iamcloud/looker-provisioner/internal/looker"
)

// FakeLooker is an in-memory implementation of the looker.SDK interface. It
// models just enough remote state (groups, SAML mappings, folders,
// dashboards) to exercise the provisioner's lookup-before-create logic, and
// counts create calls so tests can assert idempotency.
//
// Individual methods can be overridden with func fields to inject failures.
type FakeLooker struct {
	mu sync.Mutex

	Groups     []looker.Group
	Saml       looker.SamlConfig
	Folders    []looker.Folder
	Dashboards []looker.Dashboard

	// Create counters for idempotency assertions.
	GroupCreates     int
	FolderCreates    int
	DashboardCopies  int
	SamlUpdates      int
	DashboardUpdates int

	nextID int64

	// Optional failure injection.
	SearchGroupsErr     error
	CreateGroupErr      error
	SamlConfigErr       error
	UpdateSamlErr       error
	SearchFoldersErr    error
	CreateFolderErr     error
	DashboardErr        error
	SearchDashboardsErr error
	CopyDashboardErr    error
	UpdateDashboardErr  error
	UpdateFolderErr     error
	DeleteDashboardErr  error
}

// NewFakeLooker creates an empty fake Looker instance.
func NewFakeLooker() *FakeLooker {
	return &FakeLooker{nextID: 1000}
}

// SeedTemplate registers a template dashboard outside any project folder and
// returns its id.
func (f *FakeLooker) SeedTemplate(id int64, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dashboards = append(f.Dashboards, looker.Dashboard{
		ID:    looker.ID(id),
		Title: title,
	})
}

// SeedFolder registers an existing folder.
func (f *FakeLooker) SeedFolder(id int64, name string, parentID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Folders = append(f.Folders, looker.Folder{
		ID:       looker.ID(id),
		Name:     name,
		ParentID: looker.ID(parentID),
	})
}

func (f *FakeLooker) allocID() looker.ID {
	f.nextID++
	return looker.ID(f.nextID)
}

// SearchGroups returns groups matching name exactly.
func (f *FakeLooker) SearchGroups(_ context.Context, name string) ([]looker.Group, error) {
	if f.SearchGroupsErr != nil {
		return nil, f.SearchGroupsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []looker.Group
	for _, g := range f.Groups {
		if g.Name == name {
			matches = append(matches, g)
		}
	}
	return matches, nil
}

// CreateGroup creates a group. Duplicate names are allowed, as in Looker.
func (f *FakeLooker) CreateGroup(_ context.Context, name string) (looker.Group, error) {
	if f.CreateGroupErr != nil {
		return looker.Group{}, f.CreateGroupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	group := looker.Group{ID: f.allocID(), Name: name}
	f.Groups = append(f.Groups, group)
	f.GroupCreates++
	return group, nil
}

// SamlConfig returns a copy of the current SAML configuration.
func (f *FakeLooker) SamlConfig(_ context.Context) (looker.SamlConfig, error) {
	if f.SamlConfigErr != nil {
		return looker.SamlConfig{}, f.SamlConfigErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	groups := make([]looker.SamlGroupMapping, len(f.Saml.Groups))
	copy(groups, f.Saml.Groups)
	return looker.SamlConfig{Groups: groups}, nil
}

// UpdateSamlGroups replaces the stored SAML group mappings.
func (f *FakeLooker) UpdateSamlGroups(_ context.Context, groups []looker.SamlGroupMapping) error {
	if f.UpdateSamlErr != nil {
		return f.UpdateSamlErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Saml.Groups = append([]looker.SamlGroupMapping(nil), groups...)
	f.SamlUpdates++
	return nil
}

// SearchFolders returns folders matching name under parentID.
func (f *FakeLooker) SearchFolders(_ context.Context, name string, parentID int64) ([]looker.Folder, error) {
	if f.SearchFoldersErr != nil {
		return nil, f.SearchFoldersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []looker.Folder
	for _, folder := range f.Folders {
		if folder.Name == name && (parentID == 0 || folder.ParentID.Int64() == parentID) {
			matches = append(matches, folder)
		}
	}
	return matches, nil
}

// CreateFolder creates a folder under parentID.
func (f *FakeLooker) CreateFolder(_ context.Context, name string, parentID int64) (looker.Folder, error) {
	if f.CreateFolderErr != nil {
		return looker.Folder{}, f.CreateFolderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	folder := looker.Folder{ID: f.allocID(), Name: name, ParentID: looker.ID(parentID)}
	f.Folders = append(f.Folders, folder)
	f.FolderCreates++
	return folder, nil
}

// Dashboard fetches a dashboard by id.
func (f *FakeLooker) Dashboard(_ context.Context, id int64) (looker.Dashboard, error) {
	if f.DashboardErr != nil {
		return looker.Dashboard{}, f.DashboardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range f.Dashboards {
		if d.ID.Int64() == id {
			return d, nil
		}
	}
	return looker.Dashboard{}, fmt.Errorf("dashboard %d not found", id)
}

// SearchDashboards returns dashboards with the exact title in folderID.
func (f *FakeLooker) SearchDashboards(_ context.Context, title string, folderID int64) ([]looker.Dashboard, error) {
	if f.SearchDashboardsErr != nil {
		return nil, f.SearchDashboardsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []looker.Dashboard
	for _, d := range f.Dashboards {
		if d.Title == title && (folderID == 0 || d.FolderID.Int64() == folderID) {
			matches = append(matches, d)
		}
	}
	return matches, nil
}

// CopyDashboard clones a template into folderID under title.
func (f *FakeLooker) CopyDashboard(_ context.Context, templateID, folderID int64, title string) (looker.Dashboard, error) {
	if f.CopyDashboardErr != nil {
		return looker.Dashboard{}, f.CopyDashboardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var template *looker.Dashboard
	for i := range f.Dashboards {
		if f.Dashboards[i].ID.Int64() == templateID {
			template = &f.Dashboards[i]
			break
		}
	}
	if template == nil {
		return looker.Dashboard{}, fmt.Errorf("template dashboard %d not found", templateID)
	}

	clone := looker.Dashboard{
		ID:          f.allocID(),
		Title:       title,
		Description: template.Description,
		FolderID:    looker.ID(folderID),
	}
	f.Dashboards = append(f.Dashboards, clone)
	f.DashboardCopies++
	return clone, nil
}

// UpdateDashboardText updates a dashboard's text fields.
func (f *FakeLooker) UpdateDashboardText(_ context.Context, id int64, text looker.DashboardText) error {
	if f.UpdateDashboardErr != nil {
		return f.UpdateDashboardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.Dashboards {
		if f.Dashboards[i].ID.Int64() == id {
			if text.Title != "" {
				f.Dashboards[i].Title = text.Title
			}
			if text.Description != "" {
				f.Dashboards[i].Description = text.Description
			}
			f.DashboardUpdates++
			return nil
		}
	}
	return fmt.Errorf("dashboard %d not found", id)
}

// UpdateFolderName renames a folder.
func (f *FakeLooker) UpdateFolderName(_ context.Context, id int64, name string) error {
	if f.UpdateFolderErr != nil {
		return f.UpdateFolderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.Folders {
		if f.Folders[i].ID.Int64() == id {
			f.Folders[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("folder %d not found", id)
}

// DashboardsInFolder lists dashboards in folderID.
func (f *FakeLooker) DashboardsInFolder(_ context.Context, folderID int64) ([]looker.Dashboard, error) {
	if f.SearchDashboardsErr != nil {
		return nil, f.SearchDashboardsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []looker.Dashboard
	for _, d := range f.Dashboards {
		if d.FolderID.Int64() == folderID {
			matches = append(matches, d)
		}
	}
	return matches, nil
}

// DeleteDashboard removes a dashboard.
func (f *FakeLooker) DeleteDashboard(_ context.Context, id int64) error {
	if f.DeleteDashboardErr != nil {
		return f.DeleteDashboardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.Dashboards {
		if f.Dashboards[i].ID.Int64() == id {
			f.Dashboards = append(f.Dashboards[:i], f.Dashboards[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("dashboard %d not found", id)
}

// compile-time interface check
var _ looker.SDK = (*FakeLooker)(nil)
