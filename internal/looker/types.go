package looker

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a Looker entity identifier. The Looker API is inconsistent about
// whether ids are serialized as JSON numbers or strings, so decoding accepts
// both forms.
type ID int64

// UnmarshalJSON decodes an ID from either a JSON number or a numeric string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id %s", data)
		}
		raw = json.Number(s)
	}

	parsed, err := strconv.ParseInt(raw.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", raw.String(), err)
	}

	*id = ID(parsed)
	return nil
}

// Int64 returns the ID as an int64.
func (id ID) Int64() int64 { return int64(id) }

// String returns the decimal representation of the ID.
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Group is a Looker user group.
type Group struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Folder is a Looker content folder.
type Folder struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	ParentID ID     `json:"parent_id,omitempty"`
}

// Dashboard is a Looker dashboard, either a template or a project clone.
type Dashboard struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FolderID    ID     `json:"folder_id,omitempty"`
}

// DashboardText holds the mutable text-bearing fields of a dashboard.
type DashboardText struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SamlGroupMapping binds a SAML directory group name to a Looker group.
type SamlGroupMapping struct {
	Name    string `json:"name"`
	GroupID ID     `json:"id"`
}

// SamlConfig is the subset of the Looker SAML configuration the provisioner
// touches: the directory-group-to-Looker-group bindings.
type SamlConfig struct {
	Groups []SamlGroupMapping `json:"groups"`
}
