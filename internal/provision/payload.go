package provision

import (
	"encoding/json"

	"github.com/iamcloud/looker-provisioner/internal/validation"
)

// Request is the validated provisioning input. It is constructed once from
// raw event bytes and never mutated afterwards.
type Request struct {
	ProjectID            string            `json:"projectId"`
	GroupEmail           string            `json:"groupEmail"`
	AncestryPath         string            `json:"ancestryPath,omitempty"`
	TemplateDashboardIDs []int64           `json:"templateDashboardIds,omitempty"`
	TemplateFolderID     int64             `json:"templateFolderId,omitempty"`
	Tokens               map[string]string `json:"tokens,omitempty"`
}

// ParseRequest decodes and validates raw JSON bytes into a Request.
// Validation rules apply in order and the first failure wins.
func ParseRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewValidationError("invalid request payload: %v", err)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &req, nil
}

// Validate checks all request fields in documented order, first failure wins.
func (r *Request) Validate() error {
	if err := validation.ProjectID(r.ProjectID); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := validation.GroupEmail(r.GroupEmail); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := validation.TemplateDashboardIDs(r.TemplateDashboardIDs); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := validation.TemplateFolderID(r.TemplateFolderID); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := validation.TokenKeys(r.Tokens); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}
