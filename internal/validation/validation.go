// Package validation provides utility functions for validating provisioning inputs.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iamcloud/looker-provisioner/internal/gcp"
)

// Error represents a validation error.
type Error struct {
	Field   string
	Message string
}

// Error returns a formatted string representation of the validation error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewError creates a new validation error.
func NewError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// tokenKeyPattern matches allowed substitution token keys.
var tokenKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ProjectID validates a GCP project ID.
func ProjectID(projectID string) error {
	if projectID == "" {
		return NewError("projectId", "projectId is required")
	}

	if !gcp.IsValidProjectID(projectID) {
		return NewError("projectId", "must be 6-63 characters, start with a lowercase letter, contain only lowercase letters, digits, and hyphens, and end with a letter or digit")
	}

	return nil
}

// GroupEmail validates a Google group email address. The requirement is
// deliberately loose: exactly one @ with non-empty local and domain parts.
func GroupEmail(email string) error {
	if email == "" {
		return NewError("groupEmail", "groupEmail is required")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return NewError("groupEmail", "must contain exactly one @ with non-empty local and domain parts")
	}

	return nil
}

// TemplateDashboardIDs validates an optional list of template dashboard IDs.
// A nil list is allowed (the configured default set applies); a present list
// must be non-empty and contain only strictly positive integers.
func TemplateDashboardIDs(ids []int64) error {
	if ids == nil {
		return nil
	}

	if len(ids) == 0 {
		return NewError("templateDashboardIds", "must be non-empty when present")
	}

	for i, id := range ids {
		if id <= 0 {
			return NewError("templateDashboardIds", fmt.Sprintf("entry %d must be a positive integer, got %d", i, id))
		}
	}

	return nil
}

// TemplateFolderID validates an optional template folder ID.
func TemplateFolderID(id int64) error {
	if id < 0 {
		return NewError("templateFolderId", "must be a positive integer")
	}
	return nil
}

// TokenKeys validates substitution token keys.
func TokenKeys(tokens map[string]string) error {
	for key := range tokens {
		if !tokenKeyPattern.MatchString(key) {
			return NewError("tokens", fmt.Sprintf("key %q must match [A-Za-z0-9_]+", key))
		}
	}
	return nil
}
