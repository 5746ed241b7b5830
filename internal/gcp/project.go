// Package gcp provides utilities for working with Google Cloud Platform identifiers.
package gcp

import (
	"regexp"
	"strings"
)

// MinProjectIDLength is the minimum allowed length for a GCP project ID.
const MinProjectIDLength = 6

// MaxProjectIDLength is the maximum allowed length for a GCP project ID.
const MaxProjectIDLength = 63

// projectIDPattern matches valid GCP project IDs: a lowercase letter followed
// by lowercase letters, digits, or hyphens, ending in a letter or digit.
var projectIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,61}[a-z0-9]$`)

// IsValidProjectID reports whether id is a well-formed GCP project ID.
func IsValidProjectID(id string) bool {
	if len(id) < MinProjectIDLength || len(id) > MaxProjectIDLength {
		return false
	}
	return projectIDPattern.MatchString(id)
}

// NormalizeAncestryPath trims surrounding slashes and whitespace from an
// organization ancestry path such as "organizations/123/folders/456".
func NormalizeAncestryPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// AncestrySegments splits a normalized ancestry path into its segments.
// Returns nil for an empty path.
func AncestrySegments(path string) []string {
	normalized := NormalizeAncestryPath(path)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, "/")
}
