package provision

import (
	"regexp"
	"strings"

	"github.com/iamcloud/looker-provisioner/internal/gcp"
	"github.com/iamcloud/looker-provisioner/internal/looker"
)

// placeholderPattern matches {{KEY}} substitution placeholders.
var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Built-in token keys always present in the substitution context.
const (
	TokenProjectID    = "PROJECT_ID"
	TokenAncestryPath = "ANCESTRY_PATH"
)

// Substituter resolves {{KEY}} placeholders in dashboard text against a fixed
// token context. It is a pure function over its inputs: no side effects, same
// text always produces the same output.
type Substituter struct {
	tokens        map[string]string
	failOnUnknown bool
}

// NewSubstituter creates a substituter over the given token context. With
// failOnUnknown false (the default policy) unknown placeholders are left
// verbatim so template/token mismatches stay visible in the cloned content.
func NewSubstituter(tokens map[string]string, failOnUnknown bool) *Substituter {
	return &Substituter{tokens: tokens, failOnUnknown: failOnUnknown}
}

// BuildTokenContext assembles the substitution context for a request:
// PROJECT_ID and ANCESTRY_PATH built-ins, then the caller-supplied tokens,
// which may override the built-ins.
func BuildTokenContext(req *Request) map[string]string {
	context := map[string]string{
		TokenProjectID:    req.ProjectID,
		TokenAncestryPath: gcp.NormalizeAncestryPath(req.AncestryPath),
	}
	for key, value := range req.Tokens {
		context[key] = value
	}
	return context
}

// Substitute replaces every {{KEY}} occurrence in text with its mapped value.
// Unknown keys are left unresolved unless the fail-on-unknown policy is set.
func (s *Substituter) Substitute(text string) (string, error) {
	var unknown []string

	resolved := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := s.tokens[key]; ok {
			return value
		}
		unknown = append(unknown, key)
		return match
	})

	if s.failOnUnknown && len(unknown) > 0 {
		return "", NewValidationError("unresolved template tokens: %s", strings.Join(unknown, ", "))
	}

	return resolved, nil
}

// ApplyToDashboard resolves placeholders in all text-bearing dashboard fields.
func (s *Substituter) ApplyToDashboard(text looker.DashboardText) (looker.DashboardText, error) {
	title, err := s.Substitute(text.Title)
	if err != nil {
		return looker.DashboardText{}, err
	}

	description, err := s.Substitute(text.Description)
	if err != nil {
		return looker.DashboardText{}, err
	}

	return looker.DashboardText{Title: title, Description: description}, nil
}
