package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamcloud/looker-provisioner/internal/looker"
)

// TestSubstituteUnknownKeysVisible tests the default keep-unresolved policy.
func TestSubstituteUnknownKeysVisible(t *testing.T) {
	sub := NewSubstituter(map[string]string{"PROJECT_ID": "demo"}, false)

	out, err := sub.Substitute("Report for {{PROJECT_ID}} / {{UNKNOWN}}")
	require.NoError(t, err)
	assert.Equal(t, "Report for demo / {{UNKNOWN}}", out)
}

// TestSubstituteFailOnUnknown tests the opt-in strict token policy.
func TestSubstituteFailOnUnknown(t *testing.T) {
	sub := NewSubstituter(map[string]string{"PROJECT_ID": "demo"}, true)

	_, err := sub.Substitute("Report for {{PROJECT_ID}} / {{UNKNOWN}}")
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "UNKNOWN")
}

// TestSubstituteDeterministic tests that substitution is a pure function.
func TestSubstituteDeterministic(t *testing.T) {
	sub := NewSubstituter(map[string]string{"A": "1", "B": "2"}, false)

	first, err := sub.Substitute("{{A}}-{{B}}-{{A}}")
	require.NoError(t, err)
	second, err := sub.Substitute("{{A}}-{{B}}-{{A}}")
	require.NoError(t, err)

	assert.Equal(t, "1-2-1", first)
	assert.Equal(t, first, second)
}

// TestBuildTokenContext tests built-in tokens and caller overrides.
func TestBuildTokenContext(t *testing.T) {
	req := &Request{
		ProjectID:    "demo-proj",
		AncestryPath: "/organizations/1/folders/2/",
		Tokens:       map[string]string{"ENV": "prod"},
	}

	ctx := BuildTokenContext(req)
	assert.Equal(t, "demo-proj", ctx[TokenProjectID])
	assert.Equal(t, "organizations/1/folders/2", ctx[TokenAncestryPath], "ancestry path is normalized")
	assert.Equal(t, "prod", ctx["ENV"])

	// Caller tokens may shadow built-ins, matching the merge order.
	req.Tokens = map[string]string{"PROJECT_ID": "override"}
	ctx = BuildTokenContext(req)
	assert.Equal(t, "override", ctx[TokenProjectID])
}

// TestBuildTokenContextEmptyAncestry tests the absent ancestry path default.
func TestBuildTokenContextEmptyAncestry(t *testing.T) {
	ctx := BuildTokenContext(&Request{ProjectID: "demo-proj"})
	assert.Equal(t, "", ctx[TokenAncestryPath])
}

// TestApplyToDashboard tests substitution across all text-bearing fields.
func TestApplyToDashboard(t *testing.T) {
	sub := NewSubstituter(map[string]string{"PROJECT_ID": "demo", "ENV": "prod"}, false)

	out, err := sub.ApplyToDashboard(looker.DashboardText{
		Title:       "Costs {{PROJECT_ID}}",
		Description: "Environment: {{ENV}}, owner: {{OWNER}}",
	})
	require.NoError(t, err)
	assert.Equal(t, "Costs demo", out.Title)
	assert.Equal(t, "Environment: prod, owner: {{OWNER}}", out.Description)
}
