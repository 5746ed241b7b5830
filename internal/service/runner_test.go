package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamcloud/looker-provisioner/internal/provision"
	"github.com/iamcloud/looker-provisioner/internal/testutils"
)

func newTestRunner(fake *testutils.FakeLooker) *Runner {
	p := provision.New(fake, provision.Options{
		DefaultTemplateDashboardIDs: []int64{101},
	})
	return NewRunner(p, nil, nil)
}

func TestRunProvision(t *testing.T) {
	fake := testutils.NewFakeLooker()
	fake.SeedTemplate(101, "Usage Report")
	runner := newTestRunner(fake)

	raw := []byte(`{"projectId":"acme-prod","groupEmail":"team@acme.com"}`)
	result := runner.RunProvision(context.Background(), raw)

	require.Equal(t, provision.StatusOK, result.Status)
	assert.Equal(t, "acme-prod", result.ProjectID)
	assert.NotZero(t, result.GroupID)
	assert.NotZero(t, result.FolderID)
	assert.Len(t, result.DashboardIDs, 1)
	assert.NotEmpty(t, result.CorrelationID)
}

func TestRunProvisionMalformedPayload(t *testing.T) {
	runner := newTestRunner(testutils.NewFakeLooker())

	result := runner.RunProvision(context.Background(), []byte(`{not json`))

	assert.Equal(t, provision.StatusValidationError, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestRunProvisionInvalidRequestKeepsIdentifiers(t *testing.T) {
	runner := newTestRunner(testutils.NewFakeLooker())

	raw := []byte(`{"projectId":"AB","groupEmail":"team@acme.com"}`)
	result := runner.RunProvision(context.Background(), raw)

	assert.Equal(t, provision.StatusValidationError, result.Status)
	assert.Equal(t, "AB", result.ProjectID)
	assert.Equal(t, "team@acme.com", result.GroupEmail)
}

func TestRunDecommission(t *testing.T) {
	fake := testutils.NewFakeLooker()
	fake.SeedTemplate(101, "Usage Report")
	runner := newTestRunner(fake)

	provisionResult := runner.RunProvision(context.Background(), []byte(`{"projectId":"acme-prod","groupEmail":"team@acme.com"}`))
	require.Equal(t, provision.StatusOK, provisionResult.Status)

	result := runner.RunDecommission(context.Background(), []byte(`{"projectId":"acme-prod"}`))

	assert.Equal(t, provision.StatusOK, result.Status)
	assert.True(t, result.FolderFound)
	assert.True(t, result.ArchivedFolder)
}

func TestRunDecommissionInvalidProject(t *testing.T) {
	runner := newTestRunner(testutils.NewFakeLooker())

	result := runner.RunDecommission(context.Background(), []byte(`{"projectId":"!!"}`))

	assert.Equal(t, provision.StatusValidationError, result.Status)
	assert.NotEmpty(t, result.Error)
}
