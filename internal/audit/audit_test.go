package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamcloud/looker-provisioner/internal/provision"
)

func TestRecordProvision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO provisioner_runs").
		WithArgs(
			"provision",
			"corr-1",
			"acme-prod",
			"team@acme.com",
			provision.StatusOK,
			int64(10),
			int64(20),
			"[31,32]",
			nil,
			int64(1500),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewWithDB(db)
	store.RecordProvision(context.Background(), provision.Result{
		Status:        provision.StatusOK,
		ProjectID:     "acme-prod",
		GroupEmail:    "team@acme.com",
		GroupID:       10,
		FolderID:      20,
		DashboardIDs:  []int64{31, 32},
		CorrelationID: "corr-1",
	}, 1500*time.Millisecond)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProvisionFailedRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO provisioner_runs").
		WithArgs(
			"provision",
			"corr-2",
			"acme-prod",
			"team@acme.com",
			provision.StatusError,
			nil,
			nil,
			"null",
			"create_group: boom",
			int64(0),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewWithDB(db)
	store.RecordProvision(context.Background(), provision.Result{
		Status:        provision.StatusError,
		ProjectID:     "acme-prod",
		GroupEmail:    "team@acme.com",
		CorrelationID: "corr-2",
		Error:         "create_group: boom",
	}, 0)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDecommission(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO provisioner_runs").
		WithArgs(
			"decommission",
			"corr-3",
			"acme-prod",
			"",
			provision.StatusOK,
			nil,
			nil,
			"[]",
			nil,
			int64(200),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewWithDB(db)
	store.RecordDecommission(context.Background(), provision.DecommissionResult{
		Status:        provision.StatusOK,
		ProjectID:     "acme-prod",
		CorrelationID: "corr-3",
	}, 200*time.Millisecond)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProvisionDatabaseErrorIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO provisioner_runs").
		WillReturnError(errors.New("connection lost"))

	store := NewWithDB(db)

	// Must not panic or surface the error.
	store.RecordProvision(context.Background(), provision.Result{
		Status:    provision.StatusOK,
		ProjectID: "acme-prod",
	}, time.Second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilStoreIsNoOp(t *testing.T) {
	var store *Store

	store.RecordProvision(context.Background(), provision.Result{}, 0)
	store.RecordDecommission(context.Background(), provision.DecommissionResult{}, 0)
	assert.NoError(t, store.Close())
}
