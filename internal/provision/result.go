package provision

import "errors"

// Result statuses surfaced to the transport layer.
const (
	StatusOK              = "ok"
	StatusError           = "error"
	StatusValidationError = "validation_error"
)

// Result is the outcome of one provisioning invocation. It is built once at
// the end of a run and never mutated afterwards.
type Result struct {
	Status        string  `json:"status"`
	ProjectID     string  `json:"projectId"`
	GroupEmail    string  `json:"groupEmail"`
	GroupID       int64   `json:"groupId,omitempty"`
	FolderID      int64   `json:"folderId,omitempty"`
	DashboardIDs  []int64 `json:"dashboardIds,omitempty"`
	CorrelationID string  `json:"correlationId,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// ErrorResult builds the error-shaped result for a failed run, classifying
// the error into the validation_error / error taxonomy.
func ErrorResult(err error, projectID, groupEmail, correlationID string) Result {
	status := StatusError

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		status = StatusValidationError
	}

	return Result{
		Status:        status,
		ProjectID:     projectID,
		GroupEmail:    groupEmail,
		CorrelationID: correlationID,
		Error:         err.Error(),
	}
}
