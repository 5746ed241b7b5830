package provision

import "fmt"

// ValidationError indicates malformed or invalid input. It maps to a 4xx at
// the transport boundary and is never worth re-delivering.
type ValidationError struct {
	Reason string
}

// Error returns the validation failure reason.
func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ProvisioningError indicates a failed remote operation or a data-integrity
// condition in the Looker instance. Runs that fail with it are expected to be
// re-delivered by the transport; the provisioner itself never retries.
type ProvisioningError struct {
	Op  string
	Err error
}

// Error returns a formatted string naming the failed operation.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// newProvisioningError wraps err with the failed operation name.
func newProvisioningError(op string, err error) *ProvisioningError {
	return &ProvisioningError{Op: op, Err: err}
}
