package events

// Event type constants following CloudEvents naming conventions
// Format: <reverse-dns>.<resource>.<action>.<version>

const (
	// Event source.
	EventSourceProvisioner = "io.iamcloud.looker-provisioner"

	// Provisioning lifecycle events.
	EventTypeProvisionRequested = "io.iamcloud.looker.provision.requested.v1"
	EventTypeProvisionCompleted = "io.iamcloud.looker.provision.completed.v1"
	EventTypeProvisionRejected  = "io.iamcloud.looker.provision.rejected.v1"
	EventTypeProvisionFailed    = "io.iamcloud.looker.provision.failed.v1"

	// Decommission lifecycle events.
	EventTypeDecommissionRequested = "io.iamcloud.looker.decommission.requested.v1"
	EventTypeDecommissionCompleted = "io.iamcloud.looker.decommission.completed.v1"
	EventTypeDecommissionFailed    = "io.iamcloud.looker.decommission.failed.v1"
)
