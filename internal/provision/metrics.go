package provision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provisioning run metrics
var (
	provisionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looker_provisioner_runs_total",
			Help: "Total number of provisioning runs by terminal status",
		},
		[]string{"status"}, // ok, error, validation_error
	)

	provisionStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "looker_provisioner_stage_duration_seconds",
			Help:    "Duration of each provisioning stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // group, saml_mapping, folder, dashboards
	)

	remoteEntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looker_provisioner_remote_creates_total",
			Help: "Remote Looker entities created by type",
		},
		[]string{"entity"}, // group, saml_mapping, folder, dashboard
	)

	remoteEntitiesReused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looker_provisioner_remote_reuses_total",
			Help: "Existing remote Looker entities reused by type",
		},
		[]string{"entity"},
	)
)
