package corereconcile

import "context"

// State is the coarse health verdict the rollback supervisor (C7)
// drives off of, per spec §4.7.
type State string

const (
	Healthy     State = "Healthy"
	Failed      State = "Failed"
	Progressing State = "Progressing"
)

// HealthStatus is one sampled verdict; Reason is set only for Failed.
type HealthStatus struct {
	State  State
	Reason string
}

// HealthChecker is implemented by Workload kinds that expose a concrete
// health signal the rollback supervisor can sample. deploymentupdate's
// Workload implements it over ready/updated replica counts and pod
// container statuses; helmreleaseupdate's does not, since a HelmRelease
// has no pod-level signal of its own at this layer (see DESIGN.md).
type HealthChecker interface {
	CheckHealth(ctx context.Context) (HealthStatus, error)
}
