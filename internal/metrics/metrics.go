// Package metrics exposes the narrow counter set spec §7 requires:
// "each transient path increments a counter that the metrics collaborator
// exposes". Grounded on the teacher's internal/metrics package — the
// ObjCounter/promauto.NewCounterVec pattern and registration through
// controller-runtime's metrics.Registry — generalized from Fleet's wide
// per-object-kind gauge set down to the handful of counters Headwind's
// core actually owns. The HTTP exposition server itself is the
// external, non-core metrics collaborator (spec §9).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const metricPrefix = "headwind"

var (
	// TransientErrors counts every transient-error path taken,
	// labeled by the originating component, per spec §7.
	TransientErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "transient_errors_total",
			Help:      "Count of transient errors encountered, by component.",
		},
		[]string{"component"},
	)

	// Reconciles counts reconcile passes by workload kind and
	// outcome (ok, transient, error).
	Reconciles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "reconciles_total",
			Help:      "Count of reconcile passes, by workload kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// Rollbacks counts rollback supervision outcomes: rolled_back,
	// healthy, timeout, no_previous_version.
	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "rollbacks_total",
			Help:      "Count of rollback supervision outcomes.",
		},
		[]string{"outcome"},
	)

	// UpdateRequestTransitions counts UpdateRequest phase transitions.
	UpdateRequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "updaterequest_transitions_total",
			Help:      "Count of UpdateRequest phase transitions, by resulting phase.",
		},
		[]string{"phase"},
	)
)

// Register adds Headwind's counters to controller-runtime's default
// registry. promauto already registers them at init time against the
// global prometheus.DefaultRegisterer; Register exists so the command
// entrypoint has one explicit call to make that visible, the way the
// teacher's RegisterMetrics does for its own collector set.
func Register() {
	metrics.Registry.MustRegister(TransientErrors, Reconciles, Rollbacks, UpdateRequestTransitions)
}
