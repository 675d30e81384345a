// Package helmreleaseupdate adapts a HelmRelease's single chart slot
// to the shared reconcile pipeline. Grounded the same way as
// deploymentupdate, on helmop_controller.go's reconcile shape, but here
// the "container" the teacher iterates becomes a single chart-version
// slot.
package helmreleaseupdate

import (
	"context"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/discovery"
)

// ChartSlot is the single slot name every HelmRelease exposes.
const ChartSlot = "chart"

const ociPrefix = "oci://"

// Workload adapts *headwindv1alpha1.HelmRelease to
// corereconcile.Workload. It has no CheckHealth method: a HelmRelease
// carries no pod-level signal of its own at this layer, so the
// rollback supervisor treats it as unmonitored (see DESIGN.md).
type Workload struct {
	*headwindv1alpha1.HelmRelease
	Client client.Client
}

func (w *Workload) Ref() headwindv1alpha1.WorkloadRef {
	return headwindv1alpha1.WorkloadRef{
		Namespace: w.Namespace,
		Kind:      headwindv1alpha1.WorkloadKindHelmRelease,
		Name:      w.Name,
	}
}

func (w *Workload) UpdateType() headwindv1alpha1.UpdateType {
	return headwindv1alpha1.UpdateTypeHelmChart
}

func (w *Workload) Slots() []corereconcile.Slot {
	current := w.Status.DeployedVersion
	if current == "" {
		current = w.Spec.Chart.Version
	}

	var secret *corereconcile.SecretRef
	if w.Spec.HelmSecretName != "" {
		secret = &corereconcile.SecretRef{Namespace: w.Namespace, Name: w.Spec.HelmSecretName}
	}

	src := discovery.Source{HelmRepoURL: w.Spec.Chart.Repo, HelmChart: w.Spec.Chart.Chart}
	if strings.HasPrefix(w.Spec.Chart.Repo, ociPrefix) {
		src.Kind = discovery.SourceHelmOCI
	} else {
		src.Kind = discovery.SourceHelmHTTP
	}

	return []corereconcile.Slot{{
		Name:           ChartSlot,
		CurrentVersion: current,
		Source:         src,
		Secret:         secret,
	}}
}

// WithVersion returns a deep copy of the HelmRelease with its chart
// version pinned to newVersion. slotName is always ChartSlot; any other
// value is a programmer error in the shared pipeline.
func (w *Workload) WithVersion(slotName, newVersion string) (corereconcile.Workload, error) {
	mutated := w.HelmRelease.DeepCopy()
	mutated.Spec.Chart.Version = newVersion
	return &Workload{HelmRelease: mutated, Client: w.Client}, nil
}

// Refresh re-reads the HelmRelease.
func (w *Workload) Refresh(ctx context.Context, c client.Client) (corereconcile.Workload, error) {
	fresh := &headwindv1alpha1.HelmRelease{}
	if err := c.Get(ctx, client.ObjectKeyFromObject(w), fresh); err != nil {
		return nil, err
	}
	return &Workload{HelmRelease: fresh, Client: c}, nil
}
