// Package deploymentupdate adapts a Deployment's containers to the
// shared reconcile pipeline and runs it under controller-runtime.
// Grounded on the teacher's helmop_controller.go SetupWithManager shape
// (predicates, Reconcile skeleton), with Fleet's sharding dropped since
// Headwind targets a single cluster.
package deploymentupdate

import (
	"context"
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/discovery"
)

// Workload adapts *appsv1.Deployment to corereconcile.Workload: one
// slot per container, keyed by container name. Client is used only by
// CheckHealth, to list the Deployment's pods.
type Workload struct {
	*appsv1.Deployment
	Client client.Client
}

func (w *Workload) Ref() headwindv1alpha1.WorkloadRef {
	return headwindv1alpha1.WorkloadRef{
		Namespace: w.Namespace,
		Kind:      headwindv1alpha1.WorkloadKindDeployment,
		Name:      w.Name,
	}
}

func (w *Workload) UpdateType() headwindv1alpha1.UpdateType {
	return headwindv1alpha1.UpdateTypeImage
}

func (w *Workload) Slots() []corereconcile.Slot {
	var secret *corereconcile.SecretRef
	if refs := w.Spec.Template.Spec.ImagePullSecrets; len(refs) > 0 {
		secret = &corereconcile.SecretRef{Namespace: w.Namespace, Name: refs[0].Name}
	}

	slots := make([]corereconcile.Slot, 0, len(w.Spec.Template.Spec.Containers))
	for _, c := range w.Spec.Template.Spec.Containers {
		repo, tag := splitImage(c.Image)
		slots = append(slots, corereconcile.Slot{
			Name:           c.Name,
			CurrentVersion: tag,
			Source:         discovery.Source{Kind: discovery.SourceOCIImage, ImageRepo: repo},
			Secret:         secret,
		})
	}
	return slots
}

// WithVersion returns a deep copy of the Deployment with slotName's
// container image retargeted at newVersion, as a strategic update
// rather than a patch: Fleet's own bundle reconciler likewise applies
// the full desired object via controllerutil.CreateOrUpdate.
func (w *Workload) WithVersion(slotName, newVersion string) (corereconcile.Workload, error) {
	mutated := w.Deployment.DeepCopy()
	for i := range mutated.Spec.Template.Spec.Containers {
		c := &mutated.Spec.Template.Spec.Containers[i]
		if c.Name != slotName {
			continue
		}
		repo, _ := splitImage(c.Image)
		c.Image = fmt.Sprintf("%s:%s", repo, newVersion)
		return &Workload{Deployment: mutated, Client: w.Client}, nil
	}
	return nil, fmt.Errorf("deployment %s/%s: no container named %s", w.Namespace, w.Name, slotName)
}

// Refresh re-reads the Deployment, for the rollback supervisor's own
// health-sampling schedule.
func (w *Workload) Refresh(ctx context.Context, c client.Client) (corereconcile.Workload, error) {
	fresh := &appsv1.Deployment{}
	if err := c.Get(ctx, client.ObjectKeyFromObject(w), fresh); err != nil {
		return nil, err
	}
	return &Workload{Deployment: fresh, Client: c}, nil
}

// splitImage separates an image reference's repository from its tag.
// A digest suffix ("@sha256:...") is dropped from consideration; an
// untagged image is treated as tag "latest".
func splitImage(image string) (repo, tag string) {
	if at := strings.LastIndex(image, "@"); at != -1 {
		image = image[:at]
	}
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[:colon], image[colon+1:]
	}
	return image, "latest"
}
