// Package updaterequestwatch implements the separate watch on
// UpdateRequest that dispatches each Approved-phase record into the
// shared mutation path (spec §4.6: "Observing UpdateRequest
// transitions"). Rejected and Expired records are no-ops; Pending
// records are left for the owning workload's own reconcile pass.
package updaterequestwatch

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/controller/deploymentupdate"
	"github.com/headwind-sh/headwind/internal/controller/helmreleaseupdate"
	"github.com/headwind-sh/headwind/internal/updaterequeststore"
	"github.com/headwind-sh/headwind/internal/workloadpolicy"
)

// Reconciler watches UpdateRequest and applies Approved records.
type Reconciler struct {
	client.Client
	Pipeline *corereconcile.Pipeline
	Store    *updaterequeststore.Store
}

func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&headwindv1alpha1.UpdateRequest{}).
		Complete(r)
}

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithName("updaterequestwatch")

	ur := &headwindv1alpha1.UpdateRequest{}
	if err := r.Get(ctx, req.NamespacedName, ur); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if err := r.Store.ExpireIfDue(ctx, ur.Name); err != nil {
		return ctrl.Result{}, err
	}
	// Re-read: ExpireIfDue may have just moved this record to Expired.
	if err := r.Get(ctx, req.NamespacedName, ur); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	switch ur.Status.Phase {
	case headwindv1alpha1.PhaseApproved:
		// fall through to apply below
	default:
		return ctrl.Result{}, nil
	}

	wl, slot, err := r.resolve(ctx, ur)
	if err != nil {
		logger.Error(err, "resolving UpdateRequest target failed")
		return ctrl.Result{}, r.Store.MarkFailed(ctx, ur.Name, err.Error())
	}

	rollbackCfg, err := workloadpolicy.RollbackFromAnnotations(wl.GetAnnotations())
	if err != nil {
		rollbackCfg = workloadpolicy.RollbackConfig{}
	}

	if err := r.Pipeline.Mutate(ctx, wl, slot, ur.Spec.NewImage, ur.Name, ur.Status.ApprovedBy, rollbackCfg); err != nil {
		logger.Error(err, "applying approved UpdateRequest failed")
		return ctrl.Result{}, r.Store.MarkFailed(ctx, ur.Name, err.Error())
	}

	return ctrl.Result{}, r.Store.MarkCompleted(ctx, ur.Name)
}

func (r *Reconciler) resolve(ctx context.Context, ur *headwindv1alpha1.UpdateRequest) (corereconcile.Workload, corereconcile.Slot, error) {
	key := types.NamespacedName{Namespace: ur.Spec.Target.Namespace, Name: ur.Spec.Target.Name}

	switch ur.Spec.Target.Kind {
	case headwindv1alpha1.WorkloadKindDeployment:
		dep := &appsv1.Deployment{}
		if err := r.Get(ctx, key, dep); err != nil {
			return nil, corereconcile.Slot{}, err
		}
		wl := &deploymentupdate.Workload{Deployment: dep, Client: r.Client}
		for _, s := range wl.Slots() {
			if s.Name == ur.Spec.ContainerName {
				return wl, s, nil
			}
		}
		return nil, corereconcile.Slot{}, fmt.Errorf("container %s not found on %s", ur.Spec.ContainerName, key)

	case headwindv1alpha1.WorkloadKindHelmRelease:
		hr := &headwindv1alpha1.HelmRelease{}
		if err := r.Get(ctx, key, hr); err != nil {
			return nil, corereconcile.Slot{}, err
		}
		wl := &helmreleaseupdate.Workload{HelmRelease: hr, Client: r.Client}
		slots := wl.Slots()
		return wl, slots[0], nil

	default:
		return nil, corereconcile.Slot{}, fmt.Errorf("unknown workload kind %q", ur.Spec.Target.Kind)
	}
}
