package helmreleaseupdate

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/source"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
)

// Reconciler watches HelmReleases and drives them through the shared
// update pipeline. IntakeEvents, when set, feeds in registry-push
// notifications from C8, the same as deploymentupdate.Reconciler.
type Reconciler struct {
	client.Client
	Pipeline     *corereconcile.Pipeline
	IntakeEvents chan event.GenericEvent
}

func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	bldr := ctrl.NewControllerManagedBy(mgr).
		For(&headwindv1alpha1.HelmRelease{},
			builder.WithPredicates(
				predicate.Or(
					predicate.GenerationChangedPredicate{},
					predicate.AnnotationChangedPredicate{},
					predicate.LabelChangedPredicate{},
				),
			),
		)
	if r.IntakeEvents != nil {
		bldr = bldr.WatchesRawSource(source.Channel(r.IntakeEvents, &handler.EnqueueRequestForObject{}))
	}
	return bldr.Complete(r)
}

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithName("helmreleaseupdate")

	hr := &headwindv1alpha1.HelmRelease{}
	if err := r.Get(ctx, req.NamespacedName, hr); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	requeueAfter, err := r.Pipeline.Reconcile(ctx, &Workload{HelmRelease: hr, Client: r.Client})
	if err != nil {
		logger.Error(err, "reconcile failed")
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: requeueAfter}, nil
}
