package deploymentupdate

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/source"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
)

// Reconciler watches Deployments and drives them through the shared
// update pipeline. IntakeEvents, when set, feeds in registry-push
// notifications from C8 alongside the normal watch, the same
// source.Channel idiom the teacher's drift_controller.go uses for its
// own externally-driven reconciler.
type Reconciler struct {
	client.Client
	Pipeline     *corereconcile.Pipeline
	IntakeEvents chan event.GenericEvent
}

func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	bldr := ctrl.NewControllerManagedBy(mgr).
		For(&appsv1.Deployment{},
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
	logger := log.FromContext(ctx).WithName("deploymentupdate")

	dep := &appsv1.Deployment{}
	if err := r.Get(ctx, req.NamespacedName, dep); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	requeueAfter, err := r.Pipeline.Reconcile(ctx, &Workload{Deployment: dep, Client: r.Client})
	if err != nil {
		logger.Error(err, "reconcile failed")
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: requeueAfter}, nil
}
