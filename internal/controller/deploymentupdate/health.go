package deploymentupdate

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
)

const maxRestartCount = 5

var badWaitingReasons = map[string]bool{
	"CrashLoopBackOff": true,
	"ImagePullBackOff": true,
	"ErrImagePull":     true,
}

// CheckHealth implements corereconcile.HealthChecker, per spec §4.7's
// exact rules: healthy requires every desired replica ready, no pod
// in a crash/image-pull loop, and no container over the restart
// threshold.
func (w *Workload) CheckHealth(ctx context.Context) (corereconcile.HealthStatus, error) {
	for _, cond := range w.Status.Conditions {
		if cond.Type == "Progressing" && cond.Status == corev1.ConditionFalse && cond.Reason == "ProgressDeadlineExceeded" {
			return corereconcile.HealthStatus{State: corereconcile.Failed, Reason: "ProgressDeadlineExceeded"}, nil
		}
	}

	// Failure signals are checked before readiness: a container in a
	// crash or image-pull loop is never ready.
	pods, err := w.pods(ctx)
	if err != nil {
		return corereconcile.HealthStatus{}, err
	}
	allReady := true
	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.RestartCount > maxRestartCount {
				return corereconcile.HealthStatus{State: corereconcile.Failed, Reason: "restart count exceeded"}, nil
			}
			if cs.State.Waiting != nil && badWaitingReasons[cs.State.Waiting.Reason] {
				return corereconcile.HealthStatus{State: corereconcile.Failed, Reason: cs.State.Waiting.Reason}, nil
			}
			if !cs.Ready {
				allReady = false
			}
		}
	}

	replicas := int32(1)
	if w.Spec.Replicas != nil {
		replicas = *w.Spec.Replicas
	}
	if replicas == 0 || w.Status.ReadyReplicas != replicas || w.Status.UpdatedReplicas < replicas || !allReady {
		return corereconcile.HealthStatus{State: corereconcile.Progressing}, nil
	}

	return corereconcile.HealthStatus{State: corereconcile.Healthy}, nil
}

func (w *Workload) pods(ctx context.Context) (*corev1.PodList, error) {
	pods := &corev1.PodList{}
	err := w.Client.List(ctx, pods,
		client.InNamespace(w.Namespace),
		client.MatchingLabels(w.Spec.Selector.MatchLabels),
	)
	return pods, err
}
