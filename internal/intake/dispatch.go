package intake

import (
	"context"
	"path"
	"strings"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/controller/corereconcile"
	"github.com/headwind-sh/headwind/internal/controller/deploymentupdate"
	"github.com/headwind-sh/headwind/internal/controller/helmreleaseupdate"
	"github.com/headwind-sh/headwind/internal/discovery"
)

// Dispatcher drains normalized Events and enqueues a GenericEvent, on
// the matching kind's channel, for every workload whose image or chart
// matches (registry, repository), ignoring tag (spec §4.8). The
// channels are read by deploymentupdate.Reconciler and
// helmreleaseupdate.Reconciler via source.Channel, the same external-
// event idiom the teacher's drift_controller.go uses for its own
// channel-fed reconciler.
type Dispatcher struct {
	Client client.Client
	Log    logr.Logger

	DeploymentEvents  chan event.GenericEvent
	HelmReleaseEvents chan event.GenericEvent

	// queue is unbounded in effect: Enqueue spawns a goroutine per
	// event rather than blocking the HTTP handler on a fixed-size
	// buffer, matching spec §4.8's "intake channel is unbounded".
	queue chan Event
}

// NewDispatcher builds a Dispatcher. Run must be started in its own
// goroutine to drain queued events.
func NewDispatcher(c client.Client, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		Client:            c,
		Log:               log,
		DeploymentEvents:  make(chan event.GenericEvent),
		HelmReleaseEvents: make(chan event.GenericEvent),
		queue:             make(chan Event),
	}
}

// Enqueue accepts a parsed Event without blocking the caller.
func (d *Dispatcher) Enqueue(ev Event) {
	go func() { d.queue <- ev }()
}

// Run drains queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			if err := d.dispatch(ctx, ev); err != nil {
				d.Log.Error(err, "dispatching intake event failed", "registry", ev.Registry, "repository", ev.Repository)
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) error {
	deployments := &appsv1.DeploymentList{}
	if err := d.Client.List(ctx, deployments); err != nil {
		return err
	}
	for i := range deployments.Items {
		dep := &deployments.Items[i]
		wl := &deploymentupdate.Workload{Deployment: dep, Client: d.Client}
		if matchesAny(wl.Slots(), ev) {
			d.DeploymentEvents <- event.GenericEvent{Object: dep}
		}
	}

	releases := &headwindv1alpha1.HelmReleaseList{}
	if err := d.Client.List(ctx, releases); err != nil {
		return err
	}
	for i := range releases.Items {
		hr := &releases.Items[i]
		wl := &helmreleaseupdate.Workload{HelmRelease: hr, Client: d.Client}
		if matchesAny(wl.Slots(), ev) {
			d.HelmReleaseEvents <- event.GenericEvent{Object: hr}
		}
	}
	return nil
}

// matchesAny reports whether any slot's source refers to the same
// (registry, repository) as ev, ignoring tag.
func matchesAny(slots []corereconcile.Slot, ev Event) bool {
	for _, s := range slots {
		switch s.Source.Kind {
		case discovery.SourceOCIImage:
			host, repo := discovery.SplitRepo(s.Source.ImageRepo)
			if host == ev.Registry && repo == ev.Repository {
				return true
			}
		case discovery.SourceHelmOCI:
			host, repo := splitOCIChartRef(s.Source.HelmRepoURL, s.Source.HelmChart)
			if host == ev.Registry && repo == ev.Repository {
				return true
			}
		}
	}
	return false
}

// splitOCIChartRef derives the (registry, repository) pair for a Helm
// OCI chart reference, so it can be compared against an intake event
// the same way an image reference is: the chart repo URL (minus its
// "oci://" scheme) supplies the host and path, with the chart name
// appended if the repo URL doesn't already end in it.
func splitOCIChartRef(repoURL, chart string) (host, repo string) {
	trimmed := strings.TrimPrefix(repoURL, "oci://")
	host, repoPath := discovery.SplitRepo(trimmed)
	if chart != "" && path.Base(repoPath) != chart {
		repoPath = path.Join(repoPath, chart)
	}
	return host, repoPath
}
