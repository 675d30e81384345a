// Package corereconcile implements the shared reconcile pipeline both
// kinds of watched workloads run through (spec §4.6): derive policy,
// discover candidates, pick a survivor, then either mutate directly or
// park an UpdateRequest for approval. Grounded on the teacher's
// helmop_controller.go Reconcile/calculateBundle/updateStatus shape,
// generalized from one concrete kind (HelmOp) to an abstract Workload
// so Deployment and HelmRelease share one pipeline instead of
// duplicating it.
package corereconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/discovery"
	"github.com/headwind-sh/headwind/internal/herrors"
	"github.com/headwind-sh/headwind/internal/history"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/updaterequeststore"
	"github.com/headwind-sh/headwind/internal/workloadpolicy"
)

// requeue intervals, spec §4.6.
const (
	RequeueNoPolicy      = 3600 * time.Second
	RequeueNoCandidate   = 300 * time.Second
	RequeuePending       = 300 * time.Second
	RequeueTransientBase = 60 * time.Second

	// maxTransientBackoff caps the exponential backoff a workload's
	// consecutive transient failures can reach.
	maxTransientBackoff = 30 * time.Minute

	// maxTransientShift bounds the doubling exponent so the backoff
	// computation can't overflow time.Duration on a very long streak
	// of failures; it saturates at maxTransientBackoff well before this.
	maxTransientShift = 10
)

// SecretRef names a namespaced secret holding registry or Helm repo
// credentials.
type SecretRef struct {
	Namespace string
	Name      string
}

// Slot is one updatable unit within a workload: a container's image, or
// (for a HelmRelease) the single chart version.
type Slot struct {
	Name           string
	CurrentVersion string
	Source         discovery.Source
	Secret         *SecretRef
}

// Workload abstracts a Deployment or HelmRelease enough for the shared
// pipeline to drive it. Implementations live in deploymentupdate and
// helmreleaseupdate.
type Workload interface {
	client.Object
	Ref() headwindv1alpha1.WorkloadRef
	UpdateType() headwindv1alpha1.UpdateType
	Slots() []Slot
	// WithVersion returns a deep copy of the workload with slotName's
	// version/image set to newVersion, wrapped back into a Workload so
	// the caller can hand it to the rollback supervisor or Refresh it
	// later. Its DeepCopyObject yields the underlying API object, which
	// is what the caller passes to client.Update.
	WithVersion(slotName, newVersion string) (Workload, error)
	// Refresh re-reads the workload from c, returning a new Workload
	// reflecting current cluster state. Used by the rollback supervisor,
	// which samples health on its own schedule rather than off a single
	// snapshot taken at mutation time.
	Refresh(ctx context.Context, c client.Client) (Workload, error)
}

// Discoverer lists the candidate versions/tags available for a Slot's
// Source. Implemented by *discovery.BreakerRegistry; declared here as
// an interface (rather than importing the concrete type) so reconciler
// tests can substitute a fake registry discovery without exercising
// real OCI/Helm network calls.
type Discoverer interface {
	ListVersions(ctx context.Context, src discovery.Source, creds *discovery.Credentials) ([]string, error)
}

// RollbackStarter hands a freshly mutated workload off to the rollback
// supervisor (C7). Implemented by internal/rollback.Supervisor; defined
// here (rather than imported) so corereconcile never depends on
// internal/rollback.
type RollbackStarter interface {
	Start(ctx context.Context, wl Workload, slotName string, cfg workloadpolicy.RollbackConfig)
}

// Pipeline holds the collaborators the shared reconcile logic needs.
type Pipeline struct {
	Client            client.Client
	Discovery         Discoverer
	CredentialFetcher discovery.CredentialFetcher
	Store             *updaterequeststore.Store
	Rollback          RollbackStarter
	Log               logr.Logger

	mu                sync.Mutex
	transientFailures map[string]int
}

func reconcileKey(ref headwindv1alpha1.WorkloadRef) string {
	return string(ref.Kind) + "/" + ref.Namespace + "/" + ref.Name
}

// recordTransientFailure increments key's consecutive-failure counter
// and returns the new count, so the caller can compute an escalating
// backoff instead of always requeuing at the flat 60s base.
func (p *Pipeline) recordTransientFailure(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transientFailures == nil {
		p.transientFailures = make(map[string]int)
	}
	p.transientFailures[key]++
	return p.transientFailures[key]
}

// resetTransientFailures clears key's counter once a reconcile pass
// completes without a transient error.
func (p *Pipeline) resetTransientFailures(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.transientFailures, key)
}

// transientBackoff doubles RequeueTransientBase per consecutive
// failure (60s, 120s, 240s, ...), capped at maxTransientBackoff.
func transientBackoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	shift := failures - 1
	if shift > maxTransientShift {
		return maxTransientBackoff
	}
	d := RequeueTransientBase << shift
	if d <= 0 || d > maxTransientBackoff {
		return maxTransientBackoff
	}
	return d
}

// Reconcile runs the common pipeline (spec §4.6 steps 2-4) over an
// already-fetched workload. Step 1 (read, handle absence) is the
// per-kind reconciler's job, since it owns the client.Get/IsNotFound
// check.
func (p *Pipeline) Reconcile(ctx context.Context, wl Workload) (time.Duration, error) {
	log := p.Log.WithValues("workload", wl.Ref())

	rp, err := workloadpolicy.FromAnnotations(wl.GetAnnotations())
	if err != nil {
		log.Error(err, "malformed policy annotation, treating as none for this pass")
		return RequeueNoPolicy, nil
	}
	if rp.Policy.Kind == policy.KindNone {
		return RequeueNoPolicy, nil
	}

	rollbackCfg, err := workloadpolicy.RollbackFromAnnotations(wl.GetAnnotations())
	if err != nil {
		log.Error(err, "malformed rollback annotation, disabling auto-rollback for this pass")
		rollbackCfg = workloadpolicy.RollbackConfig{}
	}

	key := reconcileKey(wl.Ref())
	requeue := RequeueNoPolicy
	transientFailed := false
	for _, slot := range wl.Slots() {
		if !rp.Governs(slot.Name) {
			continue
		}
		slotRequeue, err := p.reconcileSlot(ctx, wl, slot, rp, rollbackCfg)
		if err != nil {
			if herrors.IsTransient(err) {
				log.Error(err, "transient error reconciling slot", "slot", slot.Name)
				metrics.TransientErrors.WithLabelValues("corereconcile").Inc()
				transientFailed = true
				continue
			}
			p.resetTransientFailures(key)
			metrics.Reconciles.WithLabelValues(string(wl.Ref().Kind), "error").Inc()
			return 0, err
		}
		if slotRequeue < requeue {
			requeue = slotRequeue
		}
	}

	if transientFailed {
		failures := p.recordTransientFailure(key)
		backoff := transientBackoff(failures)
		log.Info("backing off after transient failure", "consecutiveFailures", failures, "requeueAfter", backoff)
		metrics.Reconciles.WithLabelValues(string(wl.Ref().Kind), "transient").Inc()
		return backoff, nil
	}

	p.resetTransientFailures(key)
	metrics.Reconciles.WithLabelValues(string(wl.Ref().Kind), "ok").Inc()
	return requeue, nil
}

func (p *Pipeline) reconcileSlot(ctx context.Context, wl Workload, slot Slot, rp workloadpolicy.ResourcePolicy, rollbackCfg workloadpolicy.RollbackConfig) (time.Duration, error) {
	log := p.Log.WithValues("workload", wl.Ref(), "slot", slot.Name)

	var creds *discovery.Credentials
	if slot.Secret != nil && p.CredentialFetcher != nil {
		c, err := p.CredentialFetcher(ctx, slot.Secret.Namespace, slot.Secret.Name)
		if err != nil {
			return 0, herrors.Transient("fetch credentials", err)
		}
		creds = c
	}

	candidates, err := p.Discovery.ListVersions(ctx, slot.Source, creds)
	if err != nil {
		return 0, herrors.Transient("list versions", err)
	}

	best, ok := discovery.SelectCandidate(rp.Policy, slot.CurrentVersion, candidates)
	if !ok {
		return RequeueNoCandidate, nil
	}

	if entry, ok := history.EntryAt(wl, slot.Name, 0); ok {
		elapsed := time.Since(entry.Timestamp)
		minInterval := time.Duration(rp.MinUpdateIntervalSec) * time.Second
		if elapsed < minInterval {
			return minInterval - elapsed, nil
		}
	}

	// UpdateRequests carry full references: "<image repository>:<tag>"
	// for an image slot, "<chart>:<version>" for a Helm chart slot.
	refPrefix := slot.Source.ImageRepo
	if wl.UpdateType() == headwindv1alpha1.UpdateTypeHelmChart {
		refPrefix = slot.Source.HelmChart
	}
	newRef := refPrefix + ":" + best

	existing, inFlight, err := p.Store.FindInFlight(ctx, wl.Ref(), slot.Name, newRef)
	if err != nil {
		return 0, err
	}
	if inFlight {
		log.V(1).Info("in-flight UpdateRequest already covers this candidate", "updateRequest", existing.Name)
		return RequeuePending, nil
	}

	if !rp.RequireApproval {
		return 0, p.mutate(ctx, wl, slot, best, rollbackCfg)
	}

	_, err = p.Store.Create(ctx, updaterequeststore.CreateSpec{
		Target:          wl.Ref(),
		UpdateType:      wl.UpdateType(),
		ContainerName:   slot.Name,
		CurrentImage:    refPrefix + ":" + slot.CurrentVersion,
		NewImage:        newRef,
		PolicyKind:      string(rp.Policy.Kind),
		RequireApproval: true,
	})
	if err != nil {
		return 0, err
	}
	return RequeuePending, nil
}

// Mutate applies a new version to slot, records history, and starts
// rollback monitoring. updaterequestwatch calls it once an
// UpdateRequest transitions to Approved, passing the record's NewImage
// ("<repository>:<tag>" or "<chart>:<version>"); the rollback
// supervisor passes a bare version from history. Only the part after
// the last ':' is applied, so both forms set the same version.
func (p *Pipeline) Mutate(ctx context.Context, wl Workload, slot Slot, newVersion, updateRequestName, approvedBy string, rollbackCfg workloadpolicy.RollbackConfig) error {
	if i := strings.LastIndex(newVersion, ":"); i >= 0 {
		newVersion = newVersion[i+1:]
	}
	return p.mutateNamed(ctx, wl, slot, newVersion, updateRequestName, approvedBy, rollbackCfg)
}

func (p *Pipeline) mutate(ctx context.Context, wl Workload, slot Slot, newVersion string, rollbackCfg workloadpolicy.RollbackConfig) error {
	return p.mutateNamed(ctx, wl, slot, newVersion, "", "", rollbackCfg)
}

func (p *Pipeline) mutateNamed(ctx context.Context, wl Workload, slot Slot, newVersion, updateRequestName, approvedBy string, rollbackCfg workloadpolicy.RollbackConfig) error {
	mutated, err := wl.WithVersion(slot.Name, newVersion)
	if err != nil {
		return fmt.Errorf("building mutated object for slot %s: %w", slot.Name, err)
	}
	// The scheme registers the API types, not the Workload wrappers, so
	// Update is given the underlying object.
	if err := p.Client.Update(ctx, mutated.DeepCopyObject().(client.Object)); err != nil {
		return herrors.Transient("update workload", err)
	}
	if err := history.Record(ctx, p.Log, p.Client, mutated, slot.Name, newVersion, updateRequestName, approvedBy); err != nil {
		return err
	}
	if p.Rollback != nil && rollbackCfg.Enabled {
		p.Rollback.Start(ctx, mutated, slot.Name, rollbackCfg)
	}
	return nil
}
