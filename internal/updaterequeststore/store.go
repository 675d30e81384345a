// Package updaterequeststore implements Headwind's UpdateRequest Store
// (C5): CRUD plus lifecycle transitions over the headwind.sh/v1alpha1
// UpdateRequest custom resource. It is the only place that writes these
// records (spec §4.5). Grounded on the teacher's
// retry.RetryOnConflict optimistic-concurrency idiom
// (helmop_controller.go's addFinalizer/updateStatus), generalized from
// "retry with client-go's default backoff" to the spec's
// explicit "retry up to 3 times, then surface a transient error" rule.
package updaterequeststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rancher/wrangler/v3/pkg/condition"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/herrors"
	"github.com/headwind-sh/headwind/internal/metrics"
)

// AcceptedCondition tracks whether an UpdateRequest was ultimately
// accepted (Approved/Completed/Expired) or not (Rejected/Failed),
// alongside Phase. Grounded on the teacher's helmop_controller.go
// setAcceptedConditionHelm, generalized from one controller's accept/
// reject outcome to the store's phase transitions.
const AcceptedCondition condition.Cond = "Accepted"

// setAcceptedCondition mirrors setAcceptedConditionHelm: it sets
// AcceptedCondition's status and message from err (nil clears the
// condition's error), and only bumps LastUpdated when the condition
// actually changed.
func setAcceptedCondition(status *headwindv1alpha1.UpdateRequestStatus, err error) {
	cond := AcceptedCondition
	orig := status.DeepCopy()
	cond.SetError(status, "", err)
	if !equality.Semantic.DeepEqual(orig, status) {
		cond.LastUpdated(status, time.Now().UTC().Format(time.RFC3339))
	}
}

// DefaultExpiry is applied when CreateSpec.ExpiresAt is unset.
const DefaultExpiry = 24 * time.Hour

// transitionRetry caps optimistic-concurrency retries at 3 attempts per
// spec §4.5, rather than client-go's retry.DefaultBackoff schedule.
var transitionRetry = wait.Backoff{
	Steps:    3,
	Duration: 10 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// Store is the thin state-transition layer over the UpdateRequest CRD.
type Store struct {
	client.Client
}

// New builds a Store over an existing controller-runtime client.
func New(c client.Client) *Store {
	return &Store{Client: c}
}

// CreateSpec is the caller-supplied portion of a new UpdateRequest; the
// store fills in the name, phase and expiry.
type CreateSpec struct {
	Target          headwindv1alpha1.WorkloadRef
	UpdateType      headwindv1alpha1.UpdateType
	ContainerName   string
	CurrentImage    string
	NewImage        string
	PolicyKind      string
	RequireApproval bool
	Reason          string
	ExpiresAt       *time.Time
}

// Create persists a new UpdateRequest. Name is
// "<workload-name>-<creation-unix-seconds>"; initial phase is Pending
// if RequireApproval, else Approved directly (spec §4.5).
func (s *Store) Create(ctx context.Context, spec CreateSpec) (*headwindv1alpha1.UpdateRequest, error) {
	now := time.Now().UTC()

	phase := headwindv1alpha1.PhaseApproved
	if spec.RequireApproval {
		phase = headwindv1alpha1.PhasePending
	}

	expiresAt := now.Add(DefaultExpiry)
	if spec.ExpiresAt != nil {
		expiresAt = *spec.ExpiresAt
	}
	expiresAtMeta := metav1.NewTime(expiresAt)
	lastUpdated := metav1.NewTime(now)

	ur := &headwindv1alpha1.UpdateRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name: fmt.Sprintf("%s-%d", spec.Target.Name, now.Unix()),
		},
		Spec: headwindv1alpha1.UpdateRequestSpec{
			Target:          spec.Target,
			UpdateType:      spec.UpdateType,
			ContainerName:   spec.ContainerName,
			CurrentImage:    spec.CurrentImage,
			NewImage:        spec.NewImage,
			PolicyKind:      spec.PolicyKind,
			RequireApproval: spec.RequireApproval,
			Reason:          spec.Reason,
			ExpiresAt:       &expiresAtMeta,
		},
		Status: headwindv1alpha1.UpdateRequestStatus{
			Phase:       phase,
			LastUpdated: &lastUpdated,
		},
	}
	setAcceptedCondition(&ur.Status, nil)

	if err := s.Client.Create(ctx, ur); err != nil {
		metrics.TransientErrors.WithLabelValues("updaterequeststore").Inc()
		return nil, herrors.Transient("create UpdateRequest", err)
	}
	metrics.UpdateRequestTransitions.WithLabelValues(string(phase)).Inc()
	return ur, nil
}

// List reads every UpdateRequest, optionally narrowed by the
// namespace the targeted workload lives in (UpdateRequest itself is
// cluster-scoped, per spec §3, so this filters Spec.Target.Namespace).
func (s *Store) List(ctx context.Context, namespace string) ([]headwindv1alpha1.UpdateRequest, error) {
	var list headwindv1alpha1.UpdateRequestList
	if err := s.Client.List(ctx, &list); err != nil {
		return nil, herrors.Transient("list UpdateRequests", err)
	}
	if namespace == "" {
		return list.Items, nil
	}
	out := make([]headwindv1alpha1.UpdateRequest, 0, len(list.Items))
	for _, ur := range list.Items {
		if ur.Spec.Target.Namespace == namespace {
			out = append(out, ur)
		}
	}
	return out, nil
}

// FindInFlight returns a Pending or Approved record already referencing
// (target, container, newImage) for the given workload, if one
// exists, so reconcilers can suppress duplicate UpdateRequests (spec
// §4.6 "at most one in-flight UpdateRequest at a time").
func (s *Store) FindInFlight(ctx context.Context, target headwindv1alpha1.WorkloadRef, container, newImage string) (*headwindv1alpha1.UpdateRequest, bool, error) {
	items, err := s.List(ctx, target.Namespace)
	if err != nil {
		return nil, false, err
	}
	for i := range items {
		ur := items[i]
		if ur.Spec.Target != target {
			continue
		}
		if ur.Spec.ContainerName != container || ur.Spec.NewImage != newImage {
			continue
		}
		if ur.Status.Phase == headwindv1alpha1.PhasePending || ur.Status.Phase == headwindv1alpha1.PhaseApproved {
			return &ur, true, nil
		}
	}
	return nil, false, nil
}

// noOp is a sentinel mutate result meaning "nothing to do", e.g.
// ExpireIfDue called before a record is actually due. It is distinct
// from a real error: the caller neither retries nor surfaces it.
var noOp = fmt.Errorf("update request store: no-op transition")

func (s *Store) transition(ctx context.Context, name string, mutate func(ur *headwindv1alpha1.UpdateRequest) error) error {
	var lastErr error
	var newPhase headwindv1alpha1.Phase
	err := retry.OnError(transitionRetry, apierrors.IsConflict, func() error {
		ur := &headwindv1alpha1.UpdateRequest{}
		if err := s.Client.Get(ctx, types.NamespacedName{Name: name}, ur); err != nil {
			lastErr = err
			return err
		}
		if err := mutate(ur); err != nil {
			if err == noOp {
				lastErr = nil
				return nil
			}
			// Invariant errors are not conflicts; stop retrying and
			// surface them as-is.
			lastErr = err
			return nil
		}
		var condErr error
		if ur.Status.Phase == headwindv1alpha1.PhaseFailed || ur.Status.Phase == headwindv1alpha1.PhaseRejected {
			condErr = errors.New(ur.Status.Message)
		}
		setAcceptedCondition(&ur.Status, condErr)

		now := metav1.NewTime(time.Now().UTC())
		ur.Status.LastUpdated = &now
		if err := s.Client.Status().Update(ctx, ur); err != nil {
			lastErr = err
			return err
		}
		newPhase = ur.Status.Phase
		lastErr = nil
		return nil
	})
	if err != nil {
		metrics.TransientErrors.WithLabelValues("updaterequeststore").Inc()
		return herrors.Transient(fmt.Sprintf("transition UpdateRequest %s", name), err)
	}
	if lastErr == nil && newPhase != "" {
		metrics.UpdateRequestTransitions.WithLabelValues(string(newPhase)).Inc()
	}
	return lastErr
}

func illegalTransition(from headwindv1alpha1.Phase, to string) error {
	return herrors.Invariant("UpdateRequest transition", fmt.Errorf("cannot %s from phase %s", to, from))
}

// Approve transitions name from Pending to Approved.
func (s *Store) Approve(ctx context.Context, name, approver string) error {
	return s.transition(ctx, name, func(ur *headwindv1alpha1.UpdateRequest) error {
		if ur.Status.Phase != headwindv1alpha1.PhasePending {
			return illegalTransition(ur.Status.Phase, "approve")
		}
		now := metav1.NewTime(time.Now().UTC())
		ur.Status.Phase = headwindv1alpha1.PhaseApproved
		ur.Status.ApprovedBy = approver
		ur.Status.ApprovedAt = &now
		return nil
	})
}

// Reject transitions name from Pending to Rejected.
func (s *Store) Reject(ctx context.Context, name, rejector, reason string) error {
	return s.transition(ctx, name, func(ur *headwindv1alpha1.UpdateRequest) error {
		if ur.Status.Phase != headwindv1alpha1.PhasePending {
			return illegalTransition(ur.Status.Phase, "reject")
		}
		now := metav1.NewTime(time.Now().UTC())
		ur.Status.Phase = headwindv1alpha1.PhaseRejected
		ur.Status.RejectedBy = rejector
		ur.Status.RejectedAt = &now
		ur.Status.Message = reason
		return nil
	})
}

// MarkCompleted transitions name from Approved to Completed.
func (s *Store) MarkCompleted(ctx context.Context, name string) error {
	return s.transition(ctx, name, func(ur *headwindv1alpha1.UpdateRequest) error {
		if ur.Status.Phase != headwindv1alpha1.PhaseApproved {
			return illegalTransition(ur.Status.Phase, "mark_completed")
		}
		ur.Status.Phase = headwindv1alpha1.PhaseCompleted
		return nil
	})
}

// MarkFailed transitions name from Approved to Failed.
func (s *Store) MarkFailed(ctx context.Context, name, reason string) error {
	return s.transition(ctx, name, func(ur *headwindv1alpha1.UpdateRequest) error {
		if ur.Status.Phase != headwindv1alpha1.PhaseApproved {
			return illegalTransition(ur.Status.Phase, "mark_failed")
		}
		ur.Status.Phase = headwindv1alpha1.PhaseFailed
		ur.Status.Message = reason
		return nil
	})
}

// ExpireIfDue transitions name to Expired if it is Pending or Approved
// and past its ExpiresAt. It is a no-op, not an error, when the record
// isn't due yet.
func (s *Store) ExpireIfDue(ctx context.Context, name string) error {
	return s.transition(ctx, name, func(ur *headwindv1alpha1.UpdateRequest) error {
		if ur.Status.Phase != headwindv1alpha1.PhasePending && ur.Status.Phase != headwindv1alpha1.PhaseApproved {
			return noOp
		}
		if ur.Spec.ExpiresAt == nil || time.Now().UTC().Before(ur.Spec.ExpiresAt.Time) {
			return noOp
		}
		ur.Status.Phase = headwindv1alpha1.PhaseExpired
		return nil
	})
}
