package updaterequeststore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/herrors"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, headwindv1alpha1.AddToScheme(scheme))
	fc := fake.NewClientBuilder().WithScheme(scheme).WithStatusSubresource(&headwindv1alpha1.UpdateRequest{}).Build()
	return New(fc)
}

func TestCreatePendingWhenApprovalRequired(t *testing.T) {
	s := newStore(t)
	ur, err := s.Create(context.Background(), CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Kind: headwindv1alpha1.WorkloadKindDeployment, Name: "nginx"},
		UpdateType:      headwindv1alpha1.UpdateTypeImage,
		ContainerName:   "web",
		CurrentImage:    "nginx:1.25.0",
		NewImage:        "nginx:1.26.0",
		RequireApproval: true,
	})
	require.NoError(t, err)
	require.Equal(t, headwindv1alpha1.PhasePending, ur.Status.Phase)
}

func TestCreateApprovedWhenApprovalNotRequired(t *testing.T) {
	s := newStore(t)
	ur, err := s.Create(context.Background(), CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Kind: headwindv1alpha1.WorkloadKindDeployment, Name: "app"},
		UpdateType:      headwindv1alpha1.UpdateTypeImage,
		RequireApproval: false,
	})
	require.NoError(t, err)
	require.Equal(t, headwindv1alpha1.PhaseApproved, ur.Status.Phase)
}

func TestPendingAllowsExactlyOneOfApproveOrReject(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ur, err := s.Create(ctx, CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
	})
	require.NoError(t, err)

	require.NoError(t, s.Approve(ctx, ur.Name, "alice"))

	err = s.Approve(ctx, ur.Name, "alice")
	require.True(t, herrors.IsInvariant(err), "second approve must fail as an invariant error")

	err = s.Reject(ctx, ur.Name, "bob", "changed my mind")
	require.True(t, herrors.IsInvariant(err), "reject after approve must fail")
}

func TestTerminalPhasesRejectEveryTransition(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ur, err := s.Create(ctx, CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Reject(ctx, ur.Name, "bob", "no"))

	require.True(t, herrors.IsInvariant(s.Approve(ctx, ur.Name, "alice")))
	require.True(t, herrors.IsInvariant(s.MarkCompleted(ctx, ur.Name)))
	require.True(t, herrors.IsInvariant(s.MarkFailed(ctx, ur.Name, "x")))
}

func TestMarkCompletedOnPendingFails(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ur, err := s.Create(ctx, CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
	})
	require.NoError(t, err)

	require.True(t, herrors.IsInvariant(s.MarkCompleted(ctx, ur.Name)))
}

func TestExpireIfDueTransitionsPastExpiry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	ur, err := s.Create(ctx, CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
		ExpiresAt:       &past,
	})
	require.NoError(t, err)

	require.NoError(t, s.ExpireIfDue(ctx, ur.Name))

	fresh := &headwindv1alpha1.UpdateRequest{}
	require.NoError(t, s.Client.Get(ctx, client.ObjectKey{Name: ur.Name}, fresh))
	require.Equal(t, headwindv1alpha1.PhaseExpired, fresh.Status.Phase)

	require.True(t, herrors.IsInvariant(s.Approve(ctx, ur.Name, "alice")), "approve after expiry must fail")
}

func TestExpireIfDueIsNoOpBeforeExpiry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	ur, err := s.Create(ctx, CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
		ExpiresAt:       &future,
	})
	require.NoError(t, err)
	require.NoError(t, s.ExpireIfDue(ctx, ur.Name))

	fresh := &headwindv1alpha1.UpdateRequest{}
	require.NoError(t, s.Client.Get(ctx, client.ObjectKey{Name: ur.Name}, fresh))
	require.Equal(t, headwindv1alpha1.PhasePending, fresh.Status.Phase)
}

func TestDefaultExpiryIsOneDay(t *testing.T) {
	s := newStore(t)
	ur, err := s.Create(context.Background(), CreateSpec{
		Target:          headwindv1alpha1.WorkloadRef{Namespace: "default", Name: "nginx"},
		RequireApproval: true,
	})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(DefaultExpiry), ur.Spec.ExpiresAt.Time, time.Minute)
}
