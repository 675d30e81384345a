package intake

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"
)

func newTestScheme(t *testing.T) *runtime.Scheme {
	s := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(s))
	require.NoError(t, headwindv1alpha1.AddToScheme(s))
	return s
}

func TestDispatcher_MatchingDeploymentIsEnqueued(t *testing.T) {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "app", Image: "registry.example.com/myteam/myapp:1.3.0"},
					},
				},
			},
		},
	}
	other := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "unrelated", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "app", Image: "docker.io/library/redis:7"},
					},
				},
			},
		},
	}

	c := fake.NewClientBuilder().WithScheme(newTestScheme(t)).WithObjects(dep, other).Build()
	d := NewDispatcher(c, logr.Discard())

	go d.Run(context.Background())
	d.Enqueue(Event{Registry: "registry.example.com", Repository: "myteam/myapp", Tag: "1.4.0"})

	select {
	case ev := <-d.DeploymentEvents:
		require.Equal(t, "web", ev.Object.GetName())
	case <-time.After(2 * time.Second):
		t.Fatal("expected matching deployment to be enqueued")
	}
}

func TestDispatcher_NoMatchDoesNotEnqueue(t *testing.T) {
	other := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "unrelated", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "app", Image: "docker.io/library/redis:7"},
					},
				},
			},
		},
	}

	c := fake.NewClientBuilder().WithScheme(newTestScheme(t)).WithObjects(other).Build()
	d := NewDispatcher(c, logr.Discard())

	go d.Run(context.Background())
	d.Enqueue(Event{Registry: "registry.example.com", Repository: "myteam/myapp", Tag: "1.4.0"})

	select {
	case ev := <-d.DeploymentEvents:
		t.Fatalf("unexpected enqueue: %v", ev.Object.GetName())
	case <-time.After(300 * time.Millisecond):
	}
}
