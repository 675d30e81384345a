package controller

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind.sh/v1alpha1"

	"github.com/headwind-sh/headwind/internal/workloadpolicy"
)

func newDeployment(name string, annotations map[string]string, image string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   "default",
			Annotations: annotations,
		},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: "app", Image: image}},
				},
			},
		},
	}
}

func reconcileDeployment(name string) (ctrl.Result, error) {
	return deploymentReconciler.Reconcile(ctx, ctrl.Request{
		NamespacedName: types.NamespacedName{Namespace: "default", Name: name},
	})
}

var _ = Describe("Deployment image updates", func() {
	// spec.md §8: patch-auto-apply. A patch-level candidate on a policy
	// that doesn't require approval is applied directly to the
	// Deployment's image.
	When("a patch-level candidate is available and approval isn't required", func() {
		It("applies the new image directly", func() {
			dep := newDeployment("patch-app", map[string]string{
				workloadpolicy.AnnotationPolicy:          "patch",
				workloadpolicy.AnnotationRequireApproval: "false",
			}, "app:1.2.3")
			Expect(k8sClient.Create(ctx, dep)).To(Succeed())
			discoveryCandidates = []string{"1.2.4"}

			_, err := reconcileDeployment("patch-app")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func(g Gomega) string {
				fresh := &appsv1.Deployment{}
				g.Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(dep), fresh)).To(Succeed())
				return fresh.Spec.Template.Spec.Containers[0].Image
			}).Should(Equal("app:1.2.4"))
		})
	})

	// spec.md §8: minor-bump-with-approval. A minor-level candidate on a
	// policy that requires approval parks an UpdateRequest instead of
	// mutating the workload, and leaves it there until approved.
	When("a minor-level candidate requires approval", func() {
		It("parks an UpdateRequest and leaves the Deployment untouched until approved", func() {
			dep := newDeployment("minor-app", map[string]string{
				workloadpolicy.AnnotationPolicy: "minor",
			}, "app:1.2.3")
			Expect(k8sClient.Create(ctx, dep)).To(Succeed())
			discoveryCandidates = []string{"1.3.0"}

			_, err := reconcileDeployment("minor-app")
			Expect(err).NotTo(HaveOccurred())

			var urs []headwindv1alpha1.UpdateRequest
			Eventually(func(g Gomega) []headwindv1alpha1.UpdateRequest {
				var err error
				urs, err = store.List(ctx, "default")
				g.Expect(err).NotTo(HaveOccurred())
				return urs
			}).Should(HaveLen(1))
			Expect(urs[0].Spec.NewImage).To(Equal("app:1.3.0"))
			Expect(urs[0].Status.Phase).To(Equal(headwindv1alpha1.PhasePending))

			Consistently(func(g Gomega) string {
				fresh := &appsv1.Deployment{}
				g.Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(dep), fresh)).To(Succeed())
				return fresh.Spec.Template.Spec.Containers[0].Image
			}).Should(Equal("app:1.2.3"))

			By("approving the record and letting updaterequestwatch apply it")
			Expect(store.Approve(ctx, urs[0].Name, "alice")).To(Succeed())
			_, err = updateRequestReconciler.Reconcile(ctx, ctrl.Request{
				NamespacedName: types.NamespacedName{Name: urs[0].Name},
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func(g Gomega) string {
				fresh := &appsv1.Deployment{}
				g.Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(dep), fresh)).To(Succeed())
				return fresh.Spec.Template.Spec.Containers[0].Image
			}).Should(Equal("app:1.3.0"))
		})
	})

	// spec.md §8: duplicate-push. Reconciling twice in a row against the
	// same candidate set must not create a second in-flight record for
	// the same target/container/image triple.
	When("the same candidate is observed twice before it's resolved", func() {
		It("doesn't create a second in-flight UpdateRequest", func() {
			dep := newDeployment("dup-app", map[string]string{
				workloadpolicy.AnnotationPolicy: "minor",
			}, "app:1.2.3")
			Expect(k8sClient.Create(ctx, dep)).To(Succeed())
			discoveryCandidates = []string{"1.3.0"}

			_, err := reconcileDeployment("dup-app")
			Expect(err).NotTo(HaveOccurred())
			_, err = reconcileDeployment("dup-app")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func(g Gomega) []headwindv1alpha1.UpdateRequest {
				urs, err := store.List(ctx, "default")
				g.Expect(err).NotTo(HaveOccurred())
				return urs
			}).Should(HaveLen(1))
		})
	})
})

var _ = Describe("HelmRelease chart updates", func() {
	// spec.md §8: glob-filter. A glob pattern selects the highest
	// matching candidate out of a mixed set and, because approval is
	// required by default, parks an UpdateRequest rather than mutating
	// the chart version in place.
	When("a glob pattern matches a subset of the discovered chart versions", func() {
		It("selects the highest match and parks an UpdateRequest", func() {
			hr := &headwindv1alpha1.HelmRelease{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "redis",
					Namespace: "default",
					Annotations: map[string]string{
						workloadpolicy.AnnotationPolicy:  "glob",
						workloadpolicy.AnnotationPattern: "7.*",
					},
				},
				Spec: headwindv1alpha1.HelmReleaseSpec{
					Chart: headwindv1alpha1.HelmChartSpec{
						Repo:    "https://charts.example.com",
						Chart:   "redis",
						Version: "7.0.4",
					},
				},
			}
			Expect(k8sClient.Create(ctx, hr)).To(Succeed())
			discoveryCandidates = []string{"7.0.5", "7.1.0", "8.0.0"}

			_, err := helmReleaseReconciler.Reconcile(ctx, ctrl.Request{
				NamespacedName: types.NamespacedName{Namespace: "default", Name: "redis"},
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func(g Gomega) []headwindv1alpha1.UpdateRequest {
				urs, err := store.List(ctx, "default")
				g.Expect(err).NotTo(HaveOccurred())
				return urs
			}).Should(HaveLen(1))

			urs, err := store.List(ctx, "default")
			Expect(err).NotTo(HaveOccurred())
			Expect(urs[0].Spec.NewImage).To(Equal("redis:7.1.0"))

			fresh := &headwindv1alpha1.HelmRelease{}
			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(hr), fresh)).To(Succeed())
			Expect(fresh.Spec.Chart.Version).To(Equal("7.0.4"))
		})
	})
})

var _ = Describe("UpdateRequest approval lifecycle", func() {
	// spec.md §8: expired-approval. An Approved record observed past its
	// ExpiresAt must transition to Expired and must not be applied.
	When("an Approved record is observed past its expiry", func() {
		It("transitions to Expired without mutating the target", func() {
			dep := newDeployment("expiring-app", nil, "app:1.2.3")
			Expect(k8sClient.Create(ctx, dep)).To(Succeed())

			expired := metav1.NewTime(time.Now().Add(-1 * time.Hour))
			ur := &headwindv1alpha1.UpdateRequest{
				ObjectMeta: metav1.ObjectMeta{Name: "expiring-app-1"},
				Spec: headwindv1alpha1.UpdateRequestSpec{
					Target:        headwindv1alpha1.WorkloadRef{Namespace: "default", Kind: headwindv1alpha1.WorkloadKindDeployment, Name: "expiring-app"},
					UpdateType:    headwindv1alpha1.UpdateTypeImage,
					ContainerName: "app",
					CurrentImage:  "app:1.2.3",
					NewImage:      "app:1.2.4",
					ExpiresAt:     &expired,
				},
				Status: headwindv1alpha1.UpdateRequestStatus{
					Phase:      headwindv1alpha1.PhaseApproved,
					ApprovedBy: "alice",
				},
			}
			Expect(k8sClient.Create(ctx, ur)).To(Succeed())
			Expect(k8sClient.Status().Update(ctx, ur)).To(Succeed())

			_, err := updateRequestReconciler.Reconcile(ctx, ctrl.Request{
				NamespacedName: types.NamespacedName{Name: "expiring-app-1"},
			})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func(g Gomega) headwindv1alpha1.Phase {
				fresh := &headwindv1alpha1.UpdateRequest{}
				g.Expect(k8sClient.Get(ctx, types.NamespacedName{Name: "expiring-app-1"}, fresh)).To(Succeed())
				return fresh.Status.Phase
			}).Should(Equal(headwindv1alpha1.PhaseExpired))

			fresh := &appsv1.Deployment{}
			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(dep), fresh)).To(Succeed())
			Expect(fresh.Spec.Template.Spec.Containers[0].Image).To(Equal("app:1.2.3"))
		})
	})
})
