// Package crdinstall installs Headwind's custom resource definitions
// at startup. Grounded on the teacher's pkg/crd/crds.go
// (factory/list/wait pattern: define a CRD, batch-create, wait for
// establishment), adapted to the stock
// k8s.io/apiextensions-apiserver client since wrangler's own pkg/crd
// factory package isn't part of this module's wired dependency set
// (see SPEC_FULL.md §4.5).
package crdinstall

import (
	"context"
	"fmt"
	"time"

	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apiextv1client "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/typed/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/rest"
)

const group = "headwind.sh"
const crdVersion = "v1alpha1"

var permissiveSchema = apiextv1.CustomResourceValidation{
	OpenAPIV3Schema: &apiextv1.JSONSchemaProps{
		Type:                   "object",
		XPreserveUnknownFields: boolPtr(true),
	},
}

func boolPtr(b bool) *bool { return &b }

func definitions() []*apiextv1.CustomResourceDefinition {
	return []*apiextv1.CustomResourceDefinition{
		{
			ObjectMeta: metav1.ObjectMeta{Name: "updaterequests." + group},
			Spec: apiextv1.CustomResourceDefinitionSpec{
				Group: group,
				Names: apiextv1.CustomResourceDefinitionNames{
					Plural:     "updaterequests",
					Singular:   "updaterequest",
					Kind:       "UpdateRequest",
					ShortNames: []string{"ur"},
					Categories: []string{"headwind"},
				},
				Scope: apiextv1.ClusterScoped,
				Versions: []apiextv1.CustomResourceDefinitionVersion{
					{
						Name:    crdVersion,
						Served:  true,
						Storage: true,
						Schema:  &permissiveSchema,
						Subresources: &apiextv1.CustomResourceSubresources{
							Status: &apiextv1.CustomResourceSubresourceStatus{},
						},
						AdditionalPrinterColumns: []apiextv1.CustomResourceColumnDefinition{
							{Name: "Target", Type: "string", JSONPath: ".spec.target.name"},
							{Name: "Container", Type: "string", JSONPath: ".spec.containerName"},
							{Name: "Current", Type: "string", JSONPath: ".spec.currentImage"},
							{Name: "New", Type: "string", JSONPath: ".spec.newImage"},
							{Name: "Policy", Type: "string", JSONPath: ".spec.policyKind"},
							{Name: "Phase", Type: "string", JSONPath: ".status.phase"},
							{Name: "Age", Type: "date", JSONPath: ".metadata.creationTimestamp"},
						},
					},
				},
			},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "helmreleases." + group},
			Spec: apiextv1.CustomResourceDefinitionSpec{
				Group: group,
				Names: apiextv1.CustomResourceDefinitionNames{
					Plural:     "helmreleases",
					Singular:   "helmrelease",
					Kind:       "HelmRelease",
					Categories: []string{"headwind"},
				},
				Scope: apiextv1.NamespaceScoped,
				Versions: []apiextv1.CustomResourceDefinitionVersion{
					{
						Name:    crdVersion,
						Served:  true,
						Storage: true,
						Schema:  &permissiveSchema,
						Subresources: &apiextv1.CustomResourceSubresources{
							Status: &apiextv1.CustomResourceSubresourceStatus{},
						},
						AdditionalPrinterColumns: []apiextv1.CustomResourceColumnDefinition{
							{Name: "Chart", Type: "string", JSONPath: ".spec.chart.chart"},
							{Name: "Repo", Type: "string", JSONPath: ".spec.chart.repo"},
							{Name: "Version", Type: "string", JSONPath: ".status.deployedVersion"},
						},
					},
				},
			},
		},
	}
}

// Install creates (or updates, on an existing install) every Headwind
// CRD and waits for each to become Established, the same
// batch-create-then-wait shape as the teacher's
// factory.BatchCreateCRDs(...).BatchWait().
func Install(ctx context.Context, cfg *rest.Config) error {
	cs, err := apiextclientset.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("building apiextensions client: %w", err)
	}
	crds := cs.ApiextensionsV1().CustomResourceDefinitions()

	for _, def := range definitions() {
		existing, err := crds.Get(ctx, def.Name, metav1.GetOptions{})
		switch {
		case apierrors.IsNotFound(err):
			if _, err := crds.Create(ctx, def, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("creating CRD %s: %w", def.Name, err)
			}
		case err != nil:
			return fmt.Errorf("getting CRD %s: %w", def.Name, err)
		default:
			def.ResourceVersion = existing.ResourceVersion
			if _, err := crds.Update(ctx, def, metav1.UpdateOptions{}); err != nil {
				return fmt.Errorf("updating CRD %s: %w", def.Name, err)
			}
		}

		if err := waitEstablished(ctx, crds, def.Name); err != nil {
			return err
		}
	}
	return nil
}

// waitEstablished polls until name's Established condition is True, or
// the context is done.
func waitEstablished(ctx context.Context, crds apiextv1client.CustomResourceDefinitionInterface, name string) error {
	return wait.PollUntilContextCancel(ctx, 200*time.Millisecond, true, func(ctx context.Context) (bool, error) {
		crd, err := crds.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		for _, cond := range crd.Status.Conditions {
			if cond.Type == apiextv1.Established && cond.Status == apiextv1.ConditionTrue {
				return true, nil
			}
			if cond.Type == apiextv1.NamesAccepted && cond.Status == apiextv1.ConditionFalse {
				return false, fmt.Errorf("CRD %s: names not accepted: %s", name, cond.Reason)
			}
		}
		return false, nil
	})
}
