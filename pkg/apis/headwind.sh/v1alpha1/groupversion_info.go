// Package v1alpha1 contains the Headwind custom resource API types:
// UpdateRequest (C5) and HelmRelease (the chart-version-mutation
// workload kind, C6). Layout follows the teacher's
// pkg/apis/fleet.cattle.io/v1alpha1 package: a SchemeBuilder per group,
// +kubebuilder markers on each root type, hand-maintained DeepCopy
// methods in place of code-generation output.
// +kubebuilder:object:generate=true
// +groupName=headwind.sh
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

// GroupVersion is the API group and version used to register types.
var GroupVersion = schema.GroupVersion{Group: "headwind.sh", Version: "v1alpha1"}

// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
var SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

// AddToScheme adds the types in this group-version to the given scheme.
var AddToScheme = SchemeBuilder.AddToScheme

func init() {
	SchemeBuilder.Register(&UpdateRequest{}, &UpdateRequestList{})
	SchemeBuilder.Register(&HelmRelease{}, &HelmReleaseList{})
}
