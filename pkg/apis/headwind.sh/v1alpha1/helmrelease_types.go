package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// HelmChartSpec is the chart coordinates for a HelmRelease. It mirrors
// the teacher's HelmOpSpec/HelmOptions shape (Repo, Chart, Version)
// trimmed to the fields C6 actually mutates or reads.
type HelmChartSpec struct {
	// Repo is an HTTP Helm repository URL, or an oci:// reference when
	// the chart is hosted in an OCI registry.
	Repo string `json:"repo,omitempty"`

	Chart string `json:"chart"`

	// Version is the pinned or constraint version string. C6 mutates
	// this field in place when a candidate is selected.
	Version string `json:"version,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=headwind,path=helmreleases
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Chart",type=string,JSONPath=`.spec.chart.chart`
// +kubebuilder:printcolumn:name="Repo",type=string,JSONPath=`.spec.chart.repo`
// +kubebuilder:printcolumn:name="Version",type=string,JSONPath=`.status.deployedVersion`

// HelmRelease is Headwind's own lightweight chart-version workload
// kind (spec §3's "HelmRelease"), distinct from Flux's type of the same
// name. spec.md leaves the concrete schema to the implementer; this one
// is modeled on the closest concrete shape in the retrieval pack.
type HelmRelease struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   HelmReleaseSpec   `json:"spec,omitempty"`
	Status HelmReleaseStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// HelmReleaseList contains a list of HelmRelease.
type HelmReleaseList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HelmRelease `json:"items"`
}

type HelmReleaseSpec struct {
	Chart HelmChartSpec `json:"chart"`

	// HelmSecretName names the auth secret with credentials for a
	// private Helm repository or OCI registry.
	HelmSecretName string `json:"helmSecretName,omitempty"`

	InsecureSkipTLSVerify bool `json:"insecureSkipTLSVerify,omitempty"`
}

type HelmReleaseStatus struct {
	// DeployedVersion is the last version HelmRelease observed as
	// deployed. When set, it is the "current_version" C3/C6 compare
	// candidates against; when empty, Spec.Chart.Version is used.
	DeployedVersion string `json:"deployedVersion,omitempty"`

	LastPollingTime *metav1.Time `json:"lastPollingTime,omitempty"`
}
