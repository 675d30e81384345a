package v1alpha1

import (
	"github.com/rancher/wrangler/v3/pkg/genericcondition"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// UpdateType distinguishes what kind of field an UpdateRequest proposes
// to change.
type UpdateType string

const (
	UpdateTypeImage     UpdateType = "Image"
	UpdateTypeHelmChart UpdateType = "HelmChart"
)

// Phase is the UpdateRequest lifecycle state (spec §3). Once a record
// leaves Pending it may never re-enter it; Approved may only move to
// Completed or Failed; the remaining phases are terminal.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseApproved  Phase = "Approved"
	PhaseRejected  Phase = "Rejected"
	PhaseCompleted Phase = "Completed"
	PhaseFailed    Phase = "Failed"
	PhaseExpired   Phase = "Expired"
)

// WorkloadKind enumerates the watched workload kinds.
type WorkloadKind string

const (
	WorkloadKindDeployment  WorkloadKind = "Deployment"
	WorkloadKindHelmRelease WorkloadKind = "HelmRelease"
)

// WorkloadRef identifies the workload an UpdateRequest targets.
type WorkloadRef struct {
	Namespace string       `json:"namespace"`
	Kind      WorkloadKind `json:"kind"`
	Name      string       `json:"name"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster,categories=headwind,shortName=ur
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Target",type=string,JSONPath=`.spec.target.name`
// +kubebuilder:printcolumn:name="Container",type=string,JSONPath=`.spec.containerName`
// +kubebuilder:printcolumn:name="Current",type=string,JSONPath=`.spec.currentImage`
// +kubebuilder:printcolumn:name="New",type=string,JSONPath=`.spec.newImage`
// +kubebuilder:printcolumn:name="Policy",type=string,JSONPath=`.spec.policyKind`
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// UpdateRequest is the persistent, approval-gated record of a proposed
// or in-flight workload update (spec §3, §4.5). It is cluster-scoped;
// its name is "<workload-name>-<creation-unix-seconds>".
type UpdateRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   UpdateRequestSpec   `json:"spec,omitempty"`
	Status UpdateRequestStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// UpdateRequestList contains a list of UpdateRequest.
type UpdateRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []UpdateRequest `json:"items"`
}

// UpdateRequestSpec is immutable once created; transitions only ever
// touch UpdateRequestStatus.
type UpdateRequestSpec struct {
	Target WorkloadRef `json:"target"`

	UpdateType UpdateType `json:"updateType"`

	// ContainerName is required when UpdateType == Image.
	ContainerName string `json:"containerName,omitempty"`

	CurrentImage string `json:"currentImage"`
	NewImage     string `json:"newImage"`

	PolicyKind string `json:"policyKind"`

	// RequireApproval is snapshotted from ResourcePolicy at creation.
	RequireApproval bool `json:"requireApproval"`

	Reason string `json:"reason,omitempty"`

	// +nullable
	ExpiresAt *metav1.Time `json:"expiresAt,omitempty"`
}

// UpdateRequestStatus records the lifecycle state and its audit trail.
type UpdateRequestStatus struct {
	Phase Phase `json:"phase,omitempty"`

	ApprovedBy string       `json:"approvedBy,omitempty"`
	RejectedBy string       `json:"rejectedBy,omitempty"`
	ApprovedAt *metav1.Time `json:"approvedAt,omitempty"`
	RejectedAt *metav1.Time `json:"rejectedAt,omitempty"`

	Message     string       `json:"message,omitempty"`
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`

	// Conditions carries the Accepted condition maintained by
	// internal/updaterequeststore alongside Phase, in the same
	// genericcondition.GenericCondition shape the teacher's own
	// status types use.
	Conditions []genericcondition.GenericCondition `json:"conditions,omitempty"`
}
