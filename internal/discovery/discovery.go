// Package discovery implements Headwind's Version Discovery (C3): OCI
// tag listing for container images, HTTP and OCI Helm chart index
// lookups, and survivor ranking against the Policy Engine. Grounded on
// the teacher's internal/cmd/controller/imagescan/tagscan_job.go (OCI
// tag listing, secret-based auth) and internal/bundlereader/charturl.go
// (Helm index fetch, OCI Helm tag resolution).
package discovery

import "context"

// Credentials is the {username, password} shape the core consumes from
// an external collaborator (spec §4.3): the core itself never parses
// docker-config JSON or any other secret format in the decision path.
type Credentials struct {
	Username string
	Password string
}

// CredentialFetcher resolves a secret reference to Credentials. Nil
// credentials (and a nil error) mean "use anonymous access".
type CredentialFetcher func(ctx context.Context, namespace, secretName string) (*Credentials, error)

// SourceKind distinguishes the three discovery capabilities, used as
// part of the circuit breaker key.
type SourceKind string

const (
	SourceOCIImage SourceKind = "oci-image"
	SourceHelmHTTP SourceKind = "helm-http"
	SourceHelmOCI  SourceKind = "helm-oci"
)
