package discovery

import (
	"context"
	"fmt"
	"strings"
)

// Source names one discoverable location: an OCI image repository, or a
// Helm chart in an HTTP index or an OCI registry.
type Source struct {
	Kind        SourceKind
	ImageRepo   string // set when Kind == SourceOCIImage
	HelmRepoURL string // set when Kind == SourceHelmHTTP or SourceHelmOCI
	HelmChart   string // set when Kind == SourceHelmHTTP or SourceHelmOCI
}

// Host extracts the breaker-registry key component for a Source: the
// image registry host, or the Helm repo URL with a leading "https://"
// or "http://" removed. Any path is kept, and other schemes such as
// "oci://" are left in place.
func (s Source) Host() string {
	switch s.Kind {
	case SourceOCIImage:
		return RegistryHost(s.ImageRepo)
	default:
		return strings.TrimPrefix(strings.TrimPrefix(s.HelmRepoURL, "https://"), "http://")
	}
}

// RegistryHost extracts an image reference's registry host: the portion
// before the first "/" if it looks like a host (contains "." or ":", or
// is "localhost"); otherwise the image is unqualified and defaults to
// docker.io. Shared by discovery and the event intake, which both need
// to key an image reference by its registry.
func RegistryHost(repo string) string {
	host, _ := SplitRepo(repo)
	return host
}

// SplitRepo splits an image reference into its registry host and the
// remaining repository path, applying the same rule as RegistryHost. A
// reference with no qualifying host returns ("docker.io", repo)
// unchanged, since it names a path on the default registry already.
func SplitRepo(repo string) (host, path string) {
	first, rest, found := strings.Cut(repo, "/")
	if found && (first == "localhost" || strings.ContainsAny(first, ".:")) {
		return first, rest
	}
	return "docker.io", repo
}

// ListVersions dispatches a Source to the matching fetch function,
// through the breaker keyed by (kind, host).
func (r *BreakerRegistry) ListVersions(ctx context.Context, src Source, creds *Credentials) ([]string, error) {
	host := src.Host()
	switch src.Kind {
	case SourceOCIImage:
		return r.Do(ctx, src.Kind, host, func(ctx context.Context) ([]string, error) {
			return ListImageTags(ctx, src.ImageRepo, creds)
		})
	case SourceHelmHTTP:
		return r.Do(ctx, src.Kind, host, func(ctx context.Context) ([]string, error) {
			return ListHelmChartVersions(ctx, src.HelmRepoURL, src.HelmChart, creds)
		})
	case SourceHelmOCI:
		return r.Do(ctx, src.Kind, host, func(ctx context.Context) ([]string, error) {
			return ListOCIHelmVersions(ctx, src.HelmRepoURL, creds)
		})
	default:
		return nil, fmt.Errorf("discovery: unknown source kind %q", src.Kind)
	}
}
