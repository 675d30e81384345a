package discovery

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// ListImageTags lists the tags available for an image reference
// ("registry/repository", no tag) against an OCI-compliant registry.
// Anonymous access is used unless creds is non-nil. Per spec §4.3,
// failure here is non-fatal to the caller: it returns an error for the
// caller to count and otherwise ignore, never a partial tag list.
//
// Grounded on tagscan_job.go's updateImageTags: name.ParseReference +
// remote.List, with remote.WithAuth built from static credentials
// instead of a dockerconfigjson secret (that parsing is the intake
// collaborator's job, not the core's).
func ListImageTags(ctx context.Context, imageRepo string, creds *Credentials) ([]string, error) {
	ref, err := name.ParseReference(imageRepo)
	if err != nil {
		return nil, fmt.Errorf("parsing image reference %q: %w", imageRepo, err)
	}

	opts := []remote.Option{remote.WithContext(ctx)}
	if creds != nil {
		opts = append(opts, remote.WithAuth(&authn.Basic{
			Username: creds.Username,
			Password: creds.Password,
		}))
	}

	tags, err := remote.List(ref.Context(), opts...)
	if err != nil {
		return nil, fmt.Errorf("listing tags for %q: %w", imageRepo, err)
	}
	return tags, nil
}
