package discovery

import (
	"context"
	"fmt"
	"strings"

	"oras.land/oras-go/v2/registry/remote"
	orasauth "oras.land/oras-go/v2/registry/remote/auth"
)

// ociURLPrefix marks a Helm chart reference hosted in an OCI registry,
// same convention the teacher uses in bundlereader/charturl.go.
const ociURLPrefix = "oci://"

// ListOCIHelmVersions lists the tags published for a Helm chart hosted
// in an OCI registry. repoURI may carry the "oci://" prefix or not.
// Grounded on bundlereader/charturl.go's getOCIRepoClient + GetOCITag,
// split here into "list" (this function) and "rank" (internal/discovery/rank.go)
// since C3's contract separates discovery from policy selection.
func ListOCIHelmVersions(ctx context.Context, repoURI string, creds *Credentials) ([]string, error) {
	repoURI = strings.TrimPrefix(repoURI, ociURLPrefix)

	r, err := remote.NewRepository(repoURI)
	if err != nil {
		return nil, fmt.Errorf("creating OCI client for %q: %w", repoURI, err)
	}

	if creds != nil {
		cred := orasauth.Credential{Username: creds.Username, Password: creds.Password}
		r.Client = &orasauth.Client{
			Credential: func(ctx context.Context, registry string) (orasauth.Credential, error) {
				return cred, nil
			},
		}
	}

	var tags []string
	if err := r.Tags(ctx, "", func(page []string) error {
		tags = append(tags, page...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("listing tags for %q: %w", repoURI, err)
	}
	return tags, nil
}
