package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/discovery"
)

// secretCredentialFetcher implements discovery.CredentialFetcher,
// reading the {namespace, name} secret reference and decoding it per
// spec §4.3's "external collaborator returns {username, password}"
// contract. The core (internal/discovery) never parses docker-config
// JSON itself; this is that parsing, grounded on the teacher's
// imagescan/tagscan_job.go authFromSecret, generalized since the
// contract here has no registry argument to select among multiple
// auths entries by host: one entry is used, and when the secret holds
// several, which one is not defined (Go map iteration order). A secret
// with a single entry, one image-pull secret per registry, is
// unaffected.
func secretCredentialFetcher(c client.Client) discovery.CredentialFetcher {
	return func(ctx context.Context, namespace, name string) (*discovery.Credentials, error) {
		secret := &corev1.Secret{}
		if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret); err != nil {
			return nil, err
		}

		switch secret.Type {
		case corev1.SecretTypeDockerConfigJson:
			var cfg struct {
				Auths map[string]authn.AuthConfig `json:"auths"`
			}
			if err := json.Unmarshal(secret.Data[corev1.DockerConfigJsonKey], &cfg); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", corev1.DockerConfigJsonKey, err)
			}
			for _, auth := range cfg.Auths {
				return &discovery.Credentials{Username: auth.Username, Password: auth.Password}, nil
			}
			return nil, nil

		case corev1.SecretTypeBasicAuth:
			return &discovery.Credentials{
				Username: string(secret.Data[corev1.BasicAuthUsernameKey]),
				Password: string(secret.Data[corev1.BasicAuthPasswordKey]),
			}, nil

		default:
			return nil, fmt.Errorf("unsupported secret type %q for %s/%s", secret.Type, namespace, name)
		}
	}
}
