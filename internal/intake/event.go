// Package intake implements Event Intake (C8): normalizing registry
// webhook payloads into reconcile enqueues. Grounded on the teacher's
// drift_controller.go, which feeds an externally-driven channel of
// event.TypedGenericEvent through source.Channel into a reconciler's
// work queue; here the channel carries normalized registry push events
// instead of drift signals, and intake fans each one out to every
// Deployment/HelmRelease whose image or chart matches.
package intake

import (
	"encoding/json"
	"fmt"

	"github.com/headwind-sh/headwind/internal/discovery"
)

// Event is the normalized shape every recognized webhook payload is
// parsed into, spec §4.8.
type Event struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

type distributionPayload struct {
	Events []struct {
		Action string `json:"action"`
		Target struct {
			Repository string `json:"repository"`
			Tag        string `json:"tag"`
			Digest     string `json:"digest"`
		} `json:"target"`
	} `json:"events"`
}

type dockerHubPayload struct {
	PushData struct {
		Tag string `json:"tag"`
	} `json:"push_data"`
	Repository struct {
		RepoName string `json:"repo_name"`
	} `json:"repository"`
}

// ParsePayload recognizes the generic OCI distribution spec webhook
// shape and the Docker Hub webhook shape, per spec §4.8.
func ParsePayload(body []byte) (Event, error) {
	var dist distributionPayload
	if err := json.Unmarshal(body, &dist); err == nil {
		for _, e := range dist.Events {
			if e.Action != "push" {
				continue
			}
			registry, repo := discovery.SplitRepo(e.Target.Repository)
			return Event{
				Registry:   registry,
				Repository: repo,
				Tag:        e.Target.Tag,
				Digest:     e.Target.Digest,
			}, nil
		}
	}

	var hub dockerHubPayload
	if err := json.Unmarshal(body, &hub); err == nil && hub.Repository.RepoName != "" {
		return Event{
			Registry:   "docker.io",
			Repository: hub.Repository.RepoName,
			Tag:        hub.PushData.Tag,
		}, nil
	}

	return Event{}, fmt.Errorf("intake: unrecognized webhook payload")
}
