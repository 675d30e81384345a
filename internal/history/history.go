// Package history implements Headwind's History Store (C4): a
// per-container ring buffer of prior images, persisted as a JSON array
// in the headwind.sh/update-history annotation on the workload itself.
// Grounded on the teacher's client.MergeFrom + retry.RetryOnConflict
// status-patch idiom (helmop_controller.go's updateStatus) and, for the
// exact annotation key and ring depth, on
// original_source/src/rollback/mod.rs.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// AnnotationKey is the annotation History reads and rewrites in full.
const AnnotationKey = "headwind.sh/update-history"

// MaxEntriesPerContainer bounds the ring depth, per spec §3.
const MaxEntriesPerContainer = 10

// Entry is one recorded update, newest first within its container's ring.
type Entry struct {
	Container         string    `json:"container"`
	Image             string    `json:"image"`
	Timestamp         time.Time `json:"timestamp"`
	UpdateRequestName string    `json:"updateRequestName,omitempty"`
	ApprovedBy        string    `json:"approvedBy,omitempty"`
}

// ring is the per-workload serialized shape: container name -> entries
// newest-first.
type ring map[string][]Entry

// parse decodes the annotation value into a ring. Malformed JSON is
// treated as an empty ring (spec §4.4: "log a warning; never fail the
// outer mutation"), which is why parse returns no error; Record below
// logs the condition instead.
func parse(raw string) ring {
	if raw == "" {
		return ring{}
	}
	var r ring
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return ring{}
	}
	if r == nil {
		r = ring{}
	}
	return r
}

func (r ring) serialize() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Record prepends a new entry for container to obj's history ring and
// patches the workload's annotation. Trimming is per-container: other
// containers' rings are untouched. The patch is a JSON merge patch
// built with client.MergeFrom, retried on API conflict per client-go's
// retry.DefaultRetry.
func Record(ctx context.Context, log logr.Logger, c client.Client, obj client.Object, container, image, updateRequestName, approvedBy string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		fresh := obj.DeepCopyObject().(client.Object)
		if err := c.Get(ctx, client.ObjectKeyFromObject(obj), fresh); err != nil {
			return err
		}

		before := fresh.DeepCopyObject().(client.Object)

		annotations := fresh.GetAnnotations()
		if annotations == nil {
			annotations = map[string]string{}
		}

		raw, hadAnnotation := annotations[AnnotationKey]
		r := parse(raw)
		if hadAnnotation && raw != "" && len(r) == 0 {
			log.V(1).Info("update-history annotation was malformed, overwriting", "object", client.ObjectKeyFromObject(obj))
		}

		entries := r[container]
		entries = append([]Entry{{
			Container:         container,
			Image:             image,
			Timestamp:         time.Now().UTC(),
			UpdateRequestName: updateRequestName,
			ApprovedBy:        approvedBy,
		}}, entries...)
		if len(entries) > MaxEntriesPerContainer {
			entries = entries[:MaxEntriesPerContainer]
		}
		r[container] = entries

		serialized, err := r.serialize()
		if err != nil {
			return fmt.Errorf("serializing update history: %w", err)
		}
		annotations[AnnotationKey] = serialized
		fresh.SetAnnotations(annotations)

		if equality.Semantic.DeepEqual(before, fresh) {
			return nil
		}
		return c.Patch(ctx, fresh, client.MergeFrom(before))
	})
}

// PreviousImage returns the image recorded at ring index 1 for
// container (index 0 is the most recently recorded image, which equals
// the current image right after Record). Returns ok=false if there is
// no such entry.
func PreviousImage(obj client.Object, container string) (image string, ok bool) {
	entry, found := EntryAt(obj, container, 1)
	if !found {
		return "", false
	}
	return entry.Image, true
}

// EntryAt returns the entry at index i (0 = most recent) of container's
// ring, for explicit rollback targets.
func EntryAt(obj client.Object, container string, i int) (Entry, bool) {
	annotations := obj.GetAnnotations()
	r := parse(annotations[AnnotationKey])
	entries := r[container]
	if i < 0 || i >= len(entries) {
		return Entry{}, false
	}
	return entries[i], true
}
