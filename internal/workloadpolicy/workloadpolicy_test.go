package workloadpolicy

import (
	"testing"

	"github.com/headwind-sh/headwind/internal/herrors"
	"github.com/headwind-sh/headwind/internal/policy"
)

func TestDefaults(t *testing.T) {
	rp, err := FromAnnotations(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rp.Policy.Kind != policy.KindNone {
		t.Fatalf("expected default policy None, got %v", rp.Policy.Kind)
	}
	if !rp.RequireApproval {
		t.Fatalf("expected require-approval to default true")
	}
	if rp.MinUpdateIntervalSec != 300 {
		t.Fatalf("expected default min-update-interval 300, got %d", rp.MinUpdateIntervalSec)
	}
}

func TestUnknownPolicyTokenIsConfigurationError(t *testing.T) {
	rp, err := FromAnnotations(map[string]string{AnnotationPolicy: "bogus"})
	if !herrors.IsConfiguration(err) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}
	if rp.Policy.Kind != policy.KindNone {
		t.Fatalf("expected policy to be treated as None on error, got %v", rp.Policy.Kind)
	}
}

func TestGlobWithoutPatternIsConfigurationError(t *testing.T) {
	_, err := FromAnnotations(map[string]string{AnnotationPolicy: "glob"})
	if !herrors.IsConfiguration(err) {
		t.Fatalf("expected a ConfigurationError for missing pattern, got %v", err)
	}
}

func TestImagesParsing(t *testing.T) {
	rp, err := FromAnnotations(map[string]string{AnnotationImages: "web, sidecar"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rp.Governs("web") || !rp.Governs("sidecar") {
		t.Fatalf("expected web and sidecar to be governed")
	}
	if rp.Governs("other") {
		t.Fatalf("expected other to not be governed")
	}
}

func TestEmptyImagesGovernsAll(t *testing.T) {
	rp, _ := FromAnnotations(nil)
	if !rp.Governs("anything") {
		t.Fatalf("empty images set should govern every container")
	}
}

func TestRollbackDefaults(t *testing.T) {
	rc, err := RollbackFromAnnotations(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.Enabled {
		t.Fatalf("expected auto-rollback to default false")
	}
	if rc.TimeoutSeconds != 300 || rc.Retries != 3 {
		t.Fatalf("unexpected defaults: %+v", rc)
	}
}
