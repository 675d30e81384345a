package discovery

import (
	"testing"

	"github.com/headwind-sh/headwind/internal/policy"
)

func TestSelectCandidateMinorBump(t *testing.T) {
	pol := policy.Policy{Kind: policy.KindMinor}
	best, ok := SelectCandidate(pol, "1.25.0", []string{"1.26.0", "1.25.1", "2.0.0"})
	if !ok {
		t.Fatal("expected a survivor")
	}
	if best != "1.26.0" {
		t.Fatalf("expected 1.26.0, got %s (2.0.0 must be excluded by Minor policy)", best)
	}
}

func TestSelectCandidateGlob(t *testing.T) {
	pol := policy.Policy{Kind: policy.KindGlob, Pattern: "7.*"}
	best, ok := SelectCandidate(pol, "7.0.4", []string{"7.0.5", "7.1.0", "8.0.0"})
	if !ok {
		t.Fatal("expected a survivor")
	}
	if best != "7.1.0" {
		t.Fatalf("expected 7.1.0 (highest matching 7.*), got %s", best)
	}
}

func TestSelectCandidateNoSurvivors(t *testing.T) {
	pol := policy.Policy{Kind: policy.KindNone}
	_, ok := SelectCandidate(pol, "1.0.0", []string{"2.0.0"})
	if ok {
		t.Fatal("None policy must never produce a survivor")
	}
}
