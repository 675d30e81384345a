package policy

import "testing"

func TestNoneNeverUpdates(t *testing.T) {
	if ShouldUpdate(Policy{Kind: KindNone}, "1.0.0", "2.0.0") {
		t.Fatal("None policy must never update")
	}
}

func TestForceAlwaysUpdates(t *testing.T) {
	cases := [][2]string{{"1.0.0", "1.0.0"}, {"2.0.0", "1.0.0"}, {"1.0.0", "2.0.0"}}
	for _, c := range cases {
		if !ShouldUpdate(Policy{Kind: KindForce}, c[0], c[1]) {
			t.Errorf("Force policy should always update: %v", c)
		}
	}
}

func TestAllPermitsDowngrade(t *testing.T) {
	if !ShouldUpdate(Policy{Kind: KindAll}, "2.0.0", "1.0.0") {
		t.Fatal("All policy should permit downgrades (lexical inequality)")
	}
	if ShouldUpdate(Policy{Kind: KindAll}, "1.0.0", "1.0.0") {
		t.Fatal("All policy should not update when equal")
	}
}

func TestGlobRequiresPattern(t *testing.T) {
	if ShouldUpdate(Policy{Kind: KindGlob}, "7.0.0", "7.1.0") {
		t.Fatal("Glob without a pattern must return false")
	}
	if !ShouldUpdate(Policy{Kind: KindGlob, Pattern: "7.*"}, "7.0.0", "7.1.0") {
		t.Fatal("Glob with matching pattern should update")
	}
	if ShouldUpdate(Policy{Kind: KindGlob, Pattern: "7.*"}, "7.0.0", "8.0.0") {
		t.Fatal("Glob with non-matching pattern should not update")
	}
}

func TestPatchStrictGreater(t *testing.T) {
	if ShouldUpdate(Policy{Kind: KindPatch}, "1.2.3", "1.2.3") {
		t.Fatal("Patch must be strict greater, equal versions should not update")
	}
	if !ShouldUpdate(Policy{Kind: KindPatch}, "1.2.3", "1.2.4") {
		t.Fatal("Patch should update within the same minor series")
	}
	if ShouldUpdate(Policy{Kind: KindPatch}, "1.2.3", "1.3.0") {
		t.Fatal("Patch must not cross a minor boundary")
	}
}

func TestPatchUnparseableCandidateFails(t *testing.T) {
	if ShouldUpdate(Policy{Kind: KindPatch}, "1.2.3", "latest") {
		t.Fatal("Patch with unparseable candidate must return false")
	}
}

func TestMinorCrossesPatchNotMajor(t *testing.T) {
	if !ShouldUpdate(Policy{Kind: KindMinor}, "1.2.3", "1.3.0") {
		t.Fatal("Minor should update across a minor boundary")
	}
	if ShouldUpdate(Policy{Kind: KindMinor}, "1.2.3", "2.0.0") {
		t.Fatal("Minor must not cross a major boundary")
	}
}

func TestMajorCrossesAnyBoundary(t *testing.T) {
	if !ShouldUpdate(Policy{Kind: KindMajor}, "1.2.3", "2.0.0") {
		t.Fatal("Major should update across a major boundary")
	}
}

func TestPreReleaseOrdering(t *testing.T) {
	if !ShouldUpdate(Policy{Kind: KindPatch}, "1.0.0-rc1", "1.0.0") {
		t.Fatal("1.0.0 should be considered greater than 1.0.0-rc1")
	}
}

// TestMonotoneInclusion checks that a Patch-eligible update is also
// Minor- and Major-eligible (spec §8).
func TestMonotoneInclusion(t *testing.T) {
	cur, cand := "1.2.3", "1.2.4"
	if ShouldUpdate(Policy{Kind: KindPatch}, cur, cand) {
		if !ShouldUpdate(Policy{Kind: KindMinor}, cur, cand) {
			t.Fatal("Patch-eligible update should also be Minor-eligible")
		}
		if !ShouldUpdate(Policy{Kind: KindMajor}, cur, cand) {
			t.Fatal("Patch-eligible update should also be Major-eligible")
		}
	}
}
