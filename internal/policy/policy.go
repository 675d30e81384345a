// Package policy implements Headwind's Policy Engine (C2): a pure,
// total decision of whether a candidate version should replace a
// currently deployed one. It has no I/O dependency, mirroring how the
// teacher's latestTag/semverLatest in tagscan_job.go are pure functions
// over a slice of tag strings.
package policy

import "github.com/headwind-sh/headwind/internal/version"

// Kind enumerates the supported update policies.
type Kind string

const (
	KindNone  Kind = "none"
	KindForce Kind = "force"
	KindAll   Kind = "all"
	KindGlob  Kind = "glob"
	KindPatch Kind = "patch"
	KindMinor Kind = "minor"
	KindMajor Kind = "major"
)

// Policy is the per-workload decision configuration, derived from
// annotations each reconcile (internal/workloadpolicy) and never
// persisted on its own.
type Policy struct {
	Kind    Kind
	Pattern string // required for KindGlob
}

// ShouldUpdate implements the decision matrix from spec §4.2, checked
// in the order shown; the first matching row returns. It never fails
// for unparseable inputs: Patch/Minor/Major simply return false when a
// parse is required and unavailable.
func ShouldUpdate(p Policy, current, candidate string) bool {
	switch p.Kind {
	case KindNone:
		return false
	case KindForce:
		// True unconditionally, including equal versions and downgrades.
		return true
	case KindAll:
		// Lexical inequality, not "newer than". This intentionally
		// permits downgrades; see DESIGN.md Open Question (a).
		return current != candidate
	case KindGlob:
		if p.Pattern == "" {
			return false
		}
		return version.GlobMatch(p.Pattern, candidate)
	case KindPatch:
		return compareSameSeries(current, candidate, samePatchSeries)
	case KindMinor:
		return compareSameSeries(current, candidate, sameMinorSeries)
	case KindMajor:
		return compareSameSeries(current, candidate, sameMajorSeries)
	default:
		return false
	}
}

type seriesCheck func(cur, cand version.Version) bool

func compareSameSeries(current, candidate string, series seriesCheck) bool {
	cur := version.Parse(current)
	cand := version.Parse(candidate)
	if !cur.Parsed() || !cand.Parsed() {
		return false
	}
	if version.Compare(cand, cur) != version.Greater {
		return false
	}
	return series(cur, cand)
}

func samePatchSeries(cur, cand version.Version) bool {
	return cur.Semver.Major() == cand.Semver.Major() && cur.Semver.Minor() == cand.Semver.Minor()
}

func sameMinorSeries(cur, cand version.Version) bool {
	return cur.Semver.Major() == cand.Semver.Major()
}

func sameMajorSeries(cur, cand version.Version) bool {
	return true
}
