// Package version implements Headwind's version model (C1): parsing,
// comparison and glob matching over the opaque version strings found in
// image tags and Helm chart versions. The same semver library the
// teacher uses for image-policy resolution (tagscan_job.go's
// semverLatest) backs precedence comparison here.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
)

// recognizedPrefixes are stripped, at most one, before semver parsing.
var recognizedPrefixes = []string{"release-", "v"}

// Version is an opaque version string with an optional structured
// semver interpretation. Raw is always set; Semver is nil when the
// string did not parse (after prefix stripping) as MAJOR.MINOR.PATCH.
type Version struct {
	Raw    string
	Semver *semver.Version
}

// Parse strips one recognized prefix and surrounding whitespace, then
// attempts a semver parse. An unparseable string still yields a Version
// (Semver == nil); it participates in equality and in All/Force/None
// policies but never in Patch/Minor/Major comparisons.
func Parse(s string) Version {
	trimmed := strings.TrimSpace(s)
	stripped := trimmed
	for _, p := range recognizedPrefixes {
		if rest, ok := strings.CutPrefix(trimmed, p); ok {
			stripped = rest
			break
		}
	}

	sv, err := semver.StrictNewVersion(stripped)
	if err != nil {
		return Version{Raw: s}
	}
	return Version{Raw: s, Semver: sv}
}

// Parsed reports whether v carries a structured semver interpretation.
func (v Version) Parsed() bool { return v.Semver != nil }

// Ordering is the result of comparing two versions.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// Compare orders a and b by semver precedence when both parse,
// otherwise falls back to lexicographic comparison of the raw strings.
// Build metadata participates in raw-string equality but never in
// semver precedence (per semver itself).
func Compare(a, b Version) Ordering {
	if a.Parsed() && b.Parsed() {
		switch a.Semver.Compare(b.Semver) {
		case -1:
			return Less
		case 1:
			return Greater
		default:
			return Equal
		}
	}
	switch {
	case a.Raw < b.Raw:
		return Less
	case a.Raw > b.Raw:
		return Greater
	default:
		return Equal
	}
}

// GlobMatch reports whether candidate matches pattern. The grammar
// supports "*", "prefix*", "*suffix", "prefix*suffix" and an exact
// match: at most one "*" is meaningful. A pattern with more than one
// "*" falls through to an exact-string match, since gobwas/glob itself
// is more permissive than this grammar and would otherwise silently
// accept multi-star patterns the spec doesn't define.
func GlobMatch(pattern, candidate string) bool {
	if strings.Count(pattern, "*") > 1 {
		return pattern == candidate
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return pattern == candidate
	}
	return g.Match(candidate)
}
