package discovery

import (
	"sort"

	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/version"
)

// SelectCandidate implements the ranking step of spec §4.3: for each
// discovered candidate, run the Policy Engine against current; keep
// survivors; sort descending by semver precedence (string-compare
// fallback); return the first one. ok is false when there is no
// survivor.
func SelectCandidate(pol policy.Policy, current string, candidates []string) (best string, ok bool) {
	survivors := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if policy.ShouldUpdate(pol, current, c) {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return "", false
	}

	sort.Slice(survivors, func(i, j int) bool {
		return version.Compare(version.Parse(survivors[i]), version.Parse(survivors[j])) == version.Greater
	})
	return survivors[0], true
}
