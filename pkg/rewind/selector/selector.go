// Package selector picks the version of a file most likely to predate
// the compromise.
//
// Two policies are offered because the desired semantics is genuinely
// ambiguous. The nearest policy minimizes the signed delta between the
// attack start and each version's creation time, which prefers a
// version created after the attack whenever one exists; the prior-only
// policy considers only versions created strictly before the attack and
// takes the latest of them. Prior-only is the default; nearest exists
// for operators who want the historical behavior of the tooling this
// replaces.
package selector

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Policy names a selection semantics.
type Policy string

// Selection policies.
const (
	// PolicyPriorOnly picks the latest version created strictly before
	// the attack start.
	PolicyPriorOnly Policy = "prior-only"

	// PolicyNearest picks the version minimizing the signed delta
	// attackStart - createdAt over the full set, post-attack versions
	// included.
	PolicyNearest Policy = "nearest"
)

// DefaultPolicy is used when configuration names no policy.
const DefaultPolicy = PolicyPriorOnly

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case PolicyPriorOnly:
		return PolicyPriorOnly, nil
	case PolicyNearest:
		return PolicyNearest, nil
	case "":
		return DefaultPolicy, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q", s)
	}
}

// Choice is a selected recovery candidate.
type Choice struct {
	// VersionID is the version to promote.
	VersionID string

	// VersionName is the version's name, for reporting.
	VersionName string

	// Delta is attackStart minus the version's creation time. Negative
	// means the version postdates the attack (possible under
	// PolicyNearest only).
	Delta time.Duration
}

// Select picks a recovery candidate from versions for the given attack
// start. Versions are scanned in input order and ties break toward the
// first seen; this is deliberate, matching the platform's reported
// ordering, and documented rather than incidental. An empty version
// list yields ok=false: no candidate, not an error.
func Select(versions []types.Version, attackStart time.Time, policy Policy) (Choice, bool) {
	var (
		best  Choice
		found bool
	)

	for _, v := range versions {
		delta := attackStart.Sub(v.CreatedAt)

		if policy == PolicyPriorOnly && delta <= 0 {
			continue
		}

		// Signed minimum; under prior-only the negatives were already
		// filtered so this is "latest before the attack". Strict
		// comparison keeps the first-seen version on ties.
		if !found || delta < best.Delta {
			best = Choice{VersionID: v.VersionID, VersionName: v.VersionName, Delta: delta}
			found = true
		}
	}

	return best, found
}
