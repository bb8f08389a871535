// Package stabilize applies entity-grouped temporal propagation policies to
// a wide panel: flag persistence, gap filling, latest-value propagation,
// classification-version carry, and bounded single-gap interpolation.
package stabilize

import (
	"fmt"
	"path"
	"sort"

	"panelcli/internal/config"
)

// Policy names accepted in the declarative policy table.
const (
	PolicyEverTrue     = "ever_true"
	PolicyGapFill      = "gap_fill"
	PolicyLatest       = "latest"
	PolicyCarryVersion = "carry_version"
	PolicyInterpolate  = "interpolate"
)

var knownPolicies = map[string]struct{}{
	PolicyEverTrue:     {},
	PolicyGapFill:      {},
	PolicyLatest:       {},
	PolicyCarryVersion: {},
	PolicyInterpolate:  {},
}

// applyOrder fixes the sequence policies run in for one entity. Flags are
// normalized and propagated before any filling so a fill never reads an
// unnormalized code.
var applyOrder = []string{
	PolicyEverTrue,
	PolicyGapFill,
	PolicyLatest,
	PolicyCarryVersion,
	PolicyInterpolate,
}

// ResolvedPolicies binds each concept column to at most one policy, resolved
// from the configured pattern table against the panel's declared columns.
type ResolvedPolicies struct {
	byPolicy map[string][]string
}

// ResolvePolicies validates the policy table against the concept schema and
// resolves patterns to concrete column sets. It fails on unknown policy
// names, on patterns matching no declared column, and on a column claimed
// by two different policies: policies must not touch columns outside their
// declared subset, so an ambiguous claim cannot be honored.
func ResolvePolicies(rules []config.PolicyRule, declaredConcepts []string) (*ResolvedPolicies, error) {
	resolved := &ResolvedPolicies{byPolicy: make(map[string][]string)}
	claimed := make(map[string]string)

	for _, rule := range rules {
		if _, ok := knownPolicies[rule.Policy]; !ok {
			return nil, fmt.Errorf("unknown stabilization policy %q (pattern=%s)", rule.Policy, rule.Pattern)
		}

		matchedAny := false
		for _, col := range declaredConcepts {
			ok, err := path.Match(rule.Pattern, col)
			if err != nil {
				return nil, fmt.Errorf("invalid policy pattern %q: %w", rule.Pattern, err)
			}
			if !ok {
				continue
			}
			matchedAny = true
			if prior, dup := claimed[col]; dup {
				if prior == rule.Policy {
					continue
				}
				return nil, fmt.Errorf("concept column %s claimed by both %s and %s policies", col, prior, rule.Policy)
			}
			claimed[col] = rule.Policy
			resolved.byPolicy[rule.Policy] = append(resolved.byPolicy[rule.Policy], col)
		}
		if !matchedAny {
			return nil, fmt.Errorf("policy pattern %q matches no declared concept column", rule.Pattern)
		}
	}

	for _, cols := range resolved.byPolicy {
		sort.Strings(cols)
	}
	return resolved, nil
}

// Columns returns the concept columns bound to the given policy.
func (r *ResolvedPolicies) Columns(policy string) []string {
	if r == nil {
		return nil
	}
	return r.byPolicy[policy]
}

// Empty reports whether any column is bound to any policy.
func (r *ResolvedPolicies) Empty() bool {
	return r == nil || len(r.byPolicy) == 0
}
