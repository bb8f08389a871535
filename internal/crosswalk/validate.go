package crosswalk

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

// ValidateOptions controls the plausibility window for year spans.
type ValidateOptions struct {
	YearMin int
	YearMax int
}

// Validated wraps a rule set that has passed structural validation. Only a
// Validated set can be expanded, so an unvalidated crosswalk cannot reach
// the join engine.
type Validated struct {
	rules []domain.CrosswalkRule
}

// Rules returns the validated, normalized rule set.
func (v *Validated) Rules() []domain.CrosswalkRule {
	return v.rules
}

// ConceptKeys returns the distinct concept keys declared by the crosswalk,
// sorted. The pivot emits a column for each of these even when no data
// matched, keeping panel columns stable across runs.
func (v *Validated) ConceptKeys() []string {
	seen := make(map[string]struct{})
	for _, r := range v.rules {
		seen[r.ConceptKey] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate normalizes and structurally validates a crosswalk rule set. It is
// pure: the input is returned unchanged apart from key normalization, tagged
// as validated. Failure modes, in check order:
//
//   - MalformedRangeError: year_start > year_end, or span outside the
//     plausible window (unbounded sentinels are exempt).
//   - NonPositiveWeightError: weight <= 0.
//   - DuplicateKeyError: two rules share (grouping_key, source_var) with
//     overlapping year spans but different concept keys. This is the gate
//     that stops one raw variable from silently feeding two concepts.
func Validate(rules []domain.CrosswalkRule, norm *Normalizer, opts ValidateOptions) (*Validated, error) {
	structural := validator.New()

	normalized := make([]domain.CrosswalkRule, 0, len(rules))
	for i, rule := range rules {
		r := norm.NormalizeRule(rule)
		if err := structural.StructExcept(r, "Weight"); err != nil {
			return nil, fmt.Errorf("crosswalk rule %d is structurally invalid: %w", i, err)
		}
		normalized = append(normalized, r)
	}

	var inverted, implausible []violations.RuleRef
	var nonPositive []violations.RuleRef
	for _, r := range normalized {
		switch {
		case r.YearStart > r.YearEnd:
			inverted = append(inverted, ruleRef(r))
		case !spanPlausible(r, opts):
			implausible = append(implausible, ruleRef(r))
		}
		if r.Weight <= 0 {
			nonPositive = append(nonPositive, ruleRef(r))
		}
	}
	if len(inverted) > 0 {
		return nil, &violations.MalformedRangeError{Rules: inverted}
	}
	if len(implausible) > 0 {
		return nil, &violations.MalformedRangeError{Rules: implausible, Implausible: true}
	}
	if len(nonPositive) > 0 {
		return nil, &violations.NonPositiveWeightError{Rules: nonPositive}
	}

	if err := checkOverlaps(normalized); err != nil {
		return nil, err
	}

	return &Validated{rules: normalized}, nil
}

func spanPlausible(r domain.CrosswalkRule, opts ValidateOptions) bool {
	if opts.YearMin == 0 && opts.YearMax == 0 {
		return true
	}
	startOK := r.YearStart == domain.YearUnboundedStart || r.YearStart >= opts.YearMin
	endOK := r.YearEnd == domain.YearUnboundedEnd || r.YearEnd <= opts.YearMax
	return startOK && endOK
}

// checkOverlaps detects two rules assigning the same (grouping_key,
// source_var) to different concepts over overlapping spans. Same-concept
// overlaps are not flagged here; expansion's uniqueness re-check catches
// them, overlapping or duplicated, with the exact year named.
func checkOverlaps(rules []domain.CrosswalkRule) error {
	type varKey struct {
		grouping, sourceVar string
	}
	byVar := make(map[varKey][]domain.CrosswalkRule)
	for _, r := range rules {
		k := varKey{r.GroupingKey, r.SourceVar}
		byVar[k] = append(byVar[k], r)
	}

	var conflicts []violations.KeyConflict
	for k, group := range byVar {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].YearStart != group[j].YearStart {
				return group[i].YearStart < group[j].YearStart
			}
			return group[i].YearEnd < group[j].YearEnd
		})

		// Walking in start order, each rule must be checked against the
		// furthest-reaching span of every other concept seen so far, not
		// just its sort neighbor: a same-concept rule sorting between two
		// conflicting ones must not mask the pair.
		maxEnd := make(map[string]int)
		for _, cur := range group {
			for _, concept := range sortedConcepts(maxEnd) {
				if concept == cur.ConceptKey {
					continue
				}
				if cur.YearStart <= maxEnd[concept] {
					conflicts = append(conflicts, violations.KeyConflict{
						GroupingKey: k.grouping,
						SourceVar:   k.sourceVar,
						Year:        cur.YearStart,
						Concepts:    []string{concept, cur.ConceptKey},
					})
				}
			}
			if end, seen := maxEnd[cur.ConceptKey]; !seen || cur.YearEnd > end {
				maxEnd[cur.ConceptKey] = cur.YearEnd
			}
		}
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool {
			if conflicts[i].GroupingKey != conflicts[j].GroupingKey {
				return conflicts[i].GroupingKey < conflicts[j].GroupingKey
			}
			if conflicts[i].SourceVar != conflicts[j].SourceVar {
				return conflicts[i].SourceVar < conflicts[j].SourceVar
			}
			return conflicts[i].Year < conflicts[j].Year
		})
		return &violations.DuplicateKeyError{Conflicts: conflicts}
	}
	return nil
}

func sortedConcepts(maxEnd map[string]int) []string {
	concepts := make([]string, 0, len(maxEnd))
	for c := range maxEnd {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	return concepts
}

func ruleRef(r domain.CrosswalkRule) violations.RuleRef {
	return violations.RuleRef{
		GroupingKey: r.GroupingKey,
		SourceVar:   r.SourceVar,
		YearStart:   r.YearStart,
		YearEnd:     r.YearEnd,
		ConceptKey:  r.ConceptKey,
		Weight:      r.Weight,
	}
}
