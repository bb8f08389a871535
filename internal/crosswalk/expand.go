package crosswalk

import (
	"sort"

	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

// ExpandOptions bounds expansion for rules with unbounded spans. ClipMin and
// ClipMax are normally the observed raw-data year range; bounded rules are
// expanded over their full span regardless.
type ExpandOptions struct {
	ClipMin int
	ClipMax int
}

// Expand produces one assignment per integer year in each rule's span. Even
// though validation already rejected cross-concept overlaps, expansion
// re-checks that every (grouping_key, year, source_var) key maps to exactly
// one concept: two same-concept rules with touching spans, or a duplicated
// rule, would double-feed the join and must abort here with the exact year.
func Expand(validated *Validated, opts ExpandOptions) ([]domain.ExpandedAssignment, error) {
	type yearKey struct {
		grouping  string
		year      int
		sourceVar string
	}

	var assignments []domain.ExpandedAssignment
	seen := make(map[yearKey][]string)
	var conflicts []violations.KeyConflict

	for _, rule := range validated.Rules() {
		start, end := rule.YearStart, rule.YearEnd
		if start == domain.YearUnboundedStart && opts.ClipMin != 0 {
			start = opts.ClipMin
		}
		if end == domain.YearUnboundedEnd && opts.ClipMax != 0 {
			end = opts.ClipMax
		}
		for year := start; year <= end; year++ {
			key := yearKey{rule.GroupingKey, year, rule.SourceVar}
			if prior, dup := seen[key]; dup {
				conflicts = append(conflicts, violations.KeyConflict{
					GroupingKey: key.grouping,
					SourceVar:   key.sourceVar,
					Year:        year,
					Concepts:    append(append([]string{}, prior...), rule.ConceptKey),
				})
				continue
			}
			seen[key] = append(seen[key], rule.ConceptKey)
			assignments = append(assignments, domain.ExpandedAssignment{
				GroupingKey: rule.GroupingKey,
				Year:        year,
				SourceVar:   rule.SourceVar,
				ConceptKey:  rule.ConceptKey,
				Weight:      rule.Weight,
			})
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
		return nil, &violations.DuplicateKeyError{Conflicts: conflicts}
	}

	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.GroupingKey != b.GroupingKey {
			return a.GroupingKey < b.GroupingKey
		}
		if a.SourceVar != b.SourceVar {
			return a.SourceVar < b.SourceVar
		}
		return a.Year < b.Year
	})
	return assignments, nil
}
