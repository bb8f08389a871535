package crosswalk

import (
	"sort"

	"panelcli/pkg/contracts/domain"
)

// Compact merges a rule set into review-ready intervals, grouped by
// (grouping_key, concept_key). Within a group, rules are sorted by
// year_start and merged into a run while the next span starts no later than
// the current end plus one; a gap closes the run. Merged metadata follows
// "first non-empty wins" in sort order, except source variables, which are
// the union.
func Compact(rules []domain.CrosswalkRule) []domain.CompactedInterval {
	type groupKey struct {
		grouping, concept string
	}
	groups := make(map[groupKey][]domain.CrosswalkRule)
	for _, r := range rules {
		k := groupKey{r.GroupingKey, r.ConceptKey}
		groups[k] = append(groups[k], r)
	}

	var out []domain.CompactedInterval
	for k, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if group[i].YearStart != group[j].YearStart {
				return group[i].YearStart < group[j].YearStart
			}
			return group[i].YearEnd < group[j].YearEnd
		})

		run := []domain.CrosswalkRule{group[0]}
		curEnd := group[0].YearEnd
		for _, r := range group[1:] {
			if r.YearStart <= curEnd+1 {
				run = append(run, r)
				if r.YearEnd > curEnd {
					curEnd = r.YearEnd
				}
				continue
			}
			out = append(out, collapseRun(k.grouping, k.concept, run, curEnd))
			run = []domain.CrosswalkRule{r}
			curEnd = r.YearEnd
		}
		out = append(out, collapseRun(k.grouping, k.concept, run, curEnd))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GroupingKey != b.GroupingKey {
			return a.GroupingKey < b.GroupingKey
		}
		if a.ConceptKey != b.ConceptKey {
			return a.ConceptKey < b.ConceptKey
		}
		return a.YearStart < b.YearStart
	})
	return out
}

// CompactAssignments compacts per-year expanded assignments back into merged
// intervals, the inverse of Expand. Each assignment is treated as a
// single-year rule before merging.
func CompactAssignments(assignments []domain.ExpandedAssignment) []domain.CompactedInterval {
	rules := make([]domain.CrosswalkRule, 0, len(assignments))
	for _, a := range assignments {
		rules = append(rules, domain.CrosswalkRule{
			ConceptKey:  a.ConceptKey,
			GroupingKey: a.GroupingKey,
			SourceVar:   a.SourceVar,
			YearStart:   a.Year,
			YearEnd:     a.Year,
			Weight:      a.Weight,
		})
	}
	return Compact(rules)
}

func collapseRun(grouping, concept string, run []domain.CrosswalkRule, yearEnd int) domain.CompactedInterval {
	varSet := make(map[string]struct{}, len(run))
	for _, r := range run {
		varSet[r.SourceVar] = struct{}{}
	}
	sourceVars := make([]string, 0, len(varSet))
	for v := range varSet {
		sourceVars = append(sourceVars, v)
	}
	sort.Strings(sourceVars)

	iv := domain.CompactedInterval{
		GroupingKey: grouping,
		ConceptKey:  concept,
		YearStart:   run[0].YearStart,
		YearEnd:     yearEnd,
		SourceVars:  sourceVars,
		Weight:      run[0].Weight,
	}
	for _, r := range run {
		if iv.Label == "" && r.Label != "" {
			iv.Label = r.Label
		}
		if iv.Notes == "" && r.Notes != "" {
			iv.Notes = r.Notes
		}
	}
	return iv
}
