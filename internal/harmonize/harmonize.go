// Package harmonize joins raw long-form observations against an expanded
// crosswalk and aggregates them into concept-keyed values.
package harmonize

import (
	"context"
	"log/slog"
	"sort"

	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

// Result carries the harmonized concept observations plus the coverage
// diagnostics gathered during the join.
type Result struct {
	Concepts []domain.ConceptObservation
	Coverage *CoverageReport
}

// Harmonize inner-joins raw observations to expanded assignments on
// (grouping_key, year, source_var), multiplies each matched value by the
// assignment weight, and sums by (entity_id, year, concept_key).
//
// Raw variables with no matching assignment are a coverage gap: reported
// with row counts, never an error, because an evolving crosswalk is not
// expected to cover every variable in every year. The reverse direction is
// checked separately by CheckRequired.
func Harmonize(ctx context.Context, raw []domain.RawObservation, expanded []domain.ExpandedAssignment) *Result {
	logger := slog.Default()

	type joinKey struct {
		grouping  string
		year      int
		sourceVar string
	}
	lookup := make(map[joinKey]domain.ExpandedAssignment, len(expanded))
	for _, a := range expanded {
		lookup[joinKey{a.GroupingKey, a.Year, a.SourceVar}] = a
	}

	type cellKey struct {
		entity  int64
		year    int
		concept string
	}
	sums := make(map[cellKey]float64)
	coverage := newCoverageReport()
	matched := 0

	for _, obs := range raw {
		assignment, ok := lookup[joinKey{obs.GroupingKey, obs.Year, obs.SourceVar}]
		if !ok {
			coverage.recordGap(obs)
			continue
		}
		matched++
		coverage.recordMatch(obs, assignment)
		sums[cellKey{obs.EntityID, obs.Year, assignment.ConceptKey}] += obs.Value * assignment.Weight
	}

	concepts := make([]domain.ConceptObservation, 0, len(sums))
	for k, v := range sums {
		concepts = append(concepts, domain.ConceptObservation{
			EntityID:   k.entity,
			Year:       k.year,
			ConceptKey: k.concept,
			Value:      v,
		})
	}
	sort.Slice(concepts, func(i, j int) bool {
		a, b := concepts[i], concepts[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.ConceptKey < b.ConceptKey
	})

	logger.InfoContext(ctx, "harmonization join completed",
		"raw_rows", len(raw),
		"matched_rows", matched,
		"concept_cells", len(concepts),
		"unmatched_vars", len(coverage.Gaps))

	return &Result{Concepts: concepts, Coverage: coverage}
}

// CheckRequired verifies that every concept the caller marked as required
// matched at least one raw observation. A required concept with zero
// matches aborts the run; anything else is left to the coverage report.
func (r *Result) CheckRequired(required []string, rules []domain.CrosswalkRule) error {
	if len(required) == 0 {
		return nil
	}
	matchedConcepts := make(map[string]struct{})
	for _, cell := range r.Concepts {
		matchedConcepts[cell.ConceptKey] = struct{}{}
	}
	for _, concept := range required {
		if _, ok := matchedConcepts[concept]; ok {
			continue
		}
		ref := &violations.RequiredConceptError{ConceptKey: concept}
		for _, rule := range rules {
			if rule.ConceptKey != concept {
				continue
			}
			ref.GroupingKey = rule.GroupingKey
			ref.SourceVars = append(ref.SourceVars, rule.SourceVar)
		}
		sort.Strings(ref.SourceVars)
		return ref
	}
	return nil
}

// YearRange returns the inclusive year span observed in the raw data. Used
// to clip unbounded crosswalk spans before expansion.
func YearRange(raw []domain.RawObservation) (int, int, bool) {
	if len(raw) == 0 {
		return 0, 0, false
	}
	minYear, maxYear := raw[0].Year, raw[0].Year
	for _, obs := range raw[1:] {
		if obs.Year < minYear {
			minYear = obs.Year
		}
		if obs.Year > maxYear {
			maxYear = obs.Year
		}
	}
	return minYear, maxYear, true
}

// EntityYearGrid returns the complete (entity, year) base the pivot builds
// over: every entity observed in the raw data crossed with every year in
// the union of the raw span and the expanded crosswalk span. The grid is
// gap-free by construction, which the stabilizer depends on: a year with no
// report must exist as an all-missing row for gap-fill and interpolation to
// see it.
func EntityYearGrid(raw []domain.RawObservation, expanded []domain.ExpandedAssignment) []domain.WidePanelRow {
	if len(raw) == 0 {
		return nil
	}

	minYear, maxYear, _ := YearRange(raw)
	for _, a := range expanded {
		if a.Year < minYear {
			minYear = a.Year
		}
		if a.Year > maxYear {
			maxYear = a.Year
		}
	}

	entitySet := make(map[int64]struct{})
	for _, obs := range raw {
		entitySet[obs.EntityID] = struct{}{}
	}
	entities := make([]int64, 0, len(entitySet))
	for e := range entitySet {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	rows := make([]domain.WidePanelRow, 0, len(entities)*(maxYear-minYear+1))
	for _, entity := range entities {
		for year := minYear; year <= maxYear; year++ {
			rows = append(rows, domain.WidePanelRow{EntityID: entity, Year: year})
		}
	}
	return rows
}
