// Package panel reshapes concept-long observations into one row per
// (entity, year) with one column per concept.
package panel

import (
	"sort"

	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

// Pivot reshapes concept observations into wide rows over the given base
// (entity, year) pairs. Base pairs with no matching concepts still appear,
// all columns missing; concept keys declared in the crosswalk but absent
// from the data still get columns, so the panel's shape is a function of
// the crosswalk, not of this run's coverage.
//
// Aggregation upstream guarantees one value per (entity, year, concept)
// cell. If two distinct values still reach the same cell the pivot fails
// with DuplicatePivotKeyError: that is an assertion-level bug signal, never
// something to average away.
func Pivot(concepts []domain.ConceptObservation, basePairs []domain.WidePanelRow, declaredConcepts []string) ([]domain.WidePanelRow, error) {
	type pairKey struct {
		entity int64
		year   int
	}

	rows := make([]domain.WidePanelRow, len(basePairs))
	index := make(map[pairKey]int, len(basePairs))
	for i, base := range basePairs {
		rows[i] = domain.WidePanelRow{
			EntityID: base.EntityID,
			Year:     base.Year,
			Values:   make(map[string]float64, len(declaredConcepts)),
		}
		for _, key := range declaredConcepts {
			rows[i].Values[key] = domain.Missing()
		}
		index[pairKey{base.EntityID, base.Year}] = i
	}

	var collisions []violations.CellRef
	for _, c := range concepts {
		i, ok := index[pairKey{c.EntityID, c.Year}]
		if !ok {
			// Concept cell outside the base pairs: add the row rather than
			// dropping data, with the full declared column set.
			rows = append(rows, domain.WidePanelRow{
				EntityID: c.EntityID,
				Year:     c.Year,
				Values:   make(map[string]float64, len(declaredConcepts)),
			})
			i = len(rows) - 1
			for _, key := range declaredConcepts {
				rows[i].Values[key] = domain.Missing()
			}
			index[pairKey{c.EntityID, c.Year}] = i
		}
		existing, present := rows[i].Values[c.ConceptKey]
		if present && !domain.IsMissing(existing) && existing != c.Value {
			collisions = append(collisions, violations.CellRef{
				EntityID:   c.EntityID,
				Year:       c.Year,
				ConceptKey: c.ConceptKey,
				Values:     []float64{existing, c.Value},
			})
			continue
		}
		rows[i].Values[c.ConceptKey] = c.Value
	}

	if len(collisions) > 0 {
		sort.Slice(collisions, func(i, j int) bool {
			a, b := collisions[i], collisions[j]
			if a.EntityID != b.EntityID {
				return a.EntityID < b.EntityID
			}
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			return a.ConceptKey < b.ConceptKey
		})
		return nil, &violations.DuplicatePivotKeyError{Cells: collisions}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntityID != rows[j].EntityID {
			return rows[i].EntityID < rows[j].EntityID
		}
		return rows[i].Year < rows[j].Year
	})
	return rows, nil
}
