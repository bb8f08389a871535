package harmonize

import (
	"sort"

	"panelcli/pkg/contracts/domain"
)

// CoverageGap records raw rows for one source variable that no crosswalk
// assignment matched. Non-fatal: unmapped variables are excluded from the
// panel, never zero-filled.
type CoverageGap struct {
	GroupingKey string
	SourceVar   string
	Year        int
	RowCount    int
}

// CoverageCell summarizes crosswalk coverage for one (year, concept): how
// many distinct entities reported, through which grouping keys, from which
// raw variables.
type CoverageCell struct {
	Year         int
	ConceptKey   string
	EntityCount  int
	GroupingKeys []string
	SourceVars   []string
}

// CoverageReport accumulates both directions of coverage during the join.
type CoverageReport struct {
	Gaps []CoverageGap

	gapCounts map[gapKey]int
	cells     map[cellID]*cellAccum
}

type gapKey struct {
	grouping  string
	sourceVar string
	year      int
}

type cellID struct {
	year    int
	concept string
}

type cellAccum struct {
	entities  map[int64]struct{}
	groupings map[string]struct{}
	vars      map[string]struct{}
}

func newCoverageReport() *CoverageReport {
	return &CoverageReport{
		gapCounts: make(map[gapKey]int),
		cells:     make(map[cellID]*cellAccum),
	}
}

func (c *CoverageReport) recordGap(obs domain.RawObservation) {
	k := gapKey{obs.GroupingKey, obs.SourceVar, obs.Year}
	if c.gapCounts[k] == 0 {
		c.Gaps = append(c.Gaps, CoverageGap{
			GroupingKey: k.grouping,
			SourceVar:   k.sourceVar,
			Year:        k.year,
		})
	}
	c.gapCounts[k]++
}

func (c *CoverageReport) recordMatch(obs domain.RawObservation, a domain.ExpandedAssignment) {
	id := cellID{obs.Year, a.ConceptKey}
	cell, ok := c.cells[id]
	if !ok {
		cell = &cellAccum{
			entities:  make(map[int64]struct{}),
			groupings: make(map[string]struct{}),
			vars:      make(map[string]struct{}),
		}
		c.cells[id] = cell
	}
	cell.entities[obs.EntityID] = struct{}{}
	cell.groupings[obs.GroupingKey] = struct{}{}
	cell.vars[obs.SourceVar] = struct{}{}
}

// GapRows returns the coverage gaps with final row counts, sorted for
// stable diagnostics output.
func (c *CoverageReport) GapRows() []CoverageGap {
	gaps := make([]CoverageGap, len(c.Gaps))
	copy(gaps, c.Gaps)
	for i := range gaps {
		gaps[i].RowCount = c.gapCounts[gapKey{gaps[i].GroupingKey, gaps[i].SourceVar, gaps[i].Year}]
	}
	sort.Slice(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if a.GroupingKey != b.GroupingKey {
			return a.GroupingKey < b.GroupingKey
		}
		if a.SourceVar != b.SourceVar {
			return a.SourceVar < b.SourceVar
		}
		return a.Year < b.Year
	})
	return gaps
}

// SummaryRows returns the per-(year, concept) coverage summary, sorted.
func (c *CoverageReport) SummaryRows() []CoverageCell {
	cells := make([]CoverageCell, 0, len(c.cells))
	for id, accum := range c.cells {
		cells = append(cells, CoverageCell{
			Year:         id.year,
			ConceptKey:   id.concept,
			EntityCount:  len(accum.entities),
			GroupingKeys: sortedKeys(accum.groupings),
			SourceVars:   sortedKeys(accum.vars),
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Year != cells[j].Year {
			return cells[i].Year < cells[j].Year
		}
		return cells[i].ConceptKey < cells[j].ConceptKey
	})
	return cells
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
