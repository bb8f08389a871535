package violations

import (
	"fmt"
	"strings"
)

// SampleLimit caps how many offending rows a structural error names in its
// message. The full set is always carried on the error value. Overridable
// from configuration at startup, before any run produces errors.
var SampleLimit = 5

// Kind identifies a violation class for diagnostics artifacts.
type Kind string

const (
	KindMalformedRange    Kind = "malformed_range"
	KindNonPositiveWeight Kind = "non_positive_weight"
	KindDuplicateKey      Kind = "duplicate_key"
	KindDuplicatePivotKey Kind = "duplicate_pivot_key"
	KindUnexpectedCode    Kind = "unexpected_code"
	KindCoverageGap       Kind = "coverage_gap"
)

// RuleRef identifies one crosswalk rule in a violation report.
type RuleRef struct {
	GroupingKey string
	SourceVar   string
	YearStart   int
	YearEnd     int
	ConceptKey  string
	Weight      float64
}

func (r RuleRef) String() string {
	return fmt.Sprintf("(%s, %s, %d-%d) -> %s", r.GroupingKey, r.SourceVar, r.YearStart, r.YearEnd, r.ConceptKey)
}

// MalformedRangeError reports rules whose year span is inverted or falls
// outside the plausible survey window.
type MalformedRangeError struct {
	Rules       []RuleRef
	Implausible bool
}

func (e *MalformedRangeError) Error() string {
	reason := "year_start > year_end"
	if e.Implausible {
		reason = "year span outside plausible window"
	}
	return fmt.Sprintf("crosswalk has %d rule(s) with %s: %s", len(e.Rules), reason, sampleRules(e.Rules))
}

// NonPositiveWeightError reports rules whose weight is zero or negative.
type NonPositiveWeightError struct {
	Rules []RuleRef
}

func (e *NonPositiveWeightError) Error() string {
	return fmt.Sprintf("crosswalk has %d rule(s) with non-positive weight: %s", len(e.Rules), sampleRules(e.Rules))
}

// KeyConflict is one ambiguous mapping: the same raw variable feeding more
// than one concept in an overlapping span.
type KeyConflict struct {
	GroupingKey string
	SourceVar   string
	Year        int
	Concepts    []string
}

func (c KeyConflict) String() string {
	return fmt.Sprintf("(%s, %s, %d) -> {%s}", c.GroupingKey, c.SourceVar, c.Year, strings.Join(c.Concepts, ", "))
}

// DuplicateKeyError reports crosswalk mappings that would feed one raw
// variable-year into more than one concept. This is the single most
// important correctness gate: it must abort the run, never pick silently.
type DuplicateKeyError struct {
	Conflicts []KeyConflict
}

func (e *DuplicateKeyError) Error() string {
	samples := make([]string, 0, SampleLimit)
	for i, c := range e.Conflicts {
		if i == SampleLimit {
			samples = append(samples, "...")
			break
		}
		samples = append(samples, c.String())
	}
	return fmt.Sprintf("crosswalk maps %d (grouping_key, source_var, year) key(s) to more than one concept: %s",
		len(e.Conflicts), strings.Join(samples, "; "))
}

// CellRef identifies one wide-panel cell in a pivot collision report.
type CellRef struct {
	EntityID   int64
	Year       int
	ConceptKey string
	Values     []float64
}

func (c CellRef) String() string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("(%d, %d, %s) values {%s}", c.EntityID, c.Year, c.ConceptKey, strings.Join(parts, ", "))
}

// DuplicatePivotKeyError reports distinct values colliding in one
// (entity, year, concept) cell after aggregation. Aggregation guarantees
// uniqueness, so this signals a grouping bug, not bad input.
type DuplicatePivotKeyError struct {
	Cells []CellRef
}

func (e *DuplicatePivotKeyError) Error() string {
	samples := make([]string, 0, SampleLimit)
	for i, c := range e.Cells {
		if i == SampleLimit {
			samples = append(samples, "...")
			break
		}
		samples = append(samples, c.String())
	}
	return fmt.Sprintf("pivot found %d (entity_id, year, concept_key) cell(s) with conflicting values: %s",
		len(e.Cells), strings.Join(samples, "; "))
}

// UnexpectedCodeError reports an undocumented raw code encountered while
// normalizing an ever-true flag column.
type UnexpectedCodeError struct {
	Column   string
	EntityID int64
	Year     int
	Code     float64
}

func (e *UnexpectedCodeError) Error() string {
	return fmt.Sprintf("column %s has unexpected code %g at (entity_id=%d, year=%d); expected {1, 0, 2, -1, -2, -3}",
		e.Column, e.Code, e.EntityID, e.Year)
}

// RequiredConceptError reports a required concept with no raw data in any
// of its applicable years.
type RequiredConceptError struct {
	ConceptKey  string
	GroupingKey string
	SourceVars  []string
}

func (e *RequiredConceptError) Error() string {
	return fmt.Sprintf("required concept %s (grouping_key=%s) matched no raw observations for source vars {%s}",
		e.ConceptKey, e.GroupingKey, strings.Join(e.SourceVars, ", "))
}

func sampleRules(rules []RuleRef) string {
	samples := make([]string, 0, SampleLimit)
	for i, r := range rules {
		if i == SampleLimit {
			samples = append(samples, "...")
			break
		}
		samples = append(samples, r.String())
	}
	return strings.Join(samples, "; ")
}
