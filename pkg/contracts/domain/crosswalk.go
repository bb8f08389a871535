package domain

// CrosswalkRule maps one raw survey variable to a stable concept over an
// inclusive span of years. Rules are authored externally and are immutable
// input to the engine for the duration of a run.
type CrosswalkRule struct {
	ConceptKey  string  `json:"concept_key" csv:"concept_key" validate:"required"`
	GroupingKey string  `json:"grouping_key" csv:"grouping_key" validate:"required"`
	SourceVar   string  `json:"source_var" csv:"source_var" validate:"required"`
	YearStart   int     `json:"year_start" csv:"year_start"`
	YearEnd     int     `json:"year_end" csv:"year_end"`
	Weight      float64 `json:"weight" csv:"weight" validate:"gt=0"`
	Label       string  `json:"label,omitempty" csv:"label"`
	Notes       string  `json:"notes,omitempty" csv:"notes"`
}

// Span returns the inclusive year range covered by the rule.
func (r CrosswalkRule) Span() (int, int) {
	return r.YearStart, r.YearEnd
}

// ExpandedAssignment is one per-year row produced by expanding a
// CrosswalkRule across its span: (grouping_key, year, source_var) maps to
// exactly one concept. Violations of that uniqueness are fatal.
type ExpandedAssignment struct {
	GroupingKey string  `json:"grouping_key"`
	Year        int     `json:"year"`
	SourceVar   string  `json:"source_var"`
	ConceptKey  string  `json:"concept_key"`
	Weight      float64 `json:"weight"`
}

// CompactedInterval is the human-reviewable inverse of expansion: all rules
// for one (grouping_key, concept_key) pair whose spans touch or overlap are
// merged into a single interval carrying the union of source variables and
// the first non-empty label and notes.
type CompactedInterval struct {
	GroupingKey string   `json:"grouping_key" csv:"grouping_key"`
	ConceptKey  string   `json:"concept_key" csv:"concept_key"`
	YearStart   int      `json:"year_start" csv:"year_start"`
	YearEnd     int      `json:"year_end" csv:"year_end"`
	SourceVars  []string `json:"source_vars" csv:"source_vars"`
	Weight      float64  `json:"weight" csv:"weight"`
	Label       string   `json:"label,omitempty" csv:"label"`
	Notes       string   `json:"notes,omitempty" csv:"notes"`
}

// Unbounded year sentinels used when a crosswalk row leaves year_start or
// year_end blank. Expansion clips these to the observed raw-data year range.
const (
	YearUnboundedStart = -10000
	YearUnboundedEnd   = 10000
)
