package domain

// RawObservation is one long-form value extracted from a yearly survey
// export. Produced by out-of-scope collaborators and treated as an
// append-only snapshot for the duration of a run.
type RawObservation struct {
	EntityID    int64   `json:"entity_id" csv:"entity_id" validate:"required"`
	Year        int     `json:"year" csv:"year" validate:"required"`
	GroupingKey string  `json:"grouping_key" csv:"grouping_key" validate:"required"`
	SourceVar   string  `json:"source_var" csv:"source_var" validate:"required"`
	Value       float64 `json:"value" csv:"value"`
}

// ConceptObservation is the weighted aggregate of all raw observations that
// matched one (entity, year, concept) cell: value = sum of raw value times
// assignment weight.
type ConceptObservation struct {
	EntityID   int64   `json:"entity_id" csv:"entity_id"`
	Year       int     `json:"year" csv:"year"`
	ConceptKey string  `json:"concept_key" csv:"concept_key"`
	Value      float64 `json:"value" csv:"value"`
}
