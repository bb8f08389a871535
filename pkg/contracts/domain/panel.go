package domain

import "math"

// Missing is the explicit missing-value marker used throughout the wide
// panel. Concept columns declared in the crosswalk but unreported for an
// (entity, year) pair carry this value rather than being dropped, which
// keeps the panel's column set stable across runs.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a panel cell holds the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// WidePanelRow is one (entity, year) row of the final panel, with one value
// per concept column. Every row in a panel carries the same column set; a
// cell that no concept observation reached holds Missing().
type WidePanelRow struct {
	EntityID int64              `json:"entity_id"`
	Year     int                `json:"year"`
	Values   map[string]float64 `json:"values"`
}

// Value returns the cell for the given concept column, or Missing() when
// the column is absent from the row.
func (r WidePanelRow) Value(conceptKey string) float64 {
	v, ok := r.Values[conceptKey]
	if !ok {
		return Missing()
	}
	return v
}

// SetValue writes one cell, allocating the value map on first use.
func (r *WidePanelRow) SetValue(conceptKey string, v float64) {
	if r.Values == nil {
		r.Values = make(map[string]float64)
	}
	r.Values[conceptKey] = v
}
