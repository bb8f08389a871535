package stabilize

import (
	"math"

	"panelcli/internal/violations"
)

// Flag encoding used by ever-true columns in the source surveys:
// 1 means yes, 0 and 2 both mean no, and -1/-2/-3 are survey missing codes.
// Anything else is an undocumented code and must abort rather than be
// guessed at.

// normalizeFlag maps one raw flag code to {1, 0, NaN}.
func normalizeFlag(v float64) (float64, bool) {
	if math.IsNaN(v) {
		return math.NaN(), true
	}
	switch v {
	case 1:
		return 1, true
	case 0, 2:
		return 0, true
	case -1, -2, -3:
		return math.NaN(), true
	}
	return 0, false
}

// normalizeFlagSeries normalizes one entity's flag series in place. On an
// undocumented code it reports the exact (entity, year) cell responsible.
func normalizeFlagSeries(series []float64, years []int, column string, entityID int64) error {
	for i, v := range series {
		normalized, ok := normalizeFlag(v)
		if !ok {
			return &violations.UnexpectedCodeError{
				Column:   column,
				EntityID: entityID,
				Year:     years[i],
				Code:     v,
			}
		}
		series[i] = normalized
	}
	return nil
}
