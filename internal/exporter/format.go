package exporter

import (
	"fmt"
	"strconv"

	"panelcli/pkg/contracts/domain"
)

// formatValue formats a panel cell for CSV output. Missing cells become the
// empty string so downstream tools read them as NA rather than zero.
func formatValue(v float64) string {
	if domain.IsMissing(v) {
		return ""
	}
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatYear formats a year for CSV output
func formatYear(y int) string {
	return strconv.Itoa(y)
}

// formatWeight formats a crosswalk weight, keeping 1 as "1.0" so review
// files round-trip through spreadsheet tools unchanged.
func formatWeight(w float64) string {
	if w == float64(int64(w)) {
		return fmt.Sprintf("%.1f", w)
	}
	return strconv.FormatFloat(w, 'f', -1, 64)
}
