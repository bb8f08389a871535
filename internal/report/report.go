// Package report writes the engine's diagnostics artifacts: coverage-gap
// and coverage-summary side-files plus console summaries. Structural
// violations abort the run before this package sees them; what lands here
// is the recoverable residue of an evolving crosswalk.
package report

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"panelcli/internal/config"
	"panelcli/internal/exporter"
	"panelcli/internal/harmonize"
)

// Reporter writes diagnostics artifacts for one run.
type Reporter struct {
	paths  *config.Paths
	writer *exporter.CSVWriter
	logger *slog.Logger
}

// NewReporter creates a reporter writing under the run's diagnostics dir.
func NewReporter(paths *config.Paths, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		paths:  paths,
		writer: exporter.NewCSVWriter(),
		logger: logger,
	}
}

// WriteCoverage emits coverage_gaps.csv and coverage_summary.csv and logs a
// console summary. Coverage gaps are warnings by contract: absence of a
// mapping is a normal state of a decades-long crosswalk.
func (r *Reporter) WriteCoverage(ctx context.Context, coverage *harmonize.CoverageReport) error {
	gaps := coverage.GapRows()
	gapRecords := make([][]string, 0, len(gaps))
	totalGapRows := 0
	for _, g := range gaps {
		totalGapRows += g.RowCount
		gapRecords = append(gapRecords, []string{
			g.GroupingKey,
			g.SourceVar,
			strconv.Itoa(g.Year),
			strconv.Itoa(g.RowCount),
		})
	}
	gapPath := r.paths.GetDiagnosticsPath("coverage_gaps.csv")
	if err := r.writer.WriteSimpleCSV(gapPath, []string{"grouping_key", "source_var", "year", "row_count"}, gapRecords); err != nil {
		return err
	}

	summary := coverage.SummaryRows()
	summaryRecords := make([][]string, 0, len(summary))
	for _, cell := range summary {
		summaryRecords = append(summaryRecords, []string{
			strconv.Itoa(cell.Year),
			cell.ConceptKey,
			strconv.Itoa(cell.EntityCount),
			strings.Join(cell.GroupingKeys, ";"),
			strings.Join(cell.SourceVars, ";"),
		})
	}
	summaryPath := r.paths.GetDiagnosticsPath("coverage_summary.csv")
	if err := r.writer.WriteSimpleCSV(summaryPath, []string{"year", "concept_key", "n_entities", "grouping_keys", "source_vars"}, summaryRecords); err != nil {
		return err
	}

	if len(gaps) > 0 {
		r.logger.WarnContext(ctx, "raw variables with no crosswalk assignment",
			"unmatched_keys", len(gaps),
			"unmatched_rows", totalGapRows,
			"report", gapPath)
	} else {
		r.logger.InfoContext(ctx, "crosswalk covered every raw variable")
	}
	r.logger.InfoContext(ctx, "coverage summary written",
		"cells", len(summary),
		"report", summaryPath)
	return nil
}
