package exporter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"panelcli/pkg/contracts/domain"
)

// WriteConceptLong writes the intermediate concept-long table:
// entity_id, year, concept_key, value.
func (w *CSVWriter) WriteConceptLong(fullPath string, concepts []domain.ConceptObservation) error {
	records := make([][]string, 0, len(concepts))
	for _, c := range concepts {
		records = append(records, []string{
			formatInt(c.EntityID),
			formatYear(c.Year),
			c.ConceptKey,
			formatValue(c.Value),
		})
	}
	return w.WriteSimpleCSV(fullPath, []string{"entity_id", "year", "concept_key", "value"}, records)
}

// WriteWidePanel writes the final wide panel with one column per concept.
// Column order is the caller's concept order; every row carries the full
// column set with empty cells for missing values.
func (w *CSVWriter) WriteWidePanel(fullPath string, rows []domain.WidePanelRow, conceptKeys []string) error {
	headers := append([]string{"entity_id", "year"}, conceptKeys...)

	sw, err := w.CreateStreamWriter(fullPath, headers)
	if err != nil {
		return err
	}

	for _, row := range rows {
		record := make([]string, 0, len(headers))
		record = append(record, formatInt(row.EntityID), formatYear(row.Year))
		for _, key := range conceptKeys {
			record = append(record, formatValue(row.Value(key)))
		}
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return fmt.Errorf("failed to write panel row (entity_id=%d, year=%d): %w", row.EntityID, row.Year, err)
		}
	}

	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to finalize panel file: %w", err)
	}

	slog.Info("Wrote wide panel",
		slog.String("path", fullPath),
		slog.Int("rows", len(rows)),
		slog.Int("concept_columns", len(conceptKeys)))
	return nil
}

// WriteWidePanelExcel writes the wide panel as an xlsx workbook using the
// excelize stream writer, for consumers who review panels in a spreadsheet.
func WriteWidePanelExcel(fullPath string, rows []domain.WidePanelRow, conceptKeys []string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Panel"
	f.SetSheetName("Sheet1", sheet)

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, 0, len(conceptKeys)+2)
	header = append(header, "entity_id", "year")
	for _, key := range conceptKeys {
		header = append(header, key)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		record := make([]interface{}, 0, len(conceptKeys)+2)
		record = append(record, row.EntityID, row.Year)
		for _, key := range conceptKeys {
			v := row.Value(key)
			if domain.IsMissing(v) {
				record = append(record, nil)
			} else {
				record = append(record, v)
			}
		}
		if err := sw.SetRow(cell, record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush stream writer: %w", err)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	slog.Info("Wrote wide panel workbook",
		slog.String("path", fullPath),
		slog.Int("rows", len(rows)))
	return nil
}

// WriteCompactedCrosswalk writes the merged-interval review file emitted by
// the compactor. Source variables are joined with ";" the way curators edit
// them in the crosswalk sheets.
func (w *CSVWriter) WriteCompactedCrosswalk(fullPath string, intervals []domain.CompactedInterval) error {
	headers := []string{"concept_key", "grouping_key", "source_var", "year_start", "year_end", "weight", "label", "notes"}
	records := make([][]string, 0, len(intervals))
	for _, iv := range intervals {
		records = append(records, []string{
			iv.ConceptKey,
			iv.GroupingKey,
			strings.Join(iv.SourceVars, ";"),
			formatYear(iv.YearStart),
			formatYear(iv.YearEnd),
			formatWeight(iv.Weight),
			iv.Label,
			iv.Notes,
		})
	}
	return w.WriteSimpleCSV(fullPath, headers, records)
}
