// Package loader reads raw long-form observations from the yearly export
// files the engine consumes: delimited CSV or xlsx workbooks.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"panelcli/internal/crosswalk"
	"panelcli/pkg/contracts/domain"
)

var rawColumns = []string{"entity_id", "year", "grouping_key", "source_var", "value"}

// LoadRawObservations reads one raw observation file, dispatching on
// extension. Keys are normalized with the same normalizer the crosswalk
// uses so the join sees one canonical spelling on both sides.
func LoadRawObservations(path string, norm *crosswalk.Normalizer) ([]domain.RawObservation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, norm)
	case ".xlsx":
		return loadExcel(path, norm)
	}
	return nil, fmt.Errorf("unsupported raw observation file type: %s", path)
}

func loadCSV(path string, norm *crosswalk.Normalizer) ([]domain.RawObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw observation file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read raw observation header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var observations []domain.RawObservation
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read raw observation line %d: %w", line+1, err)
		}
		line++

		obs, ok, err := parseRecord(record, cols, norm)
		if err != nil {
			return nil, fmt.Errorf("raw observation line %d: %w", line, err)
		}
		if ok {
			observations = append(observations, obs)
		}
	}

	slog.Info("Loaded raw observations",
		slog.String("path", path),
		slog.Int("rows", len(observations)))
	return observations, nil
}

// loadExcel reads raw observations from an xlsx export. The long-form sheet
// is found by header, since yearly exports do not name sheets consistently.
func loadExcel(path string, norm *crosswalk.Normalizer) ([]domain.RawObservation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var rows [][]string
	var sheetName string
	for _, name := range f.GetSheetList() {
		candidate, err := f.GetRows(name)
		if err != nil || len(candidate) < 2 {
			continue
		}
		if _, err := indexColumns(candidate[0]); err == nil {
			rows = candidate
			sheetName = name
			break
		}
	}
	if sheetName == "" {
		return nil, fmt.Errorf("no sheet in %s has the raw observation columns %v", path, rawColumns)
	}

	cols, err := indexColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var observations []domain.RawObservation
	for i, record := range rows[1:] {
		obs, ok, err := parseRecord(record, cols, norm)
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", sheetName, i+2, err)
		}
		if ok {
			observations = append(observations, obs)
		}
	}

	slog.Info("Loaded raw observations",
		slog.String("path", path),
		slog.String("sheet", sheetName),
		slog.Int("rows", len(observations)))
	return observations, nil
}

// LoadRawObservationsDir loads and concatenates every raw file in a
// directory, sorted by name so runs are reproducible.
func LoadRawObservationsDir(dir string, norm *crosswalk.Normalizer) ([]domain.RawObservation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw directory: %w", err)
	}

	var all []domain.RawObservation
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		obs, err := LoadRawObservations(filepath.Join(dir, entry.Name()), norm)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no raw observation files found in %s", dir)
	}
	return all, nil
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))] = i
	}
	for _, required := range rawColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return cols, nil
}

// parseRecord parses one data row. Rows with an empty value cell are
// skipped: survey exports leave cells blank rather than writing zero, and a
// blank is absence, not a value.
func parseRecord(record []string, cols map[string]int, norm *crosswalk.Normalizer) (domain.RawObservation, bool, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	rawValue := field("value")
	if rawValue == "" {
		return domain.RawObservation{}, false, nil
	}

	entityID, err := strconv.ParseInt(field("entity_id"), 10, 64)
	if err != nil {
		return domain.RawObservation{}, false, fmt.Errorf("invalid entity_id %q: %w", field("entity_id"), err)
	}
	year, err := strconv.Atoi(field("year"))
	if err != nil {
		return domain.RawObservation{}, false, fmt.Errorf("invalid year %q: %w", field("year"), err)
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return domain.RawObservation{}, false, fmt.Errorf("invalid value %q: %w", rawValue, err)
	}

	return domain.RawObservation{
		EntityID:    entityID,
		Year:        year,
		GroupingKey: norm.GroupingKey(field("grouping_key")),
		SourceVar:   norm.SourceVar(field("source_var")),
		Value:       value,
	}, true, nil
}
