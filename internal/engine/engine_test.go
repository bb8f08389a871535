package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelcli/internal/config"
	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *config.Paths, string) {
	t.Helper()
	dir := t.TempDir()
	paths := config.PathsFromDataDir(filepath.Join(dir, "data"))
	require.NoError(t, paths.EnsureDirectories())

	if cfg == nil {
		cfg = config.Default()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(cfg, paths, logger, nil)
	require.NoError(t, err)
	return e, paths, dir
}

func findRow(rows []domain.WidePanelRow, entity int64, year int) *domain.WidePanelRow {
	for i := range rows {
		if rows[i].EntityID == entity && rows[i].Year == year {
			return &rows[i]
		}
	}
	return nil
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("full pipeline produces the wide panel", func(t *testing.T) {
		e, paths, dir := newTestEngine(t, nil)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end,weight\n"+
				"BAR,SURVEY_A,FOO,2004,2006,1.0\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n"+
				"1001,2005,SURVEY_A,FOO,20\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		require.NoError(t, err)

		assert.NotEmpty(t, result.RunID)
		assert.Equal(t, 2, result.RawRows)
		assert.Equal(t, []string{"BAR"}, result.ConceptKeys)

		// The crosswalk declares 2006 but no raw row covers it; the row
		// still exists with the concept missing.
		require.Len(t, result.Rows, 3)
		row := findRow(result.Rows, 1001, 2004)
		require.NotNil(t, row)
		assert.Equal(t, 10.0, row.Value("BAR"))
		row = findRow(result.Rows, 1001, 2005)
		require.NotNil(t, row)
		assert.Equal(t, 20.0, row.Value("BAR"))
		row = findRow(result.Rows, 1001, 2006)
		require.NotNil(t, row)
		assert.True(t, domain.IsMissing(row.Value("BAR")))

		for _, artifact := range []string{
			paths.GetPanelPath("concepts_long.csv"),
			paths.GetPanelPath("panel_wide.csv"),
			paths.GetDiagnosticsPath("coverage_gaps.csv"),
			paths.GetDiagnosticsPath("coverage_summary.csv"),
		} {
			assert.True(t, config.FileExists(artifact), "expected artifact %s", artifact)
		}

		data, err := os.ReadFile(paths.GetPanelPath("panel_wide.csv"))
		require.NoError(t, err)
		content := strings.TrimPrefix(string(data), "\uFEFF")
		lines := strings.Split(strings.TrimSpace(content), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "entity_id,year,BAR", lines[0])
		assert.Equal(t, "1001,2006,", lines[3])
	})

	t.Run("weighted assignments and aliases flow through the join", func(t *testing.T) {
		cfg := config.Default()
		cfg.Engine.GroupingAliases = map[string]string{"SURVEY_ALPHA": "SURVEY_A"}
		e, _, dir := newTestEngine(t, cfg)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end,weight\n"+
				"TOTAL,SURVEY_A,PART1,2020,2020,1.0\n"+
				"TOTAL,SURVEY_A,PART2,2020,2020,0.5\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2020,survey_alpha,part1,10\n"+
				"1001,2020,SURVEY_A,PART2,5\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		require.NoError(t, err)
		row := findRow(result.Rows, 1001, 2020)
		require.NotNil(t, row)
		assert.Equal(t, 12.5, row.Value("TOTAL"))
	})

	t.Run("unbounded span clips to the observed range", func(t *testing.T) {
		e, _, dir := newTestEngine(t, nil)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"BAR,SURVEY_A,FOO,,\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n"+
				"1001,2007,SURVEY_A,FOO,40\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		require.NoError(t, err)
		assert.Equal(t, 4, result.Assignments, "clipped to 2004..2007")
		require.Len(t, result.Rows, 4)
	})

	t.Run("conflicting crosswalk aborts before any panel is written", func(t *testing.T) {
		e, paths, dir := newTestEngine(t, nil)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"BAR,SURVEY_A,FOO,2004,2006\n"+
				"BAZ,SURVEY_A,FOO,2005,2007\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n")

		_, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		var dupErr *violations.DuplicateKeyError
		require.ErrorAs(t, err, &dupErr)
		assert.False(t, config.FileExists(paths.GetPanelPath("panel_wide.csv")))
	})

	t.Run("missing required concept aborts", func(t *testing.T) {
		cfg := config.Default()
		cfg.Engine.RequiredConcepts = []string{"NEVER_SEEN"}
		e, _, dir := newTestEngine(t, cfg)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"BAR,SURVEY_A,FOO,2004,2004\n"+
				"NEVER_SEEN,SURVEY_A,GHOST,2004,2004\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n")

		_, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		var reqErr *violations.RequiredConceptError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, "NEVER_SEEN", reqErr.ConceptKey)
	})

	t.Run("stabilization policies apply to the exported panel", func(t *testing.T) {
		cfg := config.Default()
		cfg.Engine.Policies = []config.PolicyRule{{Pattern: "EVER_*", Policy: "ever_true"}}
		e, _, dir := newTestEngine(t, cfg)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"EVER_FLAG,SURVEY_A,FLAG,2004,2006\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FLAG,0\n"+
				"1001,2006,SURVEY_A,FLAG,1\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		require.NoError(t, err)
		for _, year := range []int{2004, 2005, 2006} {
			row := findRow(result.Rows, 1001, year)
			require.NotNil(t, row)
			assert.Equal(t, 1.0, row.Value("EVER_FLAG"), "year %d", year)
		}
	})

	t.Run("unmapped raw variables surface as coverage gaps", func(t *testing.T) {
		e, paths, dir := newTestEngine(t, nil)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"BAR,SURVEY_A,FOO,2004,2004\n")

		rawPath := filepath.Join(dir, "raw.csv")
		writeFile(t, rawPath,
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n"+
				"1001,2004,SURVEY_A,ORPHAN,5\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawPath})
		require.NoError(t, err)
		assert.Equal(t, 1, result.GapVars)

		data, err := os.ReadFile(paths.GetDiagnosticsPath("coverage_gaps.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "SURVEY_A,ORPHAN,2004,1")
	})

	t.Run("raw directory ingestion merges files", func(t *testing.T) {
		e, _, dir := newTestEngine(t, nil)

		crosswalkPath := filepath.Join(dir, "crosswalk.csv")
		writeFile(t, crosswalkPath,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"BAR,SURVEY_A,FOO,2004,2005\n")

		rawDir := filepath.Join(dir, "raw")
		require.NoError(t, os.MkdirAll(rawDir, 0755))
		writeFile(t, filepath.Join(rawDir, "2004.csv"),
			"entity_id,year,grouping_key,source_var,value\n1001,2004,SURVEY_A,FOO,10\n")
		writeFile(t, filepath.Join(rawDir, "2005.csv"),
			"entity_id,year,grouping_key,source_var,value\n1001,2005,SURVEY_A,FOO,20\n")

		result, err := e.Run(ctx, Input{CrosswalkPath: crosswalkPath, RawPath: rawDir})
		require.NoError(t, err)
		assert.Equal(t, 2, result.RawRows)
		require.Len(t, result.Rows, 2)
	})
}
