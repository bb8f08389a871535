package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"panelcli/internal/crosswalk"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRawObservations(t *testing.T) {
	norm := crosswalk.NewNormalizer(nil)

	t.Run("parses and normalizes csv rows", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004, survey_a ,foo,10.5\n")
		obs, err := LoadRawObservations(path, norm)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, int64(1001), obs[0].EntityID)
		assert.Equal(t, 2004, obs[0].Year)
		assert.Equal(t, "SURVEY_A", obs[0].GroupingKey)
		assert.Equal(t, "FOO", obs[0].SourceVar)
		assert.Equal(t, 10.5, obs[0].Value)
	})

	t.Run("blank value cells are skipped as absence", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,\n"+
				"1001,2005,SURVEY_A,FOO,20\n")
		obs, err := LoadRawObservations(path, norm)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, 2005, obs[0].Year)
	})

	t.Run("byte order mark on the header is stripped", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"\uFEFFentity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,10\n")
		obs, err := LoadRawObservations(path, norm)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, int64(1001), obs[0].EntityID)
	})

	t.Run("column order is read from the header", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"value,source_var,grouping_key,year,entity_id\n"+
				"7,FOO,SURVEY_A,2004,1001\n")
		obs, err := LoadRawObservations(path, norm)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, 7.0, obs[0].Value)
	})

	t.Run("missing required column fails", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"entity_id,year,source_var,value\n1001,2004,FOO,10\n")
		_, err := LoadRawObservations(path, norm)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "grouping_key")
	})

	t.Run("non-numeric value fails with the line number", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.csv",
			"entity_id,year,grouping_key,source_var,value\n"+
				"1001,2004,SURVEY_A,FOO,ten\n")
		_, err := LoadRawObservations(path, norm)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("unsupported extension fails", func(t *testing.T) {
		path := writeCSV(t, t.TempDir(), "raw.txt", "whatever")
		_, err := LoadRawObservations(path, norm)
		require.Error(t, err)
	})

	t.Run("xlsx sheet is discovered by header", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "raw.xlsx")

		f := excelize.NewFile()
		f.SetSheetName("Sheet1", "Notes")
		require.NoError(t, f.SetSheetRow("Notes", "A1", &[]interface{}{"freeform", "text"}))
		require.NoError(t, f.SetSheetRow("Notes", "A2", &[]interface{}{"not", "data"}))
		_, err := f.NewSheet("Export")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Export", "A1", &[]interface{}{"entity_id", "year", "grouping_key", "source_var", "value"}))
		require.NoError(t, f.SetSheetRow("Export", "A2", &[]interface{}{1001, 2004, "SURVEY_A", "FOO", 10}))
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())

		obs, err := LoadRawObservations(path, norm)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, int64(1001), obs[0].EntityID)
		assert.Equal(t, 10.0, obs[0].Value)
	})
}

func TestLoadRawObservationsDir(t *testing.T) {
	norm := crosswalk.NewNormalizer(nil)

	t.Run("concatenates files in name order", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, "b_2005.csv",
			"entity_id,year,grouping_key,source_var,value\n1001,2005,SURVEY_A,FOO,20\n")
		writeCSV(t, dir, "a_2004.csv",
			"entity_id,year,grouping_key,source_var,value\n1001,2004,SURVEY_A,FOO,10\n")
		writeCSV(t, dir, "readme.md", "ignored")

		obs, err := LoadRawObservationsDir(dir, norm)
		require.NoError(t, err)
		require.Len(t, obs, 2)
		assert.Equal(t, 2004, obs[0].Year)
		assert.Equal(t, 2005, obs[1].Year)
	})

	t.Run("directory with no raw files fails", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, "readme.md", "nothing here")
		_, err := LoadRawObservationsDir(dir, norm)
		require.Error(t, err)
	})
}
