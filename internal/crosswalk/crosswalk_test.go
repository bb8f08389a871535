package crosswalk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelcli/pkg/contracts/domain"
)

func writeCrosswalk(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crosswalk.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSV(t *testing.T) {
	t.Run("reads rules with defaults", func(t *testing.T) {
		path := writeCrosswalk(t,
			"concept_key,grouping_key,source_var,year_start,year_end,weight,label,notes\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTAL,2004,2010,0.5,Total enrollment,merged form\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTLT,2011,2020,,,\n")
		rules, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, 0.5, rules[0].Weight)
		assert.Equal(t, "Total enrollment", rules[0].Label)
		assert.Equal(t, 1.0, rules[1].Weight, "blank weight defaults to 1.0")
	})

	t.Run("byte order mark on the header is stripped", func(t *testing.T) {
		path := writeCrosswalk(t,
			"\uFEFFconcept_key,grouping_key,source_var,year_start,year_end\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTAL,2004,2010\n")
		rules, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "ENROLL_TOTAL", rules[0].ConceptKey)
	})

	t.Run("blank year bounds load as unbounded sentinels", func(t *testing.T) {
		path := writeCrosswalk(t,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTAL,,\n")
		rules, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, domain.YearUnboundedStart, rules[0].YearStart)
		assert.Equal(t, domain.YearUnboundedEnd, rules[0].YearEnd)
	})

	t.Run("rows without a concept assignment are skipped", func(t *testing.T) {
		path := writeCrosswalk(t,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				",SURVEY_A,UNMAPPED,2004,2010\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTAL,2004,2010\n")
		rules, err := LoadCSV(path)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "EFTOTAL", rules[0].SourceVar)
	})

	t.Run("missing required column fails", func(t *testing.T) {
		path := writeCrosswalk(t,
			"concept_key,grouping_key,year_start,year_end\n"+
				"ENROLL_TOTAL,SURVEY_A,2004,2010\n")
		_, err := LoadCSV(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source_var")
	})

	t.Run("non-numeric year fails with the line number", func(t *testing.T) {
		path := writeCrosswalk(t,
			"concept_key,grouping_key,source_var,year_start,year_end\n"+
				"ENROLL_TOTAL,SURVEY_A,EFTOTAL,two thousand,2010\n")
		_, err := LoadCSV(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}
