package stabilize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelcli/internal/config"
	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

func TestResolvePolicies(t *testing.T) {
	declared := []string{"EVER_FLAG", "SECTOR_CODE", "CARNEGIE_2000", "CARNEGIE_2015", "ENROLL_TOTAL"}

	t.Run("patterns resolve to sorted column sets", func(t *testing.T) {
		resolved, err := ResolvePolicies([]config.PolicyRule{
			{Pattern: "EVER_*", Policy: PolicyEverTrue},
			{Pattern: "CARNEGIE_*", Policy: PolicyCarryVersion},
			{Pattern: "ENROLL_TOTAL", Policy: PolicyInterpolate},
		}, declared)
		require.NoError(t, err)
		assert.Equal(t, []string{"EVER_FLAG"}, resolved.Columns(PolicyEverTrue))
		assert.Equal(t, []string{"CARNEGIE_2000", "CARNEGIE_2015"}, resolved.Columns(PolicyCarryVersion))
		assert.Equal(t, []string{"ENROLL_TOTAL"}, resolved.Columns(PolicyInterpolate))
		assert.False(t, resolved.Empty())
	})

	t.Run("unknown policy name fails", func(t *testing.T) {
		_, err := ResolvePolicies([]config.PolicyRule{{Pattern: "EVER_*", Policy: "smooth"}}, declared)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stabilization policy")
	})

	t.Run("pattern matching no column fails", func(t *testing.T) {
		_, err := ResolvePolicies([]config.PolicyRule{{Pattern: "NOPE_*", Policy: PolicyGapFill}}, declared)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matches no declared concept column")
	})

	t.Run("column claimed by two policies fails", func(t *testing.T) {
		_, err := ResolvePolicies([]config.PolicyRule{
			{Pattern: "ENROLL_*", Policy: PolicyGapFill},
			{Pattern: "ENROLL_TOTAL", Policy: PolicyInterpolate},
		}, declared)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "claimed by both")
	})

	t.Run("same column same policy twice is fine", func(t *testing.T) {
		resolved, err := ResolvePolicies([]config.PolicyRule{
			{Pattern: "ENROLL_*", Policy: PolicyGapFill},
			{Pattern: "ENROLL_TOTAL", Policy: PolicyGapFill},
		}, declared)
		require.NoError(t, err)
		assert.Equal(t, []string{"ENROLL_TOTAL"}, resolved.Columns(PolicyGapFill))
	})

	t.Run("empty table resolves empty", func(t *testing.T) {
		resolved, err := ResolvePolicies(nil, declared)
		require.NoError(t, err)
		assert.True(t, resolved.Empty())
	})
}

func panelRow(entity int64, year int, values map[string]float64) domain.WidePanelRow {
	return domain.WidePanelRow{EntityID: entity, Year: year, Values: values}
}

func TestStabilize(t *testing.T) {
	ctx := context.Background()
	mustResolve := func(t *testing.T, rules []config.PolicyRule, declared []string) *ResolvedPolicies {
		t.Helper()
		resolved, err := ResolvePolicies(rules, declared)
		require.NoError(t, err)
		return resolved
	}

	t.Run("each policy touches only its own columns", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"EVER_FLAG": 0, "ENROLL": 100, "UNTOUCHED": math.NaN()}),
			panelRow(1001, 2005, map[string]float64{"EVER_FLAG": 1, "ENROLL": math.NaN(), "UNTOUCHED": math.NaN()}),
			panelRow(1001, 2006, map[string]float64{"EVER_FLAG": -1, "ENROLL": 200, "UNTOUCHED": 7}),
		}
		policies := mustResolve(t, []config.PolicyRule{
			{Pattern: "EVER_FLAG", Policy: PolicyEverTrue},
			{Pattern: "ENROLL", Policy: PolicyInterpolate},
		}, []string{"EVER_FLAG", "ENROLL", "UNTOUCHED"})

		require.NoError(t, Stabilize(ctx, rows, policies, 1))

		for _, row := range rows {
			assert.Equal(t, 1.0, row.Value("EVER_FLAG"), "year %d", row.Year)
		}
		assert.Equal(t, 150.0, rows[1].Value("ENROLL"))
		assert.True(t, domain.IsMissing(rows[0].Value("UNTOUCHED")))
		assert.Equal(t, 7.0, rows[2].Value("UNTOUCHED"))
	})

	t.Run("entities propagate independently", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"SECTOR": 1}),
			panelRow(1001, 2005, map[string]float64{"SECTOR": math.NaN()}),
			panelRow(2002, 2004, map[string]float64{"SECTOR": math.NaN()}),
			panelRow(2002, 2005, map[string]float64{"SECTOR": 4}),
		}
		policies := mustResolve(t, []config.PolicyRule{{Pattern: "SECTOR", Policy: PolicyGapFill}}, []string{"SECTOR"})

		require.NoError(t, Stabilize(ctx, rows, policies, 4))

		assert.Equal(t, 1.0, rows[1].Value("SECTOR"), "entity 1001 carries its own value forward")
		assert.Equal(t, 4.0, rows[2].Value("SECTOR"), "entity 2002 backfills from its own later year")
	})

	t.Run("latest policy propagates the last report", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"NAME_CODE": 10}),
			panelRow(1001, 2005, map[string]float64{"NAME_CODE": 30}),
			panelRow(1001, 2006, map[string]float64{"NAME_CODE": math.NaN()}),
		}
		policies := mustResolve(t, []config.PolicyRule{{Pattern: "NAME_CODE", Policy: PolicyLatest}}, []string{"NAME_CODE"})

		require.NoError(t, Stabilize(ctx, rows, policies, 1))

		for _, row := range rows {
			assert.Equal(t, 30.0, row.Value("NAME_CODE"), "year %d", row.Year)
		}
	})

	t.Run("unsorted rows are ordered by year before propagation", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2006, map[string]float64{"SECTOR": math.NaN()}),
			panelRow(1001, 2004, map[string]float64{"SECTOR": 2}),
			panelRow(1001, 2005, map[string]float64{"SECTOR": math.NaN()}),
		}
		policies := mustResolve(t, []config.PolicyRule{{Pattern: "SECTOR", Policy: PolicyGapFill}}, []string{"SECTOR"})

		require.NoError(t, Stabilize(ctx, rows, policies, 1))

		assert.Equal(t, 2.0, rows[0].Value("SECTOR"))
		assert.Equal(t, 2.0, rows[2].Value("SECTOR"))
	})

	t.Run("undocumented flag code surfaces from the worker", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"EVER_FLAG": 1}),
			panelRow(1001, 2005, map[string]float64{"EVER_FLAG": 5}),
		}
		policies := mustResolve(t, []config.PolicyRule{{Pattern: "EVER_FLAG", Policy: PolicyEverTrue}}, []string{"EVER_FLAG"})

		err := Stabilize(ctx, rows, policies, 2)
		var codeErr *violations.UnexpectedCodeError
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, int64(1001), codeErr.EntityID)
		assert.Equal(t, 2005, codeErr.Year)
		assert.Equal(t, 5.0, codeErr.Code)
	})

	t.Run("stabilization is idempotent", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"EVER_FLAG": 0, "ENROLL": 100}),
			panelRow(1001, 2005, map[string]float64{"EVER_FLAG": 1, "ENROLL": math.NaN()}),
			panelRow(1001, 2006, map[string]float64{"EVER_FLAG": math.NaN(), "ENROLL": 200}),
		}
		policies := mustResolve(t, []config.PolicyRule{
			{Pattern: "EVER_FLAG", Policy: PolicyEverTrue},
			{Pattern: "ENROLL", Policy: PolicyInterpolate},
		}, []string{"EVER_FLAG", "ENROLL"})

		require.NoError(t, Stabilize(ctx, rows, policies, 1))
		first := make([]map[string]float64, len(rows))
		for i, row := range rows {
			first[i] = map[string]float64{"EVER_FLAG": row.Value("EVER_FLAG"), "ENROLL": row.Value("ENROLL")}
		}

		require.NoError(t, Stabilize(ctx, rows, policies, 1))
		for i, row := range rows {
			assert.Equal(t, first[i]["EVER_FLAG"], row.Value("EVER_FLAG"))
			assert.Equal(t, first[i]["ENROLL"], row.Value("ENROLL"))
		}
	})

	t.Run("empty policies is a no-op", func(t *testing.T) {
		rows := []domain.WidePanelRow{
			panelRow(1001, 2004, map[string]float64{"X": math.NaN()}),
		}
		resolved, err := ResolvePolicies(nil, []string{"X"})
		require.NoError(t, err)
		require.NoError(t, Stabilize(ctx, rows, resolved, 0))
		assert.True(t, domain.IsMissing(rows[0].Value("X")))
	})
}
