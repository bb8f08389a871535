package stabilize

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"panelcli/pkg/contracts/domain"
)

// Stabilize applies the resolved policies to every entity's year sequence.
// Rows are mutated in place. Entities are independent, so the per-entity
// work runs data-parallel bounded by workers (zero means one per CPU);
// ordering only matters within an entity, which each worker owns entirely.
func Stabilize(ctx context.Context, rows []domain.WidePanelRow, policies *ResolvedPolicies, workers int) error {
	if policies.Empty() || len(rows) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	groups := groupByEntity(rows)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, group := range groups {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return stabilizeEntity(group, policies)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "stabilization completed",
		"entities", len(groups),
		"rows", len(rows),
		"workers", workers)
	return nil
}

// groupByEntity partitions rows into per-entity slices, each sorted
// ascending by year. Rows arrive sorted from the pivot, but the sort here
// is what the policies' correctness rests on, so it is not assumed.
func groupByEntity(rows []domain.WidePanelRow) map[int64][]*domain.WidePanelRow {
	groups := make(map[int64][]*domain.WidePanelRow)
	for i := range rows {
		groups[rows[i].EntityID] = append(groups[rows[i].EntityID], &rows[i])
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Year < group[j].Year
		})
	}
	return groups
}

// stabilizeEntity runs every policy over one entity's row sequence, in the
// fixed policy order. Each policy reads and writes only its own column set.
func stabilizeEntity(group []*domain.WidePanelRow, policies *ResolvedPolicies) error {
	years := make([]int, len(group))
	for i, row := range group {
		years[i] = row.Year
	}
	series := make([]float64, len(group))

	for _, policy := range applyOrder {
		for _, column := range policies.Columns(policy) {
			for i, row := range group {
				series[i] = row.Value(column)
			}

			switch policy {
			case PolicyEverTrue:
				if err := normalizeFlagSeries(series, years, column, group[0].EntityID); err != nil {
					return err
				}
				everTrue(series)
			case PolicyGapFill, PolicyCarryVersion:
				fillGaps(series)
			case PolicyLatest:
				latestValue(series)
			case PolicyInterpolate:
				interpolateSingleGaps(series)
			}

			for i, row := range group {
				row.SetValue(column, series[i])
			}
		}
	}
	return nil
}
