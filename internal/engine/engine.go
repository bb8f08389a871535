// Package engine orchestrates one full harmonization run: load inputs,
// validate, expand, join, pivot, stabilize, export. The run is batch and
// all-or-nothing: any structural violation aborts before a panel is
// written; only coverage gaps survive as warnings.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"panelcli/internal/config"
	"panelcli/internal/crosswalk"
	"panelcli/internal/exporter"
	"panelcli/internal/harmonize"
	"panelcli/internal/infrastructure"
	"panelcli/internal/loader"
	"panelcli/internal/panel"
	"panelcli/internal/report"
	"panelcli/internal/stabilize"
	"panelcli/internal/violations"
	"panelcli/pkg/contracts/domain"
)

// Input names the two files (or directories) one run consumes.
type Input struct {
	CrosswalkPath string
	// RawPath is a raw observation file, or a directory of them.
	RawPath string
}

// Result summarizes a completed run.
type Result struct {
	RunID       string
	Rows        []domain.WidePanelRow
	ConceptKeys []string
	RawRows     int
	Assignments int
	GapVars     int
}

// Engine wires configuration, telemetry, and output paths for runs.
type Engine struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	rowsRead    metric.Int64Counter
	cellsFilled metric.Int64Counter
}

// New creates an engine. Telemetry providers are optional; a nil providers
// argument disables spans and counters without branching at call sites.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Engine.SampleRows > 0 {
		violations.SampleLimit = cfg.Engine.SampleRows
	}

	e := &Engine{cfg: cfg, paths: paths, logger: logger}
	if providers != nil {
		e.tracer = providers.Tracer
		e.meter = providers.Meter

		var err error
		e.rowsRead, err = e.meter.Int64Counter("panel.raw_rows_read",
			metric.WithDescription("Raw observation rows ingested"))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter: %w", err)
		}
		e.cellsFilled, err = e.meter.Int64Counter("panel.concept_cells",
			metric.WithDescription("Aggregated concept cells produced"))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter: %w", err)
		}
	}
	return e, nil
}

// Run executes the full pipeline and writes all artifacts. It returns the
// final panel so callers (and tests) can inspect it without re-reading the
// export.
func (e *Engine) Run(ctx context.Context, input Input) (*Result, error) {
	runID := uuid.New().String()
	ctx = infrastructure.WithRunID(ctx, runID)
	e.logger.InfoContext(ctx, "starting harmonization run",
		"crosswalk", input.CrosswalkPath,
		"raw", input.RawPath)

	norm := crosswalk.NewNormalizer(e.cfg.Engine.GroupingAliases)

	// Stage: crosswalk validation.
	ctx, span := e.startSpan(ctx, "crosswalk.validate")
	rules, err := crosswalk.LoadCSV(input.CrosswalkPath)
	if err != nil {
		span.End()
		return nil, err
	}
	validated, err := crosswalk.Validate(rules, norm, crosswalk.ValidateOptions{
		YearMin: e.cfg.Engine.YearMin,
		YearMax: e.cfg.Engine.YearMax,
	})
	span.End()
	if err != nil {
		return nil, fmt.Errorf("crosswalk validation: %w", err)
	}
	conceptKeys := validated.ConceptKeys()
	e.logger.InfoContext(ctx, "crosswalk validated",
		"rules", len(validated.Rules()),
		"concepts", len(conceptKeys))

	// Stage: raw ingestion.
	ctx, span = e.startSpan(ctx, "raw.load")
	raw, err := e.loadRaw(input.RawPath, norm)
	span.End()
	if err != nil {
		return nil, err
	}
	e.count(ctx, e.rowsRead, int64(len(raw)))

	// Stage: expansion, clipped to the observed year range for unbounded
	// spans, with the mandatory post-expansion uniqueness re-check.
	ctx, span = e.startSpan(ctx, "crosswalk.expand")
	clipMin, clipMax, _ := harmonize.YearRange(raw)
	expanded, err := crosswalk.Expand(validated, crosswalk.ExpandOptions{ClipMin: clipMin, ClipMax: clipMax})
	span.End()
	if err != nil {
		return nil, fmt.Errorf("crosswalk expansion: %w", err)
	}

	// Stage: harmonization join.
	ctx, span = e.startSpan(ctx, "harmonize.join")
	result := harmonize.Harmonize(ctx, raw, expanded)
	span.End()
	e.count(ctx, e.cellsFilled, int64(len(result.Concepts)))
	if err := result.CheckRequired(e.cfg.Engine.RequiredConcepts, validated.Rules()); err != nil {
		return nil, fmt.Errorf("required concept check: %w", err)
	}

	reporter := report.NewReporter(e.paths, e.logger)
	if err := reporter.WriteCoverage(ctx, result.Coverage); err != nil {
		return nil, fmt.Errorf("write coverage diagnostics: %w", err)
	}

	// Stage: pivot over the full observed (entity, year) base.
	ctx, span = e.startSpan(ctx, "panel.pivot")
	basePairs := harmonize.EntityYearGrid(raw, expanded)
	rows, err := panel.Pivot(result.Concepts, basePairs, conceptKeys)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("panel pivot: %w", err)
	}

	// Stage: longitudinal stabilization.
	policies, err := stabilize.ResolvePolicies(e.cfg.Engine.Policies, conceptKeys)
	if err != nil {
		return nil, fmt.Errorf("policy table: %w", err)
	}
	ctx, span = e.startSpan(ctx, "panel.stabilize")
	err = stabilize.Stabilize(ctx, rows, policies, e.cfg.Engine.Workers)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("stabilization: %w", err)
	}

	// Stage: export.
	ctx, span = e.startSpan(ctx, "panel.export")
	err = e.export(result.Concepts, rows, conceptKeys)
	span.End()
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "harmonization run completed",
		"panel_rows", len(rows),
		"concept_columns", len(conceptKeys))

	return &Result{
		RunID:       runID,
		Rows:        rows,
		ConceptKeys: conceptKeys,
		RawRows:     len(raw),
		Assignments: len(expanded),
		GapVars:     len(result.Coverage.Gaps),
	}, nil
}

func (e *Engine) loadRaw(path string, norm *crosswalk.Normalizer) ([]domain.RawObservation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat raw path: %w", err)
	}
	if info.IsDir() {
		return loader.LoadRawObservationsDir(path, norm)
	}
	return loader.LoadRawObservations(path, norm)
}

func (e *Engine) export(concepts []domain.ConceptObservation, rows []domain.WidePanelRow, conceptKeys []string) error {
	writer := exporter.NewCSVWriter()

	if err := writer.WriteConceptLong(e.paths.GetPanelPath("concepts_long.csv"), concepts); err != nil {
		return fmt.Errorf("write concept-long table: %w", err)
	}
	if err := writer.WriteWidePanel(e.paths.GetPanelPath("panel_wide.csv"), rows, conceptKeys); err != nil {
		return fmt.Errorf("write wide panel: %w", err)
	}
	if e.cfg.Engine.ExportExcel {
		if err := exporter.WriteWidePanelExcel(e.paths.GetPanelPath("panel_wide.xlsx"), rows, conceptKeys); err != nil {
			return fmt.Errorf("write wide panel workbook: %w", err)
		}
	}
	return nil
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("run_id", infrastructure.RunIDFromContext(ctx)),
	))
}

func (e *Engine) count(ctx context.Context, counter metric.Int64Counter, n int64) {
	if counter != nil {
		counter.Add(ctx, n)
	}
}
