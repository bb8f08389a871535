package main

import (
	"flag"
	"log/slog"
	"os"

	"panelcli/internal/config"
	"panelcli/internal/crosswalk"
	"panelcli/internal/exporter"
	"panelcli/internal/infrastructure"
	"panelcli/internal/validation"
)

// crosswalkcheck validates a crosswalk file and emits the compacted
// merged-interval review CSV, the form curators edit before the next run.
func main() {
	inPath := flag.String("in", "", "crosswalk CSV file to validate (required)")
	outPath := flag.String("out", "", "output path for the compacted review CSV (defaults to <in>.compacted.csv)")
	flag.Parse()

	if *inPath == "" {
		slog.Error("missing required -in flag")
		flag.Usage()
		os.Exit(2)
	}
	if *outPath == "" {
		*outPath = *inPath + ".compacted.csv"
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogger()

	if err := validation.NewFileValidator(logger).ValidateInputFile(*inPath); err != nil {
		logger.Error("Input validation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rules, err := crosswalk.LoadCSV(*inPath)
	if err != nil {
		logger.Error("Failed to load crosswalk", slog.String("error", err.Error()))
		os.Exit(1)
	}

	norm := crosswalk.NewNormalizer(cfg.Engine.GroupingAliases)
	validated, err := crosswalk.Validate(rules, norm, crosswalk.ValidateOptions{
		YearMin: cfg.Engine.YearMin,
		YearMax: cfg.Engine.YearMax,
	})
	if err != nil {
		logger.Error("Crosswalk is invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	intervals := crosswalk.Compact(validated.Rules())
	if err := exporter.NewCSVWriter().WriteCompactedCrosswalk(*outPath, intervals); err != nil {
		logger.Error("Failed to write review file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Crosswalk validated",
		slog.String("input", *inPath),
		slog.Int("rules", len(validated.Rules())),
		slog.Int("compacted_intervals", len(intervals)),
		slog.String("review_file", *outPath))
}
