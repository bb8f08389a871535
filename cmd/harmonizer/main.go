package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"panelcli/internal/config"
	"panelcli/internal/engine"
	"panelcli/internal/infrastructure"
	"panelcli/internal/validation"
	"panelcli/pkg/contracts"
)

func main() {
	crosswalkPath := flag.String("crosswalk", "", "crosswalk CSV file (defaults to data/crosswalks/crosswalk.csv)")
	rawPath := flag.String("raw", "", "raw observation file or directory (defaults to data/raw)")
	dataDir := flag.String("data", "", "data root directory (defaults to data/ next to the executable)")
	noTelemetry := flag.Bool("no-telemetry", false, "disable OpenTelemetry tracing and metrics")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(contracts.GetVersionInfo().String() + "\n")
		return
	}

	var paths *config.Paths
	if *dataDir != "" {
		paths = config.PathsFromDataDir(*dataDir)
	} else {
		var err error
		paths, err = config.GetPaths()
		if err != nil {
			slog.Error("Failed to initialize paths", "error", err)
			os.Exit(1)
		}
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if *crosswalkPath == "" {
		*crosswalkPath = paths.GetCrosswalkPath("crosswalk.csv")
	}
	if *rawPath == "" {
		*rawPath = paths.RawDir
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
		cfg.Logging.FilePath = paths.GetLogPath("harmonizer.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogger()

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateInputFile(*crosswalkPath); err != nil {
		logger.Error("Crosswalk validation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if info, statErr := os.Stat(*rawPath); statErr == nil && info.IsDir() {
		if err := validator.ValidateInputDirectory(*rawPath, "*"); err != nil {
			logger.Error("Raw input validation failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else if err := validator.ValidateInputFile(*rawPath); err != nil {
		logger.Error("Raw input validation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var providers *infrastructure.OTelProviders
	if !*noTelemetry {
		providers, err = infrastructure.InitializeOTel(nil, logger)
		if err != nil {
			logger.Warn("Failed to initialize telemetry, continuing without it", slog.String("error", err.Error()))
		}
	}

	eng, err := engine.New(cfg, paths, logger, providers)
	if err != nil {
		logger.Error("Failed to create engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	start := time.Now()
	result, err := eng.Run(ctx, engine.Input{
		CrosswalkPath: *crosswalkPath,
		RawPath:       *rawPath,
	})
	if err != nil {
		logger.Error("Harmonization run failed", slog.String("error", err.Error()))
		if providers != nil {
			providers.Shutdown(ctx)
		}
		os.Exit(1)
	}

	logger.Info("Run finished",
		slog.String("run_id", result.RunID),
		slog.Int("raw_rows", result.RawRows),
		slog.Int("panel_rows", len(result.Rows)),
		slog.Int("concept_columns", len(result.ConceptKeys)),
		slog.Int("unmatched_vars", result.GapVars),
		slog.Duration("elapsed", time.Since(start)))

	if providers != nil {
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
}
