package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete engine configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/panel.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// EngineConfig contains harmonization engine behavior knobs
type EngineConfig struct {
	// YearMin and YearMax bound the plausible survey window; crosswalk spans
	// outside this window are rejected as malformed.
	YearMin int `yaml:"year_min" envconfig:"YEAR_MIN" default:"1900"`
	YearMax int `yaml:"year_max" envconfig:"YEAR_MAX" default:"2100"`

	// Workers bounds per-entity stabilization parallelism. Zero means one
	// worker per CPU.
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"0"`

	// SampleRows caps how many offending tuples a violation message names.
	// Zero keeps the built-in default.
	SampleRows int `yaml:"sample_rows" envconfig:"SAMPLE_ROWS" default:"0"`

	// RequiredConcepts lists concept keys that must match at least one raw
	// observation in their applicable years; an empty match aborts the run.
	RequiredConcepts []string `yaml:"required_concepts" envconfig:"REQUIRED_CONCEPTS"`

	// GroupingAliases maps alternate grouping-key spellings onto their
	// canonical form before any matching happens.
	GroupingAliases map[string]string `yaml:"grouping_aliases"`

	// Policies declares which stabilization policy applies to which concept
	// columns, by glob-style pattern. Validated against the concept schema
	// at startup.
	Policies []PolicyRule `yaml:"policies"`

	// ExportExcel additionally writes the wide panel as an xlsx workbook.
	ExportExcel bool `yaml:"export_excel" envconfig:"EXPORT_EXCEL" default:"false"`
}

// PolicyRule binds a concept column pattern to a named stabilization policy.
type PolicyRule struct {
	Pattern string `yaml:"pattern"`
	Policy  string `yaml:"policy"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("PANEL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment is
// present, matching the historical pipeline's behavior.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/panel.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Engine: EngineConfig{
			YearMin: 1900,
			YearMax: 2100,
		},
	}
}

func getConfigFilePath() string {
	if path := os.Getenv("PANEL_CONFIG_FILE"); path != "" {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return "panelcli.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "panelcli.yaml")
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// mergeConfigs overlays the file config on the environment config: file
// values win where set, environment values fill what the file leaves unset,
// and boolean switches stay on when either source enables them.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := fileConfig

	if merged.Logging.Level == "" {
		merged.Logging.Level = envConfig.Logging.Level
	}
	if merged.Logging.Format == "" {
		merged.Logging.Format = envConfig.Logging.Format
	}
	if merged.Logging.Output == "" {
		merged.Logging.Output = envConfig.Logging.Output
	}
	if merged.Logging.FilePath == "" {
		merged.Logging.FilePath = envConfig.Logging.FilePath
	}
	merged.Logging.Development = merged.Logging.Development || envConfig.Logging.Development
	if merged.Paths.DataDir == "" {
		merged.Paths.DataDir = envConfig.Paths.DataDir
	}
	if merged.Paths.LogsDir == "" {
		merged.Paths.LogsDir = envConfig.Paths.LogsDir
	}
	if merged.Engine.YearMin == 0 {
		merged.Engine.YearMin = envConfig.Engine.YearMin
	}
	if merged.Engine.YearMax == 0 {
		merged.Engine.YearMax = envConfig.Engine.YearMax
	}
	if merged.Engine.Workers == 0 {
		merged.Engine.Workers = envConfig.Engine.Workers
	}
	if merged.Engine.SampleRows == 0 {
		merged.Engine.SampleRows = envConfig.Engine.SampleRows
	}
	if len(merged.Engine.RequiredConcepts) == 0 {
		merged.Engine.RequiredConcepts = envConfig.Engine.RequiredConcepts
	}
	if len(merged.Engine.GroupingAliases) == 0 {
		merged.Engine.GroupingAliases = envConfig.Engine.GroupingAliases
	}
	if len(merged.Engine.Policies) == 0 {
		merged.Engine.Policies = envConfig.Engine.Policies
	}
	merged.Engine.ExportExcel = merged.Engine.ExportExcel || envConfig.Engine.ExportExcel

	return merged
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Engine.YearMin >= c.Engine.YearMax {
		return fmt.Errorf("year_min %d must be below year_max %d", c.Engine.YearMin, c.Engine.YearMax)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Engine.Workers)
	}
	if c.Engine.SampleRows < 0 {
		return fmt.Errorf("sample_rows must be non-negative, got %d", c.Engine.SampleRows)
	}

	for _, p := range c.Engine.Policies {
		if strings.TrimSpace(p.Pattern) == "" {
			return fmt.Errorf("policy rule with empty pattern (policy=%s)", p.Policy)
		}
		if strings.TrimSpace(p.Policy) == "" {
			return fmt.Errorf("policy rule with empty policy name (pattern=%s)", p.Pattern)
		}
	}

	return nil
}
