package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds all resolved directory paths for a run. Input and output
// directories hang off a single data root so one run's artifacts stay
// together.
type Paths struct {
	ExecutableDir  string
	DataDir        string
	CrosswalksDir  string
	RawDir         string
	PanelsDir      string
	DiagnosticsDir string
	LogsDir        string
}

// GetPaths resolves the directory layout relative to the executable, unless
// PANEL_DATA_DIR overrides the data root.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to determine executable path: %w", err)
	}
	exeDir := filepath.Dir(exe)

	dataDir := os.Getenv("PANEL_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(exeDir, "data")
	}

	return &Paths{
		ExecutableDir:  exeDir,
		DataDir:        dataDir,
		CrosswalksDir:  filepath.Join(dataDir, "crosswalks"),
		RawDir:         filepath.Join(dataDir, "raw"),
		PanelsDir:      filepath.Join(dataDir, "panels"),
		DiagnosticsDir: filepath.Join(dataDir, "diagnostics"),
		LogsDir:        filepath.Join(exeDir, "logs"),
	}, nil
}

// PathsFromDataDir builds the layout under an explicit data root. Used by
// the CLIs when -data is given and by tests.
func PathsFromDataDir(dataDir string) *Paths {
	return &Paths{
		DataDir:        dataDir,
		CrosswalksDir:  filepath.Join(dataDir, "crosswalks"),
		RawDir:         filepath.Join(dataDir, "raw"),
		PanelsDir:      filepath.Join(dataDir, "panels"),
		DiagnosticsDir: filepath.Join(dataDir, "diagnostics"),
		LogsDir:        filepath.Join(dataDir, "logs"),
	}
}

// EnsureDirectories creates all output directories if they do not exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.DataDir,
		p.CrosswalksDir,
		p.RawDir,
		p.PanelsDir,
		p.DiagnosticsDir,
		p.LogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetPanelPath returns the full path for a panel output file.
func (p *Paths) GetPanelPath(filename string) string {
	return filepath.Join(p.PanelsDir, filename)
}

// GetDiagnosticsPath returns the full path for a diagnostics side-file.
func (p *Paths) GetDiagnosticsPath(filename string) string {
	return filepath.Join(p.DiagnosticsDir, filename)
}

// GetCrosswalkPath returns the full path for a crosswalk file.
func (p *Paths) GetCrosswalkPath(filename string) string {
	return filepath.Join(p.CrosswalksDir, filename)
}

// GetLogPath returns the full path for a log file.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks whether a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
