package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the analyzed root.
const FileName = "dsmviewer.yaml"

// Config controls which sources are analyzed and where the model is kept.
type Config struct {
	ExcludedDirs   []string `yaml:"excluded_dirs"`   // Directory names skipped while walking sources.
	ExcludedNames  []string `yaml:"excluded_names"`  // Doublestar patterns matched against element full names.
	PersistenceDir string   `yaml:"persistence_dir"` // Directory holding the SQLite model.
	ModelFile      string   `yaml:"model_file"`      // Database file name inside PersistenceDir.
	LogMode        string   `yaml:"log_mode"`        // "dev" or "prod".
	StrictWeights  bool     `yaml:"strict_weights"`  // Panic on weight underflow instead of clamping.
}

// DefaultConfig is used when no configuration file exists and fills in missing fields.
var DefaultConfig = Config{
	ExcludedDirs:   []string{"node_modules", "dist", "build", ".git", "vendor", "testdata"},
	ExcludedNames:  []string{},
	PersistenceDir: ".dsmviewer",
	ModelFile:      "model.db",
	LogMode:        "prod",
}

// LoadConfig reads dsmviewer.yaml from rootDir. A missing file yields the defaults;
// a file that cannot be parsed is an error.
func LoadConfig(rootDir string) (*Config, error) {
	path := filepath.Join(rootDir, FileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	// Apply defaults if empty
	if len(cfg.ExcludedDirs) == 0 {
		cfg.ExcludedDirs = DefaultConfig.ExcludedDirs
	}
	if cfg.PersistenceDir == "" {
		cfg.PersistenceDir = DefaultConfig.PersistenceDir
	}
	if cfg.ModelFile == "" {
		cfg.ModelFile = DefaultConfig.ModelFile
	}
	if cfg.LogMode == "" {
		cfg.LogMode = DefaultConfig.LogMode
	}
	return &cfg, nil
}

// ModelPath returns the database location for a project rooted at rootDir.
func (c *Config) ModelPath(rootDir string) string {
	dir := c.PersistenceDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(rootDir, dir)
	}
	return filepath.Join(dir, c.ModelFile)
}
