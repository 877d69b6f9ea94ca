// Package config provides configuration loading and structs for progressvis.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Larry-Leee/progressVisualisation/internal/columns"
	"github.com/Larry-Leee/progressVisualisation/internal/locator"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
	Locator LocatorConfig `yaml:"locator"`
	Columns ColumnsConfig `yaml:"columns"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Export  ExportConfig  `yaml:"export"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadMB caps the size of documents posted to the API.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// StorageConfig holds paths for the record database and the project index.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	ProjectIndexPath string `yaml:"project_index_path"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// LocatorConfig selects how the progress table is recognized.
// Mode "keyword" requires every keyword in the joined header text;
// mode "exact" requires every exact header among the header cells.
type LocatorConfig struct {
	Mode         string   `yaml:"mode"`
	Keywords     []string `yaml:"keywords"`
	ExactHeaders []string `yaml:"exact_headers"`
}

// Predicate builds the locator predicate for the configured mode.
func (l LocatorConfig) Predicate() (locator.Predicate, error) {
	return locator.FromMode(l.Mode, l.Keywords, l.ExactHeaders)
}

// ColumnsConfig lists header keywords per canonical field, highest priority first.
type ColumnsConfig struct {
	ProjectName        []string `yaml:"project_name"`
	DesignQuantity     []string `yaml:"design_quantity"`
	CumulativeQuantity []string `yaml:"cumulative_quantity"`
	PeriodPlan         []string `yaml:"period_plan"`
	PeriodActual       []string `yaml:"period_actual"`
}

// KeywordTable converts the section into the column mapper's keyword table.
func (c ColumnsConfig) KeywordTable() columns.KeywordTable {
	return columns.KeywordTable{
		models.FieldProjectName:        c.ProjectName,
		models.FieldDesignQuantity:     c.DesignQuantity,
		models.FieldCumulativeQuantity: c.CumulativeQuantity,
		models.FieldPeriodPlan:         c.PeriodPlan,
		models.FieldPeriodActual:       c.PeriodActual,
	}
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Workers int `yaml:"workers"`
	// SkipUnchanged skips documents whose content was already ingested for the period.
	SkipUnchanged *bool `yaml:"skip_unchanged"`
}

// SkipUnchangedOrDefault defaults to true when unset.
func (i *IngestConfig) SkipUnchangedOrDefault() bool {
	if i.SkipUnchanged != nil {
		return *i.SkipUnchanged
	}
	return true
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	Directory string `yaml:"directory"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed, or the locator mode is unknown.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if _, err := cfg.Locator.Predicate(); err != nil {
		return nil, fmt.Errorf("invalid locator config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.ProjectIndexPath = expandPath(cfg.Storage.ProjectIndexPath, configDir)
	cfg.Export.Directory = expandPath(cfg.Export.Directory, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
