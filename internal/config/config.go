// Package config loads litesync settings from a YAML or CUE file and applies
// LITESYNC_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Pair names two databases kept in sync by the watch command.
type Pair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Index names a secondary index the index command ensures.
type Index struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Config is the full set of litesync settings.
type Config struct {
	LogFile       string        `yaml:"log_file" env:"LITESYNC_LOG_FILE"`
	LogMaxSizeMB  int           `yaml:"log_max_size_mb" env:"LITESYNC_LOG_MAX_SIZE_MB"`
	LogMaxBackups int           `yaml:"log_max_backups" env:"LITESYNC_LOG_MAX_BACKUPS"`
	LogQueries    bool          `yaml:"log_queries" env:"LITESYNC_LOG_QUERIES"`
	Journal       string        `yaml:"journal" env:"LITESYNC_JOURNAL"`
	Interval      time.Duration `yaml:"interval" env:"LITESYNC_INTERVAL"`
	MetricsAddr   string        `yaml:"metrics_addr" env:"LITESYNC_METRICS_ADDR"`

	Pairs    []Pair   `yaml:"pairs"`
	Indexes  []Index  `yaml:"indexes"`
	Triggers []string `yaml:"triggers" env:"LITESYNC_TRIGGERS" envSeparator:","`
}

// Defaults.
const (
	DefaultLogFile       = "litesync.log"
	DefaultLogMaxSizeMB  = 1
	DefaultLogMaxBackups = 5
	DefaultJournal       = "databases/analytics.db"
	DefaultInterval      = time.Second
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogFile:       DefaultLogFile,
		LogMaxSizeMB:  DefaultLogMaxSizeMB,
		LogMaxBackups: DefaultLogMaxBackups,
		Journal:       DefaultJournal,
		Interval:      DefaultInterval,
	}
}

// Load reads path (empty for none) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
		case ".cue":
			data, err = cueToJSON(path, data)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}

		// JSON is valid YAML, so CUE output decodes through the same path.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings for values no command can use.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("log_max_size_mb must be positive, got %d", c.LogMaxSizeMB)
	}
	if c.LogMaxBackups < 0 {
		return fmt.Errorf("log_max_backups must not be negative, got %d", c.LogMaxBackups)
	}
	for i, p := range c.Pairs {
		if p.A == "" || p.B == "" {
			return fmt.Errorf("pairs[%d]: both a and b are required", i)
		}
	}
	for i, idx := range c.Indexes {
		if idx.Table == "" || idx.Column == "" {
			return fmt.Errorf("indexes[%d]: both table and column are required", i)
		}
	}
	return nil
}
