// Package config provides unified configuration loading for rumorsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/rumorsim/internal/backup"
	"github.com/nvandessel/rumorsim/internal/constants"
	"github.com/nvandessel/rumorsim/internal/spreading"
	"github.com/nvandessel/rumorsim/internal/store"
	"gopkg.in/yaml.v3"
)

// RumorConfig contains all rumorsim configuration settings.
type RumorConfig struct {
	// Simulation contains the model parameters and run length.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Storage contains settings for the run store.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational and interaction logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Backup contains settings for run archives.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig holds the parameters of a run.
type SimulationConfig struct {
	// PopulationSize is the number of agents. Must be at least 2.
	PopulationSize int `json:"population_size" yaml:"population_size"`

	// SurpriseFactor (SF) weighs belief state in acceptance rolls and drives
	// the victim's reputation decay. Must be >= 0.
	SurpriseFactor float64 `json:"surprise_factor" yaml:"surprise_factor"`

	// ConfidenceFactor (CF) is the reputation sensitivity exponent. Must be > 0.
	ConfidenceFactor float64 `json:"confidence_factor" yaml:"confidence_factor"`

	// RandomizeInteractionCounts draws per-agent capacities from a normal law.
	RandomizeInteractionCounts bool `json:"randomize_interaction_counts" yaml:"randomize_interaction_counts"`

	// StifleProbability is the chance a stifle roll succeeds.
	// Range: 0.0 to 1.0
	StifleProbability float64 `json:"stifle_probability" yaml:"stifle_probability"`

	// Steps is the default run length.
	Steps int `json:"steps" yaml:"steps"`

	// Seed seeds the random stream. 0 picks a time-based seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// AllowRepeatPairs lets a pair interact more than once per step.
	AllowRepeatPairs bool `json:"allow_repeat_pairs" yaml:"allow_repeat_pairs"`
}

// StorageConfig configures where runs are persisted.
type StorageConfig struct {
	// Path is the SQLite database file. Supports ${VAR} and a leading ~.
	// Defaults to ~/.rumorsim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures rumorsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables interaction tracing to TraceDir/interactions.jsonl.
	// "trace" additionally records pairings that changed nothing.
	Level string `json:"level" yaml:"level"`

	// TraceDir is where interactions.jsonl is written. Defaults to ~/.rumorsim.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// BackupConfig configures run archives written by `rumorsim runs export`
// and the rumor_export tool.
type BackupConfig struct {
	// Compression writes gzip archives with a checksummed header.
	Compression bool `json:"compression" yaml:"compression"`

	// Retention limits how many archives are kept in the archive directory.
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig bounds the archive directory. An archive survives if any
// configured limit keeps it.
type RetentionConfig struct {
	MaxCount     int    `json:"max_count" yaml:"max_count"`
	MaxAge       string `json:"max_age,omitempty" yaml:"max_age,omitempty"`               // e.g. "30d", "2w", "720h"
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"` // e.g. "100MB"
}

// Default returns a RumorConfig with sensible defaults.
func Default() *RumorConfig {
	return &RumorConfig{
		Simulation: SimulationConfig{
			PopulationSize:    constants.DefaultPopulationSize,
			SurpriseFactor:    constants.DefaultSurpriseFactor,
			ConfidenceFactor:  constants.DefaultConfidenceFactor,
			StifleProbability: constants.DefaultStifleProbability,
			Steps:             constants.DefaultSteps,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Compression: true,
			Retention: RetentionConfig{
				MaxCount: 10,
			},
		},
	}
}

// DefaultPath returns ~/.rumorsim/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default location and environment variables.
// Order: defaults -> ~/.rumorsim/config.yaml -> environment variables
func Load() (*RumorConfig, error) {
	return LoadWithPath("")
}

// LoadWithPath is Load with an explicit config file. An empty path means the
// default location; a missing default file is not an error, a missing
// explicit file is.
func LoadWithPath(path string) (*RumorConfig, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		_, statErr := os.Stat(path)
		if statErr == nil || explicit {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*RumorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.Path = expandEnvVars(config.Storage.Path)
	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)

	return config, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *RumorConfig) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *RumorConfig) Validate() error {
	if err := c.Simulation.Spreading().Validate(); err != nil {
		return err
	}

	if c.Simulation.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", c.Simulation.Steps)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup.retention.max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}
	if _, err := c.Backup.RetentionPolicy(); err != nil {
		return fmt.Errorf("invalid backup retention: %w", err)
	}

	return nil
}

// RetentionPolicy builds the archive retention policy.
func (b BackupConfig) RetentionPolicy() (backup.RetentionPolicy, error) {
	r := b.Retention
	return backup.NewPolicy(r.MaxCount, r.MaxAge, r.MaxTotalSize)
}

// Spreading converts the simulation settings into an engine configuration.
func (s SimulationConfig) Spreading() spreading.Config {
	return spreading.Config{
		PopulationSize:             s.PopulationSize,
		SurpriseFactor:             s.SurpriseFactor,
		ConfidenceFactor:           s.ConfidenceFactor,
		RandomizeInteractionCounts: s.RandomizeInteractionCounts,
		StifleProbability:          s.StifleProbability,
		AllowRepeatPairs:           s.AllowRepeatPairs,
		Seed:                       s.Seed,
	}
}

// StorePath returns the SQLite database path, resolving the default and a
// leading ~.
func (c *RumorConfig) StorePath() (string, error) {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path)
	}
	return store.DefaultDBPath()
}

// TraceDir returns the directory for interactions.jsonl.
func (c *RumorConfig) TraceDir() (string, error) {
	if c.Logging.TraceDir != "" {
		return expandHome(c.Logging.TraceDir)
	}
	return store.GlobalPath()
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func applyEnvOverrides(config *RumorConfig) {
	if v := os.Getenv("RUMORSIM_POPULATION_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.PopulationSize = n
		}
	}
	if v := os.Getenv("RUMORSIM_SURPRISE_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.SurpriseFactor = f
		}
	}
	if v := os.Getenv("RUMORSIM_CONFIDENCE_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.ConfidenceFactor = f
		}
	}
	if v := os.Getenv("RUMORSIM_RANDOMIZE_INTERACTIONS"); v != "" {
		config.Simulation.RandomizeInteractionCounts = v == "true" || v == "1"
	}
	if v := os.Getenv("RUMORSIM_STIFLE_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.StifleProbability = f
		}
	}
	if v := os.Getenv("RUMORSIM_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Steps = n
		}
	}
	if v := os.Getenv("RUMORSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
	if v := os.Getenv("RUMORSIM_STORAGE_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("RUMORSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~")), nil
}
