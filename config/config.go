// Package config loads the pipeline configuration from YAML, with defaults
// for every field so an absent or empty file yields a runnable setup.
package config

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/primetree/core"
)

// PipelineConfig holds the search parameters and the partition layout.
type PipelineConfig struct {
	// PrimeType is the truncation discipline: r, l, lor or lar.
	PrimeType string `yaml:"prime_type"`
	Base      int    `yaml:"base"`
	// Root is the recursion root as decimal text; "0" grows the full tree.
	Root string `yaml:"root"`
	// MaxLength bounds generated digit counts.
	MaxLength uint32 `yaml:"max_length"`
	// SplitLength is the depth the root pass splits the search at.
	SplitLength int `yaml:"split_length"`
	// DataDir is the partition directory.
	DataDir string `yaml:"data_dir"`
	// Compression names the codec for job partition files in transit:
	// none, snappy, lz4 or zstd.
	Compression string `yaml:"compression"`
	// Workers bounds concurrent jobs in the local runner.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Output string `yaml:"output"` // "stdout", "stderr", "file", "none"
	File   string `yaml:"file"`   // log file path when output is "file"
}

// Config is the top-level configuration struct.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads configuration from an io.Reader. This is the core logic,
// separated from file handling for testability. A nil reader or empty
// input returns the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{
		Pipeline: PipelineConfig{
			PrimeType:   "r",
			Base:        10,
			Root:        "0",
			MaxLength:   core.UnlimitedLength,
			SplitLength: 4,
			DataDir:     "./data",
			Compression: "none",
			Workers:     runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			File:   "primetree.log",
		},
	}

	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file
// returns the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}

// Validate checks the cross-field constraints the YAML schema cannot.
func (c *Config) Validate() error {
	if _, err := core.ParseDiscipline(c.Pipeline.PrimeType); err != nil {
		return err
	}
	if err := core.ValidateBase(c.Pipeline.Base); err != nil {
		return err
	}
	if _, err := core.ParseCompressionType(c.Pipeline.Compression); err != nil {
		return err
	}
	if c.Pipeline.SplitLength < 2 {
		return fmt.Errorf("split_length %d too small", c.Pipeline.SplitLength)
	}
	return nil
}
