// Package config handles simpletron.toml tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "simpletron.toml"

// Config represents a simpletron.toml file.
type Config struct {
	Compile  Compile  `toml:"compile"`
	Simulate Simulate `toml:"simulate"`
	Logging  Logging  `toml:"logging"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Compile configures the compile command.
type Compile struct {
	Output   string `toml:"output"`
	Optimize bool   `toml:"optimize"`
}

// Simulate configures the sim and run commands.
type Simulate struct {
	Debug       bool   `toml:"debug"`
	MaxSteps    int64  `toml:"max_steps"`
	Input       string `toml:"input"`
	InputColumn string `toml:"input_column"`
	Trace       string `toml:"trace"`
	TraceLimit  int    `toml:"trace_limit"`
	Snapshot    string `toml:"snapshot"`
}

// Logging configures loggo.
type Logging struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Compile: Compile{Output: "out.sml"},
		Logging: Logging{Level: "<root>=WARNING"},
	}
}

// Load parses the configuration file at path. Unset keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path

	if c.Compile.Output == "" {
		c.Compile.Output = Default().Compile.Output
	}
	if c.Simulate.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: max_steps must not be negative", path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a simpletron.toml file and
// loads it. Defaults are returned when no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}
