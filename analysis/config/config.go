// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the path reconstruction.
// If some field is not defined in the config file, it will be set to its default value.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string
}

// Options are the tuning knobs of the path builders
type Options struct {
	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// PathBuilder is the name of the path reconstruction algorithm. One of "recursive", "context-sensitive",
	// "context-insensitive" and "context-insensitive-source-finder".
	PathBuilder string `yaml:"path-builder"`

	// MaxThreads is the number of workers of the path builders. -1 (or any non-positive value) means all the
	// available CPUs. Values larger than the number of CPUs are capped.
	MaxThreads int `yaml:"max-threads"`

	// ReconstructPaths specifies whether the statements between sources and sinks should be reconstructed. If
	// false, the builders only report which sources reach which sinks.
	ReconstructPaths bool `yaml:"reconstruct-paths"`

	// MaxDepth sets a limit for the call stack depth explored by the recursive builders.
	// Default is -1.
	// If provided MaxDepth is <= 0, then it is ignored.
	MaxDepth int `yaml:"max-depth"`

	// FailOnInvariantViolation makes the builders stop and return an error when the abstraction graph they traverse
	// is malformed. Otherwise, the error is logged and the malformed node is skipped.
	FailOnInvariantViolation bool `yaml:"fail-on-invariant-violation"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			LogLevel:                 int(InfoLevel),
			PathBuilder:              DefaultPathBuilder,
			MaxThreads:               DefaultMaxThreads,
			ReconstructPaths:         true,
			MaxDepth:                 DefaultSafeMaxDepth,
			FailOnInvariantViolation: false,
			SilenceWarn:              false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	return cfg, nil
}

// Parse reads a configuration from the content of a yaml file. Fields that are not set keep their default value.
func Parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	// Set the MaxDepth default if it is <= 0
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultSafeMaxDepth
	}

	if cfg.PathBuilder == "" {
		cfg.PathBuilder = DefaultPathBuilder
	}
	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// SourceFile returns the file the config has been loaded from, or the empty string for a default config
func (c Config) SourceFile() string {
	return c.sourceFile
}
