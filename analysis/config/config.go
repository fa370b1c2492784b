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

// Package config holds the options that drive the memprofctx core and its
// command-line driver: which debug stages run, where dot exports and
// imported summaries live, and at what log level.
package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// configFile is the global config filename set by SetGlobalConfig.
	configFile string
)

// SetGlobalConfig sets the global config filename.
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig.
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config holds the options enumerated in the transformation's external
// interface: which debug stages run, where artifacts go, and at what log
// level.
type Config struct {
	Options

	sourceFile string
}

// Options are the options settable from a YAML config file. Every option is
// off by default.
type Options struct {
	// DumpGraph logs a one-line summary of the calling context graph (its
	// node count) at debug level after each major stage (build, match,
	// sanitize, clone, assign). The graph's nodes and edges are not printed.
	DumpGraph bool `yaml:"dump-graph"`

	// VerifyGraph runs the graph-level invariant checks after each major
	// stage.
	VerifyGraph bool `yaml:"verify-graph"`

	// VerifyNodes is loaded from the config file, but no stage reads it:
	// cloning runs no per-node invariant checks of its own.
	VerifyNodes bool `yaml:"verify-nodes"`

	// ExportDot writes dot files at each major stage under DotPathPrefix.
	ExportDot bool `yaml:"export-dot"`

	// DotPathPrefix is the path prefix used when ExportDot is set.
	DotPathPrefix string `yaml:"dot-path-prefix"`

	// ImportSummaryPath is consumed by the summary-flavor driver, not by the
	// core: path to a serialized whole-program summary to ingest.
	ImportSummaryPath string `yaml:"import-summary-path"`

	// LogLevel controls the verbosity of the tool.
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns the default configuration: every option off, Info-level
// logging.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			LogLevel: int(InfoLevel),
		},
	}
}

// Load reads a configuration from a YAML file.
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	if filename == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	return cfg, nil
}

// RelPath returns filename relative to the config's source file.
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configured verbosity is Debug or above.
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
