// Package config parses the dispatch.yaml session configuration: which Go
// packages to scan, which proto files to load, the alias table, and cache
// settings. A config is loaded once at session start.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no explicit
// config path is given.
const DefaultFileName = "dispatch.yaml"

// Config is the top-level dispatch.yaml structure.
type Config struct {
	// Packages lists Go package patterns to scan into the catalog.
	Packages []string `yaml:"packages,omitempty"`

	// Protos lists protobuf sources to load.
	Protos []ProtoSpec `yaml:"protos,omitempty"`

	// Aliases maps short names to fully-qualified type names.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// CacheDir holds the snapshot database ("" disables caching).
	CacheDir string `yaml:"cache_dir,omitempty"`

	// NoWarn suppresses missing-constructor warnings during enumeration.
	NoWarn bool `yaml:"no_warn,omitempty"`
}

// ProtoSpec describes one protobuf source: either a .proto file (with import
// paths) or a compiled descriptor set. Target, when set, is the gRPC address
// used to back RPC invocation.
type ProtoSpec struct {
	File          string   `yaml:"file,omitempty"`
	ImportPaths   []string `yaml:"import_paths,omitempty"`
	DescriptorSet string   `yaml:"descriptor_set,omitempty"`
	Target        string   `yaml:"target,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// Relative proto paths are resolved against the config location.
	base := filepath.Dir(path)
	for i := range cfg.Protos {
		p := &cfg.Protos[i]
		if p.File != "" && !filepath.IsAbs(p.File) {
			p.File = filepath.Join(base, p.File)
		}
		if p.DescriptorSet != "" && !filepath.IsAbs(p.DescriptorSet) {
			p.DescriptorSet = filepath.Join(base, p.DescriptorSet)
		}
	}
	return cfg, nil
}

// Parse decodes and validates raw yaml.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints the yaml schema cannot express.
func (c *Config) Validate() error {
	for i, p := range c.Protos {
		if p.File == "" && p.DescriptorSet == "" {
			return fmt.Errorf("protos[%d]: either file or descriptor_set is required", i)
		}
		if p.File != "" && p.DescriptorSet != "" {
			return fmt.Errorf("protos[%d]: file and descriptor_set are mutually exclusive", i)
		}
	}
	for alias, target := range c.Aliases {
		if target == "" {
			return fmt.Errorf("alias %q: target type name is required", alias)
		}
	}
	return nil
}
