// Package config loads merger settings from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "cvmerge.yml"

// Config defines all options that can be set through the config file.
type Config struct {
	// Workers is the parallel-for width; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// LibPaths are searched for type-server PDBs by base name.
	LibPaths []string `yaml:"lib-paths"`

	// DeepVerify compares leaf contents before treating equal hashes as
	// the same type.
	DeepVerify bool `yaml:"deep-verify"`

	// RadixThreshold is the bucket count from which the sorter switches
	// from a comparison sort to the parallel radix sort.
	RadixThreshold *int `yaml:"radix-threshold,omitempty"`

	// Log lists the layers to log (merge, typeserver, objfile).
	Log string `yaml:"log"`
}

// Load reads the config at path. A missing file yields an empty Config
// when optional is set.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML config document.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.RadixThreshold != nil && *c.RadixThreshold < 0 {
		return nil, fmt.Errorf("config: radix-threshold must not be negative, got %d", *c.RadixThreshold)
	}
	return &c, nil
}
