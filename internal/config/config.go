// Package config loads the checker/VM feature-flag file (spec §1's ambient
// stack addition: the core itself is flagless, but a complete repository
// around it needs somewhere to carry strictExhaustiveness,
// parallelCollections, maxRecursionDepth and channelCapacityDefault without
// threading CLI flags through every constructor).
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"vela/internal/vm"
)

// Config is the decoded shape of vela.yaml.
type Config struct {
	// StrictExhaustiveness promotes C6's non-exhaustive-match and
	// unreachable-arm diagnostics from warnings to errors (spec §4.4,
	// §9 "implementers MAY escalate... under a flag").
	StrictExhaustiveness bool `yaml:"strictExhaustiveness"`

	// ParallelCollections is passed to vm.New, which stores it without acting
	// on it: ParallelMap/Filter/Reduce run sequentially, identical to
	// Map/Filter/Reduce, whether it is true or false.
	ParallelCollections bool `yaml:"parallelCollections"`

	// MaxRecursionDepth bounds non-tail SelfCall/Call recursion (spec
	// §4.7 MAX_RECURSION_DEPTH). Zero means "use the default".
	MaxRecursionDepth int `yaml:"maxRecursionDepth"`

	// ChannelCapacityDefault is loaded and defaulted here; nothing outside
	// this package reads it, so no channel takes its capacity from it.
	ChannelCapacityDefault int `yaml:"channelCapacityDefault"`
}

// Default returns the spec's defaults: non-strict exhaustiveness, serial
// collections, MAX_RECURSION_DEPTH = 1000, and a default channel capacity
// of 1 (the smallest capacity that lets a single Send
// followed by a single Recv ever succeed in the single-threaded fallback).
func Default() Config {
	return Config{
		StrictExhaustiveness:   false,
		ParallelCollections:    false,
		MaxRecursionDepth:      vm.MaxRecursionDepth,
		ChannelCapacityDefault: 1,
	}
}

// Load reads path as YAML, falling back to Default() field-by-field for
// anything the file doesn't set. A missing file is not an error — an
// absent vela.yaml means "use the defaults", matching the CLI collaborator
// framing of spec §1 (the core itself has no notion of a config file).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}
	if raw.StrictExhaustiveness != nil {
		cfg.StrictExhaustiveness = *raw.StrictExhaustiveness
	}
	if raw.ParallelCollections != nil {
		cfg.ParallelCollections = *raw.ParallelCollections
	}
	if raw.MaxRecursionDepth != nil {
		cfg.MaxRecursionDepth = *raw.MaxRecursionDepth
	}
	if raw.ChannelCapacityDefault != nil {
		cfg.ChannelCapacityDefault = *raw.ChannelCapacityDefault
	}
	return cfg, nil
}

// rawConfig mirrors Config with pointer fields so Load can tell "absent
// from the file" apart from "explicitly set to the zero value".
type rawConfig struct {
	StrictExhaustiveness   *bool `yaml:"strictExhaustiveness"`
	ParallelCollections    *bool `yaml:"parallelCollections"`
	MaxRecursionDepth      *int  `yaml:"maxRecursionDepth"`
	ChannelCapacityDefault *int  `yaml:"channelCapacityDefault"`
}
