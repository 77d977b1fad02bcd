// Package config loads the module line-count limits file and holds the
// selector's runtime configuration, mirroring the flat-struct-with-
// String() idiom the teacher uses for its own config types.
package config

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/mantlenetworkio/sequencer-selector/internal/linecount"
)

type limitsFile struct {
	TracesLimits map[string]int64 `toml:"traces-limits"`
}

// LoadModuleLimits parses the TOML module-limits file at path. Module
// names are used uppercase, as supplied; limit values must be positive
// and must fit in 32 bits, per spec.md §6.
func LoadModuleLimits(path string) (linecount.Limits, error) {
	var parsed limitsFile
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, fmt.Errorf("parsing module limits file %q: %w", path, err)
	}
	if len(parsed.TracesLimits) == 0 {
		return nil, fmt.Errorf("module limits file %q: missing or empty [traces-limits] table", path)
	}

	limits := make(linecount.Limits, len(parsed.TracesLimits))
	for module, limit := range parsed.TracesLimits {
		if limit <= 0 {
			return nil, fmt.Errorf("module limits file %q: module %s has non-positive limit %d", path, module, limit)
		}
		if limit > math.MaxInt32 {
			return nil, fmt.Errorf("module limits file %q: module %s limit %d overflows int32", path, module, limit)
		}
		limits[module] = limit
	}
	return limits, nil
}
