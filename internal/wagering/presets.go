package wagering

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Built-in preset names
const (
	PresetBalance = "balance"
	PresetSafe    = "safe"
	PresetValue   = "value"
)

// Presets maps preset names to partial policies
type Presets map[string]Policy

// DefaultPresets returns the built-in presets
func DefaultPresets() Presets {
	return Presets{
		PresetBalance: {
			Ranking:        RankByEVThenProbability,
			MinProbability: float64Ptr(0.20),
			MaxOddsUsed:    float64Ptr(15),
		},
		PresetSafe: {
			Ranking:        RankByProbability,
			MinProbability: float64Ptr(0.30),
			MaxOddsUsed:    float64Ptr(8),
		},
		PresetValue: {
			Ranking:          RankByExpectedValue,
			MinExpectedValue: float64Ptr(0.10),
		},
	}
}

// Lookup returns the named preset. An empty name yields an empty policy.
func (ps Presets) Lookup(name string) (Policy, error) {
	if name == "" {
		return Policy{}, nil
	}
	p, ok := ps[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: unknown preset %q (known: %v)", ErrInvalidPolicy, name, ps.Names())
	}
	return p, nil
}

// Names returns the preset names in sorted order
func (ps Presets) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type presetsFile struct {
	Presets map[string]Policy `yaml:"presets"`
}

// LoadPresets reads presets from a YAML file on top of the built-in ones.
// A file preset with a built-in name replaces it.
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes a presets document. Unknown keys are rejected.
func ParsePresets(data []byte) (Presets, error) {
	var file presetsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to parse presets: %v", ErrInvalidPolicy, err)
	}

	presets := DefaultPresets()
	for name, p := range file.Presets {
		if err := Resolve(p, Policy{}).Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[name] = p
	}
	return presets, nil
}
