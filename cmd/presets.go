package cmd

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wavegen/wavegen/load"
)

//go:embed presets.yaml
var builtinPresets []byte

// PresetFile is the structure of presets.yaml: named session shapes without a
// target, selected with --preset.
type PresetFile struct {
	Version string                      `yaml:"version"`
	Presets map[string]load.SessionSpec `yaml:"presets"`
}

// loadPresets parses a presets file with strict field checking. An empty path
// selects the built-in presets.
func loadPresets(path string) (*PresetFile, error) {
	data := builtinPresets
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading presets: %w", err)
		}
	}
	var pf PresetFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	return &pf, nil
}

// preset returns a copy of the named preset.
func (pf *PresetFile) preset(name string) (*load.SessionSpec, error) {
	p, ok := pf.Presets[name]
	if !ok {
		names := make([]string, 0, len(pf.Presets))
		for n := range pf.Presets {
			names = append(names, n)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	p.Ports = append([]int(nil), p.Ports...)
	p.Identity.Addresses = append([]string(nil), p.Identity.Addresses...)
	return &p, nil
}
