package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk shape shared by the YAML and CUE loaders.
// CUE decoding honours the json tags.
type registryFile struct {
	Models    []modelRecord    `yaml:"models" json:"models"`
	Scenarios []scenarioRecord `yaml:"scenarios" json:"scenarios"`
}

type modelRecord struct {
	ID         string   `yaml:"id" json:"id"`
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
}

type scenarioRecord struct {
	Model          string         `yaml:"model" json:"model"`
	Solver         string         `yaml:"solver" json:"solver"`
	Interface      string         `yaml:"interface" json:"interface"`
	Status         string         `yaml:"status,omitempty" json:"status,omitempty"`
	Message        string         `yaml:"message,omitempty" json:"message,omitempty"`
	ImportSuffixes []string       `yaml:"import_suffixes,omitempty" json:"import_suffixes,omitempty"`
	TestSuffixes   []string       `yaml:"test_suffixes,omitempty" json:"test_suffixes,omitempty"`
	IOOptions      map[string]any `yaml:"io_options,omitempty" json:"io_options,omitempty"`
}

// LoadFile reads a registry from a .yaml/.yml or .cue file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported registry format %q (want .yaml, .yml or .cue)", ext)
	}
}

// ParseYAML parses a YAML registry. Unknown fields are rejected.
func ParseYAML(data []byte) (*Registry, error) {
	var file registryFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return file.build()
}

// ParseCUE evaluates a CUE registry. filename is used for error positions only.
func ParseCUE(data []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("registry is not concrete: %w", err)
	}

	var file registryFile
	if err := value.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return file.build()
}

func (f *registryFile) build() (*Registry, error) {
	models := make([]ModelEntry, len(f.Models))
	for i, m := range f.Models {
		models[i] = ModelEntry{ID: m.ID, Categories: m.Categories}
	}

	scenarios := make([]Scenario, len(f.Scenarios))
	for i, rec := range f.Scenarios {
		status, err := ParseStatus(rec.Status)
		if err != nil {
			return nil, fmt.Errorf("invalid registry: scenarios[%d]: %w", i, err)
		}
		scenarios[i] = Scenario{
			Model:          rec.Model,
			Solver:         rec.Solver,
			Interface:      rec.Interface,
			Status:         status,
			Message:        rec.Message,
			ImportSuffixes: rec.ImportSuffixes,
			TestSuffixes:   rec.TestSuffixes,
			IOOptions:      rec.IOOptions,
		}
	}

	reg, err := NewRegistry(models, scenarios)
	if err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return reg, nil
}
