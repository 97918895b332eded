package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"squash/internal/preset"
)

type presetFile struct {
	Presets []preset.Preset `toml:"presets" yaml:"presets"`
}

// Catalog builds the preset catalog: built-ins, then preset files in order,
// then inline [presets.<id>] tables. Later sources replace earlier ones with
// the same id.
func (c *Config) Catalog() (*preset.Catalog, error) {
	var extra []preset.Preset
	for _, path := range c.PresetFiles {
		loaded, err := LoadPresetFile(path)
		if err != nil {
			return nil, err
		}
		extra = append(extra, loaded...)
	}

	keys := make([]string, 0, len(c.Presets))
	for key := range c.Presets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p := c.Presets[key]
		if strings.TrimSpace(p.ID) == "" {
			p.ID = key
		}
		extra = append(extra, p)
	}

	catalog, err := preset.NewCatalog(extra...)
	if err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}
	return catalog, nil
}

// LoadPresetFile reads a preset catalog from a TOML (.toml) or YAML
// (.yaml, .yml) file holding a top-level "presets" list.
func LoadPresetFile(path string) ([]preset.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}

	var file presetFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse preset file %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse preset file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("preset file %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}

	for i, p := range file.Presets {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("preset file %s: entry %d has no id", path, i)
		}
	}
	return file.Presets, nil
}
