package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json
// for JSON. If the extension is unrecognized, YAML is attempted first,
// then JSON.
//
// After parsing, defaults are applied and the manifest is validated.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	m, err := parseManifest(data, path)
	if err != nil {
		return nil, err
	}

	m.ApplyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// parseManifest unmarshals by detected format.
func parseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid JSON manifest: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid YAML manifest: %w", err)
		}
	default:
		if yamlErr := yaml.Unmarshal(data, &m); yamlErr != nil {
			if jsonErr := json.Unmarshal(data, &m); jsonErr != nil {
				return nil, fmt.Errorf("manifest is neither valid YAML (%v) nor JSON (%v)", yamlErr, jsonErr)
			}
		}
	}

	return &m, nil
}
