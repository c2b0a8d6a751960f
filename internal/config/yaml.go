package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// isYAML reports whether path names a YAML config by extension. Anything else
// is read as JSON.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON re-encodes a single-document YAML config as JSON so both formats
// go through the same strict decoder (unknown keys rejected). A second YAML
// document is trailing data, like a second JSON value.
func yamlToJSON(path string, data []byte) ([]byte, error) {
	name := filepath.Base(path)
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("config %s: yaml: %w", name, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("config %s: multiple yaml documents", name)
		}
		return nil, fmt.Errorf("config %s: yaml: %w", name, err)
	}

	j, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, fmt.Errorf("config %s: yaml to json: %w", name, err)
	}
	return j, nil
}

// stringKeys rewrites map[any]any nodes (non-string YAML keys such as
// `1: x`) so the tree can be JSON-encoded.
func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}
