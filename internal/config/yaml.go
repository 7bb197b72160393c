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

// detectFormat picks "json" or "yaml" from the file extension, falling back
// to sniffing the first non-blank byte for unknown extensions.
func detectFormat(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}
	if t := bytes.TrimSpace(data); len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		return "json"
	}
	return "yaml"
}

// coerceToJSONBytes turns a config file into JSON so both formats go through
// the same strict decoder. It returns the JSON bytes and the detected format.
// YAML input must hold exactly one document.
func coerceToJSONBytes(name string, data []byte) ([]byte, string, error) {
	format := detectFormat(name, data)
	if format == "json" {
		return data, format, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, format, fmt.Errorf("%s: empty config", name)
		}
		return nil, format, fmt.Errorf("%s: yaml: %w", name, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, format, fmt.Errorf("%s: yaml: expected a single document", name)
	}

	doc, err := stringKeys("", doc)
	if err != nil {
		return nil, format, fmt.Errorf("%s: %w", name, err)
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return nil, format, fmt.Errorf("%s: re-encode yaml: %w", name, err)
	}
	return j, format, nil
}

// stringKeys rewrites YAML maps so they can be marshaled as JSON objects.
// Non-string keys (e.g. "1: x") are rejected since no config field uses them.
func stringKeys(at string, in any) (any, error) {
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			nv, err := stringKeys(joinPath(at, k), v)
			if err != nil {
				return nil, err
			}
			x[k] = nv
		}
		return x, nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%s: non-string key %v", orRoot(at), k)
			}
			nv, err := stringKeys(joinPath(at, ks), v)
			if err != nil {
				return nil, err
			}
			m[ks] = nv
		}
		return m, nil
	case []any:
		for i := range x {
			nv, err := stringKeys(fmt.Sprintf("%s[%d]", at, i), x[i])
			if err != nil {
				return nil, err
			}
			x[i] = nv
		}
		return x, nil
	default:
		return in, nil
	}
}

func joinPath(at, k string) string {
	if at == "" {
		return k
	}
	return at + "." + k
}

func orRoot(at string) string {
	if at == "" {
		return "<root>"
	}
	return at
}
