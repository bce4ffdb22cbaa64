package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// parseYAMLTree decodes a YAML or JSON document into a generic tree.
func parseYAMLTree(data []byte) (map[string]any, error) {
	var raw any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return asTree(raw)
}

// parseJSONTree decodes JSON keeping integers distinct from floats.
func parseJSONTree(data []byte) (map[string]any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return asTree(raw)
}

func asTree(raw any) (map[string]any, error) {
	tree, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config root must be a mapping, got %T", raw)
	}
	return tree, nil
}

// normalize converts decoder output into plain maps, slices and scalars
// that CUE can encode.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// flatten joins nested keys with "_" and keeps scalar leaves only.
func flatten(tree map[string]any) map[string]string {
	out := make(map[string]string)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "_" + k
			}
			switch t := v.(type) {
			case map[string]any:
				walk(key, t)
			case []any, nil:
			default:
				out[key] = fmt.Sprint(t)
			}
		}
	}
	walk("", tree)
	return out
}

// lookupPath returns the value at a dot-separated path.
func lookupPath(tree map[string]any, path string) (any, bool) {
	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// specTree renders a Spec as a generic tree for path lookups.
func specTree(spec Spec) (map[string]any, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return parseJSONTree(data)
}
