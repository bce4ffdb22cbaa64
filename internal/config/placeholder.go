package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// maxPlaceholderPasses bounds nested {key} resolution.
const maxPlaceholderPasses = 10

var (
	envPattern         = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	placeholderPattern = regexp.MustCompile(`\{([^{}$]+)\}`)
)

// expandEnv replaces ${VAR} references in every string of the tree.
// Undefined variables are collected and reported together.
func expandEnv(tree map[string]any, lookup func(string) (string, bool)) error {
	missing := map[string]struct{}{}
	mapStrings(tree, func(s string) string {
		return envPattern.ReplaceAllStringFunc(s, func(m string) string {
			name := envPattern.FindStringSubmatch(m)[1]
			if v, ok := lookup(name); ok {
				return v
			}
			missing[name] = struct{}{}
			return m
		})
	})
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for n := range missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Errorf("undefined environment variables: %s", strings.Join(names, ", "))
}

// expandPlaceholders replaces {key} references with values from the
// flattened config plus extra. A key resolves to the exact flattened key,
// or else to the first key (in sorted order) ending in "_key". Unresolved
// placeholders are left in place.
func expandPlaceholders(tree map[string]any, extra map[string]string) int {
	passes := 0
	for passes < maxPlaceholderPasses {
		values := flatten(tree)
		for k, v := range extra {
			values[k] = v
		}
		keys := sortedKeys(values)

		resolve := func(name string) (string, bool) {
			if v, ok := values[name]; ok {
				return v, true
			}
			for _, k := range keys {
				if strings.HasSuffix(k, "_"+name) {
					return values[k], true
				}
			}
			return "", false
		}

		changed := false
		mapStrings(tree, func(s string) string {
			return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
				v, ok := resolve(m[1 : len(m)-1])
				if !ok || v == m {
					return m
				}
				changed = true
				return v
			})
		})
		passes++
		if !changed {
			break
		}
	}
	return passes
}

// mapStrings rewrites every string leaf of the tree in place.
func mapStrings(tree map[string]any, fn func(string) string) {
	var walk func(v any) any
	walk = func(v any) any {
		switch t := v.(type) {
		case string:
			return fn(t)
		case map[string]any:
			for k, e := range t {
				t[k] = walk(e)
			}
			return t
		case []any:
			for i, e := range t {
				t[i] = walk(e)
			}
			return t
		default:
			return v
		}
	}
	walk(tree)
}
