// FILE: strata/helper.go
package strata

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
)

// pathDelim separates segments in dot-paths.
const pathDelim = "."

// splitPath breaks a dot-path into segments, rejecting empty ones.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, pathDelim)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// validatePath enforces the key-segment charset on externally supplied
// paths (schema keys, write targets, flag names).
func validatePath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if !isValidKeySegment(seg) {
			return fmt.Errorf("%w: segment %q in %q", ErrInvalidPath, seg, path)
		}
	}
	return nil
}

// isValidKeySegment checks if a single path segment is valid: a letter
// or underscore followed by letters, digits, hyphens, or underscores.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	first := rune(s[0])
	if !isAlpha(first) && first != '_' {
		return false
	}
	for _, r := range s[1:] {
		if !isAlpha(r) && !isNumeric(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumeric(c rune) bool {
	return c >= '0' && c <= '9'
}

// setNestedValue sets a value in a nested map using a dot-notation path,
// creating intermediate maps and replacing non-map intermediates.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, pathDelim)

	if len(segments) == 1 {
		nested[segments[0]] = value
		return
	}

	current, exists := nested[segments[0]]
	currentMap, isMap := current.(map[string]any)
	if !exists || !isMap {
		currentMap = make(map[string]any)
		nested[segments[0]] = currentMap
	}

	setNestedValue(currentMap, strings.Join(segments[1:], pathDelim), value)
}

// lookupPath traverses a nested map to the value at path.
func lookupPath(tree map[string]any, path string) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	v := maps.Search(tree, segments)
	if v == nil {
		return nil, false
	}
	return v, true
}

// flattenTree converts a nested tree into a flat dot-path map. Leaves
// keep their stored representation (Value in resolved trees, plain Go
// values in raw trees).
func flattenTree(tree map[string]any) map[string]any {
	flat, _ := maps.Flatten(tree, nil, pathDelim)
	return flat
}

// unflattenTree rebuilds a nested tree from a flat dot-path map.
func unflattenTree(flat map[string]any) map[string]any {
	return maps.Unflatten(flat, pathDelim)
}

// copyTree duplicates the map structure of a tree. Value leaves are
// shared; they are immutable through the public API.
func copyTree(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		if sub, isMap := v.(map[string]any); isMap {
			out[k] = copyTree(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

// deleteNestedValue removes the leaf at a dot-separated path,
// reporting whether anything was removed. Parent tables emptied by the
// removal are pruned as well.
func deleteNestedValue(tree map[string]any, path string) bool {
	segments, err := splitPath(path)
	if err != nil {
		return false
	}
	parents := make([]map[string]any, 0, len(segments)-1)
	current := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			return false
		}
		parents = append(parents, current)
		current = next
	}
	last := segments[len(segments)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)

	// Prune tables the delete emptied so rewritten files carry no
	// stale sections.
	for i := len(parents) - 1; i >= 0 && len(current) == 0; i-- {
		delete(parents[i], segments[i])
		current = parents[i]
	}
	return true
}

// interfaceTree converts a tree with Value leaves into one holding plain
// Go values, for format encoders and struct decoding.
func interfaceTree(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		switch t := v.(type) {
		case map[string]any:
			out[k] = interfaceTree(t)
		case Value:
			out[k] = t.Interface()
		default:
			out[k] = t
		}
	}
	return out
}

// flattenInto walks a map that may mix nested maps and dot-keyed
// paths, collecting every leaf under its full dot-path. The two
// spellings address the same tree.
func flattenInto(flat map[string]any, m map[string]any, prefix string) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + pathDelim + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(flat, sub, path)
			continue
		}
		flat[path] = v
	}
}

// flatConflict finds a path that is used both as a value and as a
// table prefix, e.g. "server" alongside "server.host". Returns ""
// when the flat map is consistent.
func flatConflict(flat map[string]any) string {
	branches := make(map[string]bool)
	for k := range flat {
		segs := strings.Split(k, pathDelim)
		for i := 1; i < len(segs); i++ {
			branches[strings.Join(segs[:i], pathDelim)] = true
		}
	}
	for k := range flat {
		if branches[k] {
			return k
		}
	}
	return ""
}

// normalizeTree converts raw decoder output (json.Number, yaml/toml
// scalars, nested maps) into a tree with Value leaves. Map keys from
// yaml.v2-style decoders (map[any]any) are stringified first.
func normalizeTree(raw map[string]any, prefix string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		full := k
		if prefix != "" {
			full = prefix + pathDelim + k
		}
		switch t := v.(type) {
		case map[string]any:
			sub, err := normalizeTree(t, full)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		case map[any]any:
			converted := make(map[string]any, len(t))
			for ik, iv := range t {
				converted[fmt.Sprintf("%v", ik)] = iv
			}
			sub, err := normalizeTree(converted, full)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		default:
			val, err := fromRaw(v)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", full, err)
			}
			out[k] = val
		}
	}
	return out, nil
}
