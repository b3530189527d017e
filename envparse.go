// FILE: strata/envparse.go
package strata

import (
	"sort"
	"strings"
)

// nestSeparator splits environment variable names into path segments.
// A single underscore belongs to the key: MYTOOL_ENABLE_DEBUG maps to
// "enable_debug", MYTOOL_API__URL maps to "api.url".
const nestSeparator = "__"

// envKeyToPath converts a prefix-stripped variable name to a dot-path.
// Returns false for names that do not form a valid path (empty
// segments, invalid characters).
func envKeyToPath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	segments := strings.Split(name, nestSeparator)
	for i, seg := range segments {
		segments[i] = strings.ToLower(seg)
		if !isValidKeySegment(segments[i]) {
			return "", false
		}
	}
	return strings.Join(segments, pathDelim), true
}

// NewEnvSource scans "KEY=VALUE" entries (as returned by os.Environ)
// for names under the tool prefix and builds the rank-5 source. Values
// stay strings; schema coercion happens later. Non-matching variables
// are ignored. An empty prefix matches nothing: scanning the whole
// process environment would swallow unrelated variables.
func NewEnvSource(environ []string, prefix string) Source {
	tree := make(map[string]any)
	if prefix == "" {
		return Source{Origin: OriginEnv, Rank: RankEnvVars, Tree: tree}
	}

	found := make(map[string]string)
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		name, value := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		path, ok := envKeyToPath(name[len(prefix):])
		if !ok {
			continue
		}
		found[path] = value
	}

	// Insert parents before children so a nested override like
	// MYTOOL_API__URL wins over a conflicting scalar MYTOOL_API
	// deterministically, regardless of environ order.
	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		setNestedValue(tree, p, String(found[p]))
	}

	return Source{Origin: OriginEnv, Rank: RankEnvVars, Tree: tree}
}

// envFileParser decodes flat KEY=VALUE .env files: file-shaped
// environment, same prefix and nesting convention as NewEnvSource.
type envFileParser struct {
	prefix string
}

func (envFileParser) Format() Format { return FormatEnv }

func (p envFileParser) Parse(data []byte, origin string) (map[string]any, error) {
	found := make(map[string]string)

	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "export ")

		eq := strings.IndexByte(trimmed, '=')
		if eq <= 0 {
			return nil, &ParseError{
				Origin: origin,
				Detail: "line is not KEY=VALUE",
				Line:   i + 1,
			}
		}

		name := strings.TrimSpace(trimmed[:eq])
		value := strings.TrimSpace(trimmed[eq+1:])
		value = stripQuotes(value)

		if !strings.HasPrefix(name, p.prefix) || p.prefix == "" {
			continue
		}
		path, ok := envKeyToPath(name[len(p.prefix):])
		if !ok {
			continue
		}
		// Later lines override earlier ones, the usual dotenv behavior.
		found[path] = value
	}

	tree := make(map[string]any)
	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		setNestedValue(tree, p, String(found[p]))
	}
	return tree, nil
}

// stripQuotes removes one matching pair of surrounding quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
