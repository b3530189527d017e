// FILE: strata/parser.go
package strata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a supported config encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatEnv  Format = "env"
)

// Parser decodes one format into a tree of Value leaves. Parsers are
// pure: they know nothing about precedence or schema.
type Parser interface {
	Format() Format
	Parse(data []byte, origin string) (map[string]any, error)
}

// parserFor returns the parser for a format. The env parser needs the
// tool prefix to recognize its keys.
func parserFor(format Format, envPrefix string) (Parser, error) {
	switch format {
	case FormatJSON:
		return jsonParser{}, nil
	case FormatYAML:
		return yamlParser{}, nil
	case FormatTOML:
		return tomlParser{}, nil
	case FormatEnv:
		return envFileParser{prefix: envPrefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

type jsonParser struct{}

func (jsonParser) Format() Format { return FormatJSON }

func (jsonParser) Parse(data []byte, origin string) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	raw := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // Preserve number precision
	if err := dec.Decode(&raw); err != nil {
		line, col := jsonErrorPosition(data, err)
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Line: line, Col: col, Err: err}
	}
	// Reject trailing content after the top-level object.
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Origin: origin, Detail: "trailing data after top-level object"}
	}

	tree, err := normalizeTree(raw, "")
	if err != nil {
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Err: err}
	}
	return tree, nil
}

// jsonErrorPosition converts a byte offset from the json package into a
// line/column hint.
func jsonErrorPosition(data []byte, err error) (int, int) {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return 0, 0
	}
	if offset <= 0 || offset > int64(len(data)) {
		return 0, 0
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

type yamlParser struct{}

func (yamlParser) Format() Format { return FormatYAML }

func (yamlParser) Parse(data []byte, origin string) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// yaml.v3 embeds "line N" in its messages; no structured position.
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Err: err}
	}

	tree, err := normalizeTree(raw, "")
	if err != nil {
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Err: err}
	}
	return tree, nil
}

type tomlParser struct{}

func (tomlParser) Format() Format { return FormatTOML }

func (tomlParser) Parse(data []byte, origin string) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	raw := make(map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		line := 0
		var tomlErr toml.ParseError
		if errors.As(err, &tomlErr) {
			line = tomlErr.Position.Line
		}
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Line: line, Err: err}
	}

	tree, err := normalizeTree(raw, "")
	if err != nil {
		return nil, &ParseError{Origin: origin, Detail: err.Error(), Err: err}
	}
	return tree, nil
}

// detectFormat determines the format from a file extension. Files
// without a telling extension (rc files, .conf) return "" and are
// sniffed by content.
func detectFormat(path string) Format {
	if filepath.Base(path) == ".env" {
		return FormatEnv
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml", ".tml":
		return FormatTOML
	case ".env":
		return FormatEnv
	default:
		return ""
	}
}

// sniffFormat attempts detection by parsing, in the same preference
// order used for file discovery: JSON first (strict), then YAML,
// then TOML. Each probe demands a top-level mapping; a bare YAML
// scalar would otherwise claim nearly any text, TOML included.
func sniffFormat(data []byte) Format {
	var jsonTest map[string]any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return FormatJSON
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return FormatYAML
	}

	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return FormatTOML
	}

	return ""
}

// encodeTree serializes a tree of plain Go values in the given format.
// The env format additionally needs the tool prefix, handled by
// encodeEnvTree.
func encodeTree(format Format, tree map[string]any) ([]byte, error) {
	tree = interfaceTree(tree)
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return data, nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, fmt.Errorf("failed to marshal TOML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// encodeEnvTree serializes a tree as KEY=VALUE lines under the tool
// prefix, nesting joined with double underscores. Lists are
// comma-joined; null values produce an empty assignment.
func encodeEnvTree(tree map[string]any, prefix string) []byte {
	flat := flattenTree(interfaceTree(tree))
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	for _, path := range keys {
		name := prefix + strings.ToUpper(strings.ReplaceAll(path, pathDelim, "__"))
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(envValueString(flat[path]))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func envValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = envValueString(e)
		}
		return strings.Join(parts, ",")
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
