// FILE: strata/schema.go
package strata

import (
	"fmt"
	"sort"
	"strings"
)

// Type declares the expected kind of a schema key after coercion.
type Type uint8

const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeList
)

// String returns the lowercase type name used in error messages.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	default:
		return "invalid"
	}
}

// kind returns the Value kind a coerced entry of this type carries.
func (t Type) kind() Kind {
	switch t {
	case TypeString:
		return KindString
	case TypeInt:
		return KindInt
	case TypeFloat:
		return KindFloat
	case TypeBool:
		return KindBool
	case TypeList:
		return KindList
	default:
		return KindNull
	}
}

// Mode controls how resolved keys absent from the schema are treated.
type Mode uint8

const (
	// Lenient passes undeclared keys through untouched with a warning.
	Lenient Mode = iota
	// Strict rejects undeclared keys with an UnknownKeyError.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Entry declares one schema key: its type, whether it must be set,
// the default applied when no source sets it, an optional closed set
// of allowed values, and an optional custom check run after coercion.
type Entry struct {
	Type     Type
	Required bool
	Default  any
	Choices  []any
	Validate func(v Value) error
}

// Schema maps dot-paths to their declarations. Declared once per tool,
// independent of any source.
type Schema map[string]Entry

// Keys returns the declared paths in sorted order, so validation output
// is deterministic.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// check verifies the schema itself is well formed: valid dot-paths,
// defaults and choices representable as Values of the declared type.
func (s Schema) check() error {
	for _, path := range s.Keys() {
		entry := s[path]
		for _, seg := range strings.Split(path, ".") {
			if !isValidKeySegment(seg) {
				return fmt.Errorf("%w: segment %q in schema key %q", ErrInvalidPath, seg, path)
			}
		}
		if entry.Default != nil {
			v, err := fromRaw(entry.Default)
			if err != nil {
				return fmt.Errorf("schema key %q: bad default: %w", path, err)
			}
			if _, err := coerce(v, entry.Type); err != nil {
				return fmt.Errorf("schema key %q: default does not match declared type: %w", path, err)
			}
		}
		for i, c := range entry.Choices {
			v, err := fromRaw(c)
			if err != nil {
				return fmt.Errorf("schema key %q: bad choice %d: %w", path, i, err)
			}
			if _, err := coerce(v, entry.Type); err != nil {
				return fmt.Errorf("schema key %q: choice %d does not match declared type: %w", path, i, err)
			}
		}
	}
	return nil
}
