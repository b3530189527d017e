// FILE: strata/errors.go
package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for engine states.
var (
	// ErrNotLoaded is returned when a snapshot is requested before the
	// first successful resolution.
	ErrNotLoaded = errors.New("configuration not loaded")
	// ErrKeyNotFound is returned by typed accessors for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUnknownFormat is returned when a file's format cannot be determined.
	ErrUnknownFormat = errors.New("unknown config format")
	// ErrInvalidPath is returned for malformed dot-paths.
	ErrInvalidPath = errors.New("invalid key path")
)

// ParseError reports a source that exists but cannot be decoded.
// Line and Col are a best-effort location hint; zero when the
// underlying format library does not expose one.
type ParseError struct {
	Origin string // file path, "env", or ".env file path"
	Detail string
	Line   int
	Col    int
	Err    error
}

func (e *ParseError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf(" (line %d", e.Line)
		if e.Col > 0 {
			loc += fmt.Sprintf(", column %d", e.Col)
		}
		loc += ")"
	}
	return fmt.Sprintf("parse %s%s: %s", e.Origin, loc, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TypeMismatchError reports a value that cannot be coerced to the
// declared or requested type. Also used for choices violations, where
// Expected lists the allowed values.
type TypeMismatchError struct {
	Key      string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("key %q: expected %s, got %s", e.Key, e.Expected, e.Got)
}

// MissingRequiredKeyError reports a required schema key that no source set
// and that has no default.
type MissingRequiredKeyError struct {
	Key string
}

func (e *MissingRequiredKeyError) Error() string {
	return fmt.Sprintf("required key %q is not set", e.Key)
}

// UnknownKeyError reports a resolved key absent from the schema, in
// strict mode.
type UnknownKeyError struct {
	Key    string
	Origin string // origin of the source that set the key
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown key %q (set by %s)", e.Key, e.Origin)
}

// WriteError reports a failed persistence operation.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Errors collects every problem found during validation so a user sees
// all of them in one pass. It satisfies error and unwraps to its
// members for errors.Is / errors.As.
type Errors []error

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no errors"
	case 1:
		return es[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d configuration errors:", len(es))
	for _, e := range es {
		b.WriteString("\n\t")
		b.WriteString(e.Error())
	}
	return b.String()
}

func (es Errors) Unwrap() []error { return es }

// errOrNil converts an empty collection to nil so callers can use the
// usual err != nil check.
func (es Errors) errOrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}
