// FILE: strata/convenience.go
package strata

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Quick resolves configuration for a tool in one call: standard
// discovery, the process environment, lenient validation. It suits
// small tools; anything needing flags, strict mode, or custom paths
// should use the Builder or Options directly.
func Quick(name, envPrefix string, schema Schema) (*Engine, *Store, error) {
	return NewBuilder(name).
		WithEnvPrefix(envPrefix).
		WithSchema(schema).
		Load()
}

// MustQuick is Quick that panics on error.
func MustQuick(name, envPrefix string, schema Schema) (*Engine, *Store) {
	e, st, err := Quick(name, envPrefix, schema)
	if err != nil {
		panic(err)
	}
	return e, st
}

// Dump writes every resolved key with its value and winning source,
// one per line in sorted key order. Intended for debug output and
// "config list" style subcommands.
func (s *Store) Dump(w io.Writer) error {
	for _, e := range s.ExplainAll() {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}

// Debug returns a human-readable description of the snapshot,
// including warnings. Handy for troubleshooting precedence surprises.
func (s *Store) Debug() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolved configuration (%d keys, mode %s)\n", len(s.keys), s.mode)
	for _, e := range s.ExplainAll() {
		fmt.Fprintf(&b, "  %s\n", e.String())
	}
	if len(s.warnings) > 0 {
		b.WriteString("warnings:\n")
		for _, w := range s.warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}

// WriteEnvFile renders the snapshot as environment variable
// assignments using the given prefix and writes it to path. The
// output round-trips through the .env project layer.
func (s *Store) WriteEnvFile(path, prefix string) error {
	data := encodeEnvTree(s.tree, prefix)
	if err := atomicWriteFile(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Fprint formats the snapshot in the requested structured format and
// writes it out, e.g. for "config export --format yaml".
func (s *Store) Fprint(w io.Writer, format Format) error {
	if format == "" {
		format = FormatJSON
	}
	data, err := encodeTree(format, s.tree)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// PrintWarnings writes any resolution warnings to stderr, one per
// line, prefixed with the tool name. CLI frontends call this right
// after loading.
func PrintWarnings(name string, st *Store) {
	for _, w := range st.Warnings() {
		fmt.Fprintf(os.Stderr, "%s: warning: %s\n", name, w)
	}
}
