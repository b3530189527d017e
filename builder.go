// FILE: strata/builder.go
package strata

import "log/slog"

// Builder provides a fluent interface for assembling an Engine.
type Builder struct {
	opts   Options
	schema Schema
}

// NewBuilder starts a builder for the named tool.
func NewBuilder(name string) *Builder {
	return &Builder{opts: Options{Name: name}}
}

// WithEnvPrefix sets the environment variable prefix, e.g. "TASKHUB_".
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	return b
}

// WithSchema merges a schema into the builder. Later entries replace
// earlier ones for the same key.
func (b *Builder) WithSchema(s Schema) *Builder {
	if b.schema == nil {
		b.schema = make(Schema, len(s))
	}
	for k, e := range s {
		b.schema[k] = e
	}
	return b
}

// WithKey declares a single schema entry.
func (b *Builder) WithKey(path string, entry Entry) *Builder {
	if b.schema == nil {
		b.schema = make(Schema)
	}
	b.schema[path] = entry
	return b
}

// Strict enables the strict unknown-key policy.
func (b *Builder) Strict() *Builder {
	b.opts.Mode = Strict
	return b
}

// WithDefaults sets the rank-1 defaults source. Keys may be nested,
// dot-separated, or a mix.
func (b *Builder) WithDefaults(defaults map[string]any) *Builder {
	b.opts.Defaults = defaults
	return b
}

// WithFlags sets the rank-6 flag map.
func (b *Builder) WithFlags(flags map[string]any) *Builder {
	b.opts.Flags = flags
	return b
}

// WithArgs sets raw command-line arguments to be parsed with
// ParseArgs and merged beneath any explicit flag map.
func (b *Builder) WithArgs(args []string) *Builder {
	b.opts.Args = args
	return b
}

// WithEnviron overrides the process environment, for tests.
func (b *Builder) WithEnviron(environ []string) *Builder {
	b.opts.Environ = environ
	return b
}

// WithSearchPaths overrides the discovery directories.
func (b *Builder) WithSearchPaths(paths SearchPaths) *Builder {
	b.opts.SearchPaths = paths
	return b
}

// WithProjectFile pins the project layer to an explicit file.
func (b *Builder) WithProjectFile(path string) *Builder {
	b.opts.ProjectFile = path
	return b
}

// WithLogger attaches a logger for resolution diagnostics.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.opts.Logger = logger
	return b
}

// Build validates the assembled options and returns the Engine
// without loading.
func (b *Builder) Build() (*Engine, error) {
	opts := b.opts
	opts.Schema = b.schema
	return New(opts)
}

// Load builds the Engine and runs the first resolution pass.
func (b *Builder) Load() (*Engine, *Store, error) {
	e, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	st, err := e.Load()
	if err != nil {
		return nil, nil, err
	}
	return e, st, nil
}

// MustLoad is Load that panics on error, for program setup paths.
func (b *Builder) MustLoad() (*Engine, *Store) {
	e, st, err := b.Load()
	if err != nil {
		panic(err)
	}
	return e, st
}
