// FILE: strata/engine.go
package strata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// discardHandler mirrors slog.DiscardHandler, which requires Go 1.24;
// this module must also build with earlier toolchains.
type discardHandler struct{}

func (dh discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (dh discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (dh discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return dh }
func (dh discardHandler) WithGroup(string) slog.Handler             { return dh }

// Options configures an Engine. Name is the only mandatory field; it
// drives file discovery (/etc/<name>, <user config dir>/<name>, and
// the project-layer file names).
type Options struct {
	// Name is the tool name, e.g. "taskhub".
	Name string

	// EnvPrefix selects environment variables, e.g. "TASKHUB_". The
	// prefix is matched literally, including any trailing underscore.
	// Empty disables the environment layer.
	EnvPrefix string

	// Schema declares the known keys. A nil schema validates nothing
	// and, in lenient mode, passes every resolved key through.
	Schema Schema

	// Mode selects the unknown-key policy. The zero value is Lenient.
	Mode Mode

	// Defaults is the rank-1 source. Keys may be nested maps,
	// dot-separated paths, or a mix.
	Defaults map[string]any

	// Flags is the rank-6 source as a flat dot-keyed map, typically
	// produced by the host's flag framework.
	Flags map[string]any

	// Args, when set, is parsed with ParseArgs and merged beneath
	// Flags. It suits hosts without a flag framework.
	Args []string

	// Environ overrides os.Environ(), which tests use to inject a
	// fixed environment.
	Environ []string

	// SearchPaths overrides the discovery directories.
	SearchPaths SearchPaths

	// ProjectFile pins the project layer to an explicit file instead
	// of discovery, e.g. from a --config flag. The file must exist.
	ProjectFile string

	// Logger receives debug and warning records during resolution.
	// Nil means no logging.
	Logger *slog.Logger
}

// Engine resolves configuration from layered sources and publishes
// the result as an immutable Store snapshot. Loads and writes are
// serialized; Snapshot is lock-free and safe from any goroutine.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex // serializes Load, Reload, and writes
	current atomic.Pointer[Store]
}

// New validates the options and the schema and returns an Engine. No
// resolution happens until Load.
func New(opts Options) (*Engine, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("options: Name is required")
	}
	if opts.Schema != nil {
		if err := opts.Schema.check(); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Load runs a full resolution pass: gather sources, merge by rank,
// validate against the schema, and publish the resulting snapshot.
// On failure the previously published snapshot, if any, remains
// current.
func (e *Engine) Load() (*Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked()
}

// Reload is Load under a different name, for call sites that react to
// external changes.
func (e *Engine) Reload() (*Store, error) {
	return e.Load()
}

func (e *Engine) loadLocked() (*Store, error) {
	sources, warnings, err := resolveSources(e.opts, e.logger)
	if err != nil {
		return nil, err
	}
	res := Merge(sources)
	st, err := validate(res, e.opts.Schema, e.opts.Mode, warnings, e.logger)
	if err != nil {
		return nil, err
	}
	e.current.Store(st)
	e.logger.Debug("configuration resolved",
		"sources", len(sources), "keys", len(st.keys), "warnings", len(st.warnings))
	return st, nil
}

// Snapshot returns the current snapshot, or ErrNotLoaded before the
// first successful Load.
func (e *Engine) Snapshot() (*Store, error) {
	if st := e.current.Load(); st != nil {
		return st, nil
	}
	return nil, ErrNotLoaded
}

// MustSnapshot returns the current snapshot and panics before the
// first successful Load. Intended for program setup paths where a
// missing Load is a bug.
func (e *Engine) MustSnapshot() *Store {
	st, err := e.Snapshot()
	if err != nil {
		panic(err)
	}
	return st
}

// Name returns the configured tool name.
func (e *Engine) Name() string {
	return e.opts.Name
}
