// FILE: strata/doc.go

// Package strata resolves layered configuration for command-line
// tools: defaults, system, user, and project files, environment
// variables, and CLI flags merged into one immutable snapshot with
// per-key provenance.
//
// Features:
//   - Six-layer precedence with deterministic deep-merge semantics
//   - JSON, YAML, TOML, rc (content-sniffed), and .env file formats
//   - Fixed discovery across /etc/<tool>, the user config dir, and
//     the project directory, with format-preference tiebreaking
//   - Schema validation: types, coercion, required keys, defaults,
//     choices, and custom checks, with every problem reported at once
//   - Per-key provenance ("which layer set this and from which file")
//   - Atomic snapshot publication; readers never block or see a
//     partial update
//   - Writing keys back to a chosen layer with atomic file rewrites
//   - Debounced file watching with last-good fallback on bad reloads
//   - Struct scanning via mapstructure with duration, time, list,
//     and network-type hooks
//
// Quick Start:
//
//	schema := strata.Schema{
//	    "server.host":  {Type: strata.TypeString, Default: "localhost"},
//	    "server.port":  {Type: strata.TypeInt, Default: 8080},
//	    "log.level":    {Type: strata.TypeString, Choices: []any{"debug", "info", "warn", "error"}},
//	    "api.key":      {Type: strata.TypeString, Required: true},
//	}
//
//	engine, cfg, err := strata.Quick("mytool", "MYTOOL_", schema)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	host, _ := cfg.GetString("server.host")
//	port, _ := cfg.GetInt("server.port")
//	_ = engine // keep for Reload, WriteKey, Watch
//
// Precedence (highest to lowest):
//  1. CLI flags (--server.port=9090)
//  2. Environment variables (MYTOOL_SERVER__PORT=9090, "__" nests)
//  3. Project config file (.mytoolrc, mytool.config.<ext>, .env)
//  4. User config file (<user config dir>/mytool/config.<ext>)
//  5. System config file (/etc/mytool/config.<ext>)
//  6. Programmed defaults
//
// Maps merge key-by-key across layers so a project file overriding
// one key under "server" keeps the user file's other "server" keys.
// Scalars and lists replace wholesale.
//
// Concurrency:
// A resolution pass builds a fresh Store and publishes it with an
// atomic pointer swap. Store is immutable; goroutines holding one
// read a consistent view for as long as they keep it.
package strata
