// FILE: strata/source.go
package strata

import "fmt"

// Rank is the fixed precedence of a configuration source. Higher ranks
// win on conflict.
type Rank int

const (
	RankDefaults Rank = iota + 1
	RankSystemFile
	RankUserFile
	RankProjectFile
	RankEnvVars
	RankCLIFlags
)

// String returns the rank name used in provenance output.
func (r Rank) String() string {
	switch r {
	case RankDefaults:
		return "defaults"
	case RankSystemFile:
		return "system file"
	case RankUserFile:
		return "user file"
	case RankProjectFile:
		return "project file"
	case RankEnvVars:
		return "env"
	case RankCLIFlags:
		return "flags"
	default:
		return fmt.Sprintf("rank(%d)", int(r))
	}
}

// Origins for the non-file sources.
const (
	OriginDefaults = "defaults"
	OriginEnv      = "env"
	OriginFlags    = "flags"
)

// Source is one origin's contribution: a rank-tagged tree of Value
// leaves. A key never appears twice within a source; re-parsing always
// replaces the whole tree.
type Source struct {
	Origin string
	Rank   Rank
	Tree   map[string]any
}

// Provenance records which source last set a resolved key.
type Provenance struct {
	Origin string
	Rank   Rank
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s (rank %d)", p.Origin, int(p.Rank))
}

// NewDefaultsSource builds the rank-1 source from compiled-in defaults.
// The map may use nested maps, dot-keyed paths, or a mix; both
// spellings address the same tree. A path used both as a value and as
// a table is rejected.
func NewDefaultsSource(defaults map[string]any) (Source, error) {
	flat := make(map[string]any)
	flattenInto(flat, defaults, "")
	if k := flatConflict(flat); k != "" {
		return Source{}, fmt.Errorf("defaults: key %q is both a value and a table", k)
	}
	for path := range flat {
		if err := validatePath(path); err != nil {
			return Source{}, fmt.Errorf("defaults: %w", err)
		}
	}
	tree, err := normalizeTree(unflattenTree(flat), "")
	if err != nil {
		return Source{}, fmt.Errorf("defaults: %w", err)
	}
	return Source{Origin: OriginDefaults, Rank: RankDefaults, Tree: tree}, nil
}

// NewFlagSource wraps an already-tokenized flag map from the host CLI's
// argument parser as the rank-6 source. Values are not decoded further;
// strings stay strings until schema coercion.
func NewFlagSource(flags map[string]any) (Source, error) {
	for path := range flags {
		if err := validatePath(path); err != nil {
			return Source{}, fmt.Errorf("flags: %w", err)
		}
	}
	if k := flatConflict(flags); k != "" {
		return Source{}, fmt.Errorf("flags: key %q is both a value and a table", k)
	}
	tree, err := normalizeTree(unflattenTree(flags), "")
	if err != nil {
		return Source{}, fmt.Errorf("flags: %w", err)
	}
	return Source{Origin: OriginFlags, Rank: RankCLIFlags, Tree: tree}, nil
}
