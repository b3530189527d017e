// FILE: strata/merge.go
package strata

import (
	"sort"
	"strings"
)

// Resolved is the deep-merged tree before validation: every leaf
// carries the value and the provenance of the source that set it.
type Resolved struct {
	tree map[string]any
	prov map[string]Provenance
}

// Merge deep-merges sources into one Resolved tree. Sources are sorted
// by ascending rank first, so the caller's ordering never affects
// precedence; among equal ranks, later entries win. Merge rules per
// key path:
//   - absent in the accumulator: insert value and provenance
//   - nested map over nested map: recurse, preserving siblings
//   - scalar or list on either side: the incoming higher-rank value
//     replaces the accumulated one wholesale (lists never concatenate)
func Merge(sources []Source) *Resolved {
	sorted := make([]Source, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})

	r := &Resolved{
		tree: make(map[string]any),
		prov: make(map[string]Provenance),
	}

	for _, src := range sorted {
		p := Provenance{Origin: src.Origin, Rank: src.Rank}
		mergeTree(r.tree, src.Tree, "", p, r.prov)
	}
	return r
}

// mergeTree folds one source's tree into the accumulator, updating
// provenance on every overwrite.
func mergeTree(dst, src map[string]any, prefix string, p Provenance, prov map[string]Provenance) {
	for key, incoming := range src {
		path := key
		if prefix != "" {
			path = prefix + pathDelim + key
		}

		incMap, incIsMap := incoming.(map[string]any)
		existing, exists := dst[key]
		exMap, exIsMap := existing.(map[string]any)

		switch {
		case incIsMap && exists && exIsMap:
			mergeTree(exMap, incMap, path, p, prov)

		case incIsMap:
			// A branch replaces a scalar (or fills an absent key):
			// install a copy and stamp every leaf under it.
			if exists {
				delete(prov, path)
			}
			branch := copyTree(incMap)
			dst[key] = branch
			stampLeaves(branch, path, p, prov)

		default:
			// A leaf replaces whatever was there, including a whole
			// branch set by a lower rank.
			if exists && exIsMap {
				deleteProvUnder(prov, path)
			}
			dst[key] = incoming
			prov[path] = p
		}
	}
}

// stampLeaves records provenance for every leaf in a freshly installed
// branch.
func stampLeaves(branch map[string]any, prefix string, p Provenance, prov map[string]Provenance) {
	for key, v := range branch {
		path := prefix + pathDelim + key
		if sub, isMap := v.(map[string]any); isMap {
			stampLeaves(sub, path, p, prov)
		} else {
			prov[path] = p
		}
	}
}

// deleteProvUnder drops provenance entries for all leaves below a path
// whose branch was just replaced by a leaf.
func deleteProvUnder(prov map[string]Provenance, path string) {
	prefix := path + pathDelim
	for k := range prov {
		if strings.HasPrefix(k, prefix) {
			delete(prov, k)
		}
	}
}

// Lookup returns the leaf value and provenance at path. It reports
// false for absent paths and for paths that resolve to a nested table.
func (r *Resolved) Lookup(path string) (Value, Provenance, bool) {
	raw, ok := lookupPath(r.tree, path)
	if !ok {
		return Null(), Provenance{}, false
	}
	v, isValue := raw.(Value)
	if !isValue {
		return Null(), Provenance{}, false
	}
	return v, r.prov[path], true
}

// Leaves returns every resolved leaf path in sorted order.
func (r *Resolved) Leaves() []string {
	paths := make([]string, 0, len(r.prov))
	for p := range r.prov {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// lookupRaw exposes branch-or-leaf lookup to the validator, which must
// distinguish "absent" from "present but a table".
func (r *Resolved) lookupRaw(path string) (any, bool) {
	return lookupPath(r.tree, path)
}
