// FILE: strata/store.go
package strata

import (
	"fmt"
	"sort"
	"time"
)

// Store is an immutable snapshot of a resolution run: the merged,
// validated tree plus per-key provenance and any warnings produced
// along the way. Reads never block and never observe a partial
// update; a reload builds a new Store and swaps it in atomically.
type Store struct {
	tree     map[string]any
	prov     map[string]Provenance
	schema   Schema
	mode     Mode
	warnings []string
	keys     []string
}

func newStore(tree map[string]any, prov map[string]Provenance, schema Schema, mode Mode, warnings []string) *Store {
	keys := make([]string, 0, len(prov))
	for k := range prov {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Store{
		tree:     tree,
		prov:     prov,
		schema:   schema,
		mode:     mode,
		warnings: warnings,
		keys:     keys,
	}
}

// Get retrieves the value at a dot-separated path. The second return
// is false when the path is absent or names an intermediate table
// rather than a leaf.
func (s *Store) Get(path string) (Value, bool) {
	raw, ok := lookupPath(s.tree, path)
	if !ok {
		return Null(), false
	}
	v, ok := raw.(Value)
	return v, ok
}

// Has reports whether path names a leaf value.
func (s *Store) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// GetString retrieves a string value, converting scalars when needed.
func (s *Store) GetString(path string) (string, error) {
	v, err := s.typed(path, TypeString)
	if err != nil {
		return "", err
	}
	str, _ := v.AsString()
	return str, nil
}

// GetInt retrieves an integer value. Strings are parsed and integral
// floats are accepted; anything else fails with a mismatch error.
func (s *Store) GetInt(path string) (int64, error) {
	v, err := s.typed(path, TypeInt)
	if err != nil {
		return 0, err
	}
	i, _ := v.AsInt()
	return i, nil
}

// GetFloat retrieves a float value, accepting ints and numeric strings.
func (s *Store) GetFloat(path string) (float64, error) {
	v, err := s.typed(path, TypeFloat)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsFloat()
	return f, nil
}

// GetBool retrieves a bool value, accepting the usual string spellings
// (true/false, yes/no, on/off, 1/0).
func (s *Store) GetBool(path string) (bool, error) {
	v, err := s.typed(path, TypeBool)
	if err != nil {
		return false, err
	}
	b, _ := v.AsBool()
	return b, nil
}

// GetStringSlice retrieves a list as strings. A bare string is split
// on commas, matching how list-typed keys accept env values.
func (s *Store) GetStringSlice(path string) ([]string, error) {
	v, err := s.typed(path, TypeList)
	if err != nil {
		return nil, err
	}
	elems, _ := v.AsList()
	out := make([]string, len(elems))
	for i, e := range elems {
		ev, cerr := coerce(e, TypeString)
		if cerr != nil {
			return nil, &TypeMismatchError{
				Key:      path,
				Expected: "list of strings",
				Got:      fmt.Sprintf("element %d is %s", i, describeValue(e)),
			}
		}
		out[i], _ = ev.AsString()
	}
	return out, nil
}

// GetDuration retrieves a duration expressed as a string, e.g. "30s",
// "1.5h", or "2d12h" (a "d" unit meaning 24 hours is accepted on top
// of the standard time.ParseDuration units).
func (s *Store) GetDuration(path string) (time.Duration, error) {
	v, ok := s.Get(path)
	if !ok {
		return 0, fmt.Errorf("key %q: %w", path, ErrKeyNotFound)
	}
	str, ok := v.AsString()
	if !ok {
		return 0, &TypeMismatchError{Key: path, Expected: "duration string", Got: describeValue(v)}
	}
	d, err := parseDuration(str)
	if err != nil {
		return 0, &TypeMismatchError{Key: path, Expected: "duration string", Got: describeValue(v)}
	}
	return d, nil
}

// typed fetches a leaf and coerces it, mapping failures onto the
// shared error types so callers see the same taxonomy everywhere.
func (s *Store) typed(path string, t Type) (Value, error) {
	v, ok := s.Get(path)
	if !ok {
		return Null(), fmt.Errorf("key %q: %w", path, ErrKeyNotFound)
	}
	coerced, err := coerce(v, t)
	if err != nil {
		return Null(), &TypeMismatchError{Key: path, Expected: t.String(), Got: describeValue(v)}
	}
	return coerced, nil
}

// Explanation describes where a resolved value came from.
type Explanation struct {
	Key    string
	Value  Value
	Origin string
	Rank   Rank
}

func (e Explanation) String() string {
	return fmt.Sprintf("%s = %s (set by %s, rank %d)", e.Key, e.Value, e.Origin, int(e.Rank))
}

// Explain reports the value and winning source for a key. The second
// return is false when the key is not a resolved leaf.
func (s *Store) Explain(path string) (Explanation, bool) {
	v, ok := s.Get(path)
	if !ok {
		return Explanation{}, false
	}
	p, ok := s.prov[path]
	if !ok {
		return Explanation{}, false
	}
	return Explanation{Key: path, Value: v, Origin: p.Origin, Rank: p.Rank}, true
}

// ExplainAll returns explanations for every resolved leaf in sorted
// key order.
func (s *Store) ExplainAll() []Explanation {
	out := make([]Explanation, 0, len(s.keys))
	for _, k := range s.keys {
		if e, ok := s.Explain(k); ok {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns all resolved leaf paths in sorted order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Warnings returns the non-fatal findings from the resolution run
// that produced this snapshot: discovery ambiguities and, in lenient
// mode, unknown keys that were passed through.
func (s *Store) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Schema returns the schema this snapshot was validated against. The
// returned map is a copy; mutating it does not affect the Store.
func (s *Store) Schema() Schema {
	out := make(Schema, len(s.schema))
	for k, e := range s.schema {
		out[k] = e
	}
	return out
}

// Mode returns the unknown-key policy the snapshot was resolved under.
func (s *Store) Mode() Mode {
	return s.mode
}

// Export returns the resolved tree as plain Go values (string, int64,
// float64, bool, []any, nested map[string]any). The returned tree is
// a copy; mutating it does not affect the Store.
func (s *Store) Export() map[string]any {
	return interfaceTree(s.tree)
}
