// FILE: strata/helper_test.go
package strata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidation(t *testing.T) {
	valid := []string{"key", "server.host", "log_level", "a.b-c.d_e", "_x.y2"}
	for _, p := range valid {
		assert.NoError(t, validatePath(p), "path %q", p)
	}

	invalid := []string{"", ".", "a..b", ".a", "a.", "1key", "a.2b", "key!", "a b", "-lead"}
	for _, p := range invalid {
		err := validatePath(p)
		require.Error(t, err, "path %q", p)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", p)
	}
}

func TestNestedValueOperations(t *testing.T) {
	t.Run("SetCreatesIntermediates", func(t *testing.T) {
		tree := make(map[string]any)
		setNestedValue(tree, "a.b.c", Int(1))

		v, ok := lookupPath(tree, "a.b.c")
		require.True(t, ok)
		assert.True(t, Int(1).Equal(v.(Value)))
	})

	t.Run("SetReplacesScalarIntermediate", func(t *testing.T) {
		tree := map[string]any{"a": String("scalar")}
		setNestedValue(tree, "a.b", Int(2))

		_, ok := lookupPath(tree, "a.b")
		assert.True(t, ok)
	})

	t.Run("LookupBranch", func(t *testing.T) {
		tree := make(map[string]any)
		setNestedValue(tree, "a.b", Int(1))

		raw, ok := lookupPath(tree, "a")
		require.True(t, ok)
		_, isMap := raw.(map[string]any)
		assert.True(t, isMap)
	})

	t.Run("LookupAbsent", func(t *testing.T) {
		tree := map[string]any{"a": Int(1)}
		_, ok := lookupPath(tree, "missing")
		assert.False(t, ok)
		_, ok = lookupPath(tree, "a.beneath-scalar")
		assert.False(t, ok)
	})

	t.Run("DeleteLeaf", func(t *testing.T) {
		tree := make(map[string]any)
		setNestedValue(tree, "a.b", Int(1))
		setNestedValue(tree, "a.c", Int(2))

		assert.True(t, deleteNestedValue(tree, "a.b"))
		_, ok := lookupPath(tree, "a.b")
		assert.False(t, ok)
		_, ok = lookupPath(tree, "a.c")
		assert.True(t, ok, "sibling must survive")

		assert.False(t, deleteNestedValue(tree, "a.b"), "second delete is a no-op")
		assert.False(t, deleteNestedValue(tree, "x.y"))

		assert.True(t, deleteNestedValue(tree, "a.c"))
		_, ok = tree["a"]
		assert.False(t, ok, "emptied parent table pruned")
	})
}

func TestFlattenRoundTrip(t *testing.T) {
	tree := make(map[string]any)
	setNestedValue(tree, "server.host", String("localhost"))
	setNestedValue(tree, "server.port", Int(8080))
	setNestedValue(tree, "debug", Bool(false))

	flat := flattenTree(tree)
	assert.Len(t, flat, 3)
	assert.Contains(t, flat, "server.host")

	back := unflattenTree(flat)
	v, ok := lookupPath(back, "server.port")
	require.True(t, ok)
	assert.True(t, Int(8080).Equal(v.(Value)))
}

func TestFlattenInto(t *testing.T) {
	t.Run("MixedSpellings", func(t *testing.T) {
		flat := make(map[string]any)
		flattenInto(flat, map[string]any{
			"server.host": "a",
			"server":      map[string]any{"port": 8080},
			"debug":       true,
		}, "")

		assert.Equal(t, map[string]any{
			"server.host": "a",
			"server.port": 8080,
			"debug":       true,
		}, flat)
	})

	t.Run("ConflictDetection", func(t *testing.T) {
		assert.Equal(t, "", flatConflict(map[string]any{"a.b": 1, "a.c": 2}))
		assert.Equal(t, "a", flatConflict(map[string]any{"a": 1, "a.b": 2}))
	})
}

func TestCopyTreeSharesLeavesCopiesMaps(t *testing.T) {
	orig := make(map[string]any)
	setNestedValue(orig, "a.b", Int(1))

	cp := copyTree(orig)
	setNestedValue(cp, "a.c", Int(2))

	_, ok := lookupPath(orig, "a.c")
	assert.False(t, ok, "mutating the copy must not touch the original")
}
