// FILE: strata/writer_test.go
package strata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writerEngine builds a loaded engine whose discovery is pinned to
// fresh temporary directories, returned alongside the engine.
func writerEngine(t *testing.T, schema Schema) (*Engine, SearchPaths) {
	t.Helper()
	paths := SearchPaths{
		System:  t.TempDir(),
		User:    t.TempDir(),
		Project: t.TempDir(),
	}
	e, err := New(Options{Name: "tool", Schema: schema, SearchPaths: paths})
	require.NoError(t, err)
	_, err = e.Load()
	require.NoError(t, err)
	return e, paths
}

func TestWriteKey(t *testing.T) {
	schema := Schema{
		"server.port": {Type: TypeInt, Default: 8080},
		"server.host": {Type: TypeString, Default: "localhost"},
	}

	t.Run("RoundTripAndReResolve", func(t *testing.T) {
		e, paths := writerEngine(t, schema)

		st := e.MustSnapshot()
		port, err := st.GetInt("server.port")
		require.NoError(t, err)
		assert.Equal(t, int64(8080), port)

		require.NoError(t, e.WriteKey(LocationUser, "server.port", 9090))

		st = e.MustSnapshot()
		port, err = st.GetInt("server.port")
		require.NoError(t, err)
		assert.Equal(t, int64(9090), port)

		wantFile := filepath.Join(paths.User, "config.json")
		exp, ok := st.Explain("server.port")
		require.True(t, ok)
		assert.Equal(t, wantFile, exp.Origin)

		// The engine must read back exactly what it wrote.
		src, err := loadFileSource(wantFile, LocationUser, "")
		require.NoError(t, err)
		v, ok := lookupPath(src.Tree, "server.port")
		require.True(t, ok)
		got, _ := v.(Value).AsInt()
		assert.Equal(t, int64(9090), got)
	})

	t.Run("PreservesSiblingsAndFormat", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		writeFile(t, paths.User, "config.yaml", "server:\n  host: example.com\n")
		_, err := e.Load()
		require.NoError(t, err)

		require.NoError(t, e.WriteKey(LocationUser, "server.port", 9090))

		data, err := os.ReadFile(filepath.Join(paths.User, "config.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "example.com", "sibling key survives the rewrite")
		assert.Contains(t, string(data), "9090")

		st := e.MustSnapshot()
		host, err := st.GetString("server.host")
		require.NoError(t, err)
		assert.Equal(t, "example.com", host)
	})

	t.Run("RefusesEnvFile", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		writeFile(t, paths.Project, ".env", "TOOL_A=1\n")

		err := e.WriteKey(LocationProject, "server.port", 1)
		var werr *WriteError
		require.ErrorAs(t, err, &werr)
		assert.Contains(t, werr.Error(), "refusing to rewrite a .env file")
	})

	t.Run("InvalidPathRejected", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		err := e.WriteKey(LocationUser, "bad key", 1)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("UnrepresentableValueRejected", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		err := e.WriteKey(LocationUser, "server.host", struct{}{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.host")
	})

	t.Run("SchemaCheckedBeforePersisting", func(t *testing.T) {
		e, paths := writerEngine(t, schema)

		err := e.WriteKey(LocationUser, "server.port", "not-a-number")
		var terr *TypeMismatchError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "server.port", terr.Key)

		entries, err := os.ReadDir(paths.User)
		require.NoError(t, err)
		assert.Empty(t, entries, "rejected value never reaches disk")
	})

	t.Run("CoercesBeforePersisting", func(t *testing.T) {
		e, paths := writerEngine(t, schema)

		require.NoError(t, e.WriteKey(LocationUser, "server.port", "9090"))

		src, err := loadFileSource(filepath.Join(paths.User, "config.json"), LocationUser, "")
		require.NoError(t, err)
		v, ok := lookupPath(src.Tree, "server.port")
		require.True(t, ok)
		got, ok := v.(Value).AsInt()
		assert.True(t, ok, "string input lands as a native int")
		assert.Equal(t, int64(9090), got)
	})

	t.Run("StrictRejectsUndeclaredKey", func(t *testing.T) {
		paths := SearchPaths{
			System:  t.TempDir(),
			User:    t.TempDir(),
			Project: t.TempDir(),
		}
		e, err := New(Options{Name: "tool", Schema: schema, Mode: Strict, SearchPaths: paths})
		require.NoError(t, err)
		_, err = e.Load()
		require.NoError(t, err)

		err = e.WriteKey(LocationUser, "mystery", 1)
		var uerr *UnknownKeyError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "mystery", uerr.Key)

		entries, err := os.ReadDir(paths.User)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("CreatesParentDirectories", func(t *testing.T) {
		base := t.TempDir()
		paths := SearchPaths{
			System:  filepath.Join(base, "s"),
			User:    filepath.Join(base, "deeply", "nested", "user"),
			Project: filepath.Join(base, "p"),
		}
		e, err := New(Options{Name: "tool", Schema: schema, SearchPaths: paths})
		require.NoError(t, err)
		_, err = e.Load()
		require.NoError(t, err)

		require.NoError(t, e.WriteKey(LocationUser, "server.port", 9090))
		_, err = os.Stat(filepath.Join(paths.User, "config.json"))
		assert.NoError(t, err)
	})
}

func TestUnsetKey(t *testing.T) {
	schema := Schema{"a": {Type: TypeString, Default: "default"}}

	t.Run("RestoresLowerLayer", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		writeFile(t, paths.System, "config.json", `{"a": "system"}`)
		writeFile(t, paths.User, "config.json", `{"a": "user"}`)
		_, err := e.Load()
		require.NoError(t, err)

		v, err := e.MustSnapshot().GetString("a")
		require.NoError(t, err)
		require.Equal(t, "user", v)

		require.NoError(t, e.UnsetKey(LocationUser, "a"))

		st := e.MustSnapshot()
		v, err = st.GetString("a")
		require.NoError(t, err)
		assert.Equal(t, "system", v)

		exp, ok := st.Explain("a")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(paths.System, "config.json"), exp.Origin)
	})

	t.Run("MissingFileIsNoOp", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		require.NoError(t, e.UnsetKey(LocationUser, "a"))

		entries, err := os.ReadDir(paths.User)
		require.NoError(t, err)
		assert.Empty(t, entries, "no file conjured into existence")
	})

	t.Run("MissingKeyLeavesFileIntact", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		writeFile(t, paths.User, "config.json", `{"other": "kept"}`)
		_, err := e.Load()
		require.NoError(t, err)

		require.NoError(t, e.UnsetKey(LocationUser, "a"))

		src, err := loadFileSource(filepath.Join(paths.User, "config.json"), LocationUser, "")
		require.NoError(t, err)
		v, ok := lookupPath(src.Tree, "other")
		require.True(t, ok)
		assert.Equal(t, "kept", v.(Value).String())
	})

	t.Run("PrunesEmptyParentTables", func(t *testing.T) {
		e, paths := writerEngine(t, Schema{"server.port": {Type: TypeInt, Default: 1}})
		writeFile(t, paths.User, "config.json", `{"server": {"port": 2}}`)
		_, err := e.Load()
		require.NoError(t, err)

		require.NoError(t, e.UnsetKey(LocationUser, "server.port"))

		data, err := os.ReadFile(filepath.Join(paths.User, "config.json"))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "server", "emptied table removed from the file")
	})
}

func TestInitDefaultFile(t *testing.T) {
	schema := Schema{
		"server.port": {Type: TypeInt, Default: 8080},
		"server.host": {Type: TypeString, Default: "localhost"},
		"nodefault":   {Type: TypeString},
	}

	t.Run("WritesDeclaredDefaults", func(t *testing.T) {
		e, paths := writerEngine(t, schema)

		path, err := e.InitDefaultFile(LocationUser, FormatTOML)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(paths.User, "config.toml"), path)

		src, err := loadFileSource(path, LocationUser, "")
		require.NoError(t, err)
		v, ok := lookupPath(src.Tree, "server.port")
		require.True(t, ok)
		got, _ := v.(Value).AsInt()
		assert.Equal(t, int64(8080), got)

		_, ok = lookupPath(src.Tree, "nodefault")
		assert.False(t, ok, "keys without defaults are omitted")
	})

	t.Run("EmptyFormatMeansJSON", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		path, err := e.InitDefaultFile(LocationSystem, "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(paths.System, "config.json"), path)
	})

	t.Run("ProjectFileCarriesToolName", func(t *testing.T) {
		e, paths := writerEngine(t, schema)
		path, err := e.InitDefaultFile(LocationProject, FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(paths.Project, "tool.config.yaml"), path)
	})

	t.Run("RefusesExistingFile", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		_, err := e.InitDefaultFile(LocationUser, FormatJSON)
		require.NoError(t, err)

		_, err = e.InitDefaultFile(LocationUser, FormatJSON)
		var werr *WriteError
		require.ErrorAs(t, err, &werr)
		assert.ErrorIs(t, err, os.ErrExist)
	})

	t.Run("RejectsEnvFormat", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		_, err := e.InitDefaultFile(LocationUser, FormatEnv)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "cannot initialize"))
	})
}
