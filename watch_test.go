// FILE: strata/watch_test.go
package strata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchDeadline = 5 * time.Second

func TestWatcherReloadsOnChange(t *testing.T) {
	schema := Schema{"a": {Type: TypeInt, Default: 1}}
	e, paths := writerEngine(t, schema)
	cfg := filepath.Join(paths.User, "config.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"a": 2}`), 0644))
	_, err := e.Load()
	require.NoError(t, err)

	w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Store, 4)
	w.OnChange(func(st *Store) { changed <- st })
	require.NoError(t, w.Start())
	assert.Equal(t, WatchWatching, w.State())

	require.NoError(t, os.WriteFile(cfg, []byte(`{"a": 3}`), 0644))

	select {
	case st := <-changed:
		got, err := st.GetInt("a")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got)
	case <-time.After(watchDeadline):
		t.Fatal("no reload within deadline")
	}

	got, err := e.MustSnapshot().GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got, "engine snapshot advanced")
}

func TestWatcherPicksUpNewFile(t *testing.T) {
	schema := Schema{"a": {Type: TypeInt, Default: 1}}
	e, paths := writerEngine(t, schema)

	got, err := e.MustSnapshot().GetInt("a")
	require.NoError(t, err)
	require.Equal(t, int64(1), got, "defaults only before the file exists")

	w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Store, 4)
	w.OnChange(func(st *Store) { changed <- st })
	require.NoError(t, w.Start())

	writeFile(t, paths.User, "config.json", `{"a": 42}`)

	select {
	case st := <-changed:
		v, err := st.GetInt("a")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)
	case <-time.After(watchDeadline):
		t.Fatal("new file not observed")
	}
}

func TestWatcherKeepsLastGoodOnFailure(t *testing.T) {
	schema := Schema{"a": {Type: TypeInt, Default: 1}}
	e, paths := writerEngine(t, schema)
	cfg := filepath.Join(paths.User, "config.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"a": 2}`), 0644))
	_, err := e.Load()
	require.NoError(t, err)

	w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	failures := make(chan error, 4)
	w.OnError(func(err error) { failures <- err })
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(cfg, []byte(`{"a": `), 0644))

	select {
	case err := <-failures:
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	case <-time.After(watchDeadline):
		t.Fatal("no error callback within deadline")
	}

	got, err := e.MustSnapshot().GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got, "last good snapshot stays current")
}

func TestWatcherPinnedProjectFile(t *testing.T) {
	schema := Schema{"a": {Type: TypeString, Default: "x"}}
	base := t.TempDir()
	pinned := writeFile(t, base, "custom.yaml", "a: first\n")
	paths := SearchPaths{
		System:  filepath.Join(base, "s"),
		User:    filepath.Join(base, "u"),
		Project: base,
	}
	e, err := New(Options{Name: "tool", Schema: schema, SearchPaths: paths, ProjectFile: pinned})
	require.NoError(t, err)
	_, err = e.Load()
	require.NoError(t, err)

	w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Store, 4)
	w.OnChange(func(st *Store) { changed <- st })
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(pinned, []byte("a: second\n"), 0644))

	select {
	case st := <-changed:
		v, err := st.GetString("a")
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	case <-time.After(watchDeadline):
		t.Fatal("pinned file change not observed")
	}
}

func TestWatcherLifecycle(t *testing.T) {
	schema := Schema{"a": {Type: TypeInt, Default: 1}}

	t.Run("StartTwiceRejected", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
		require.NoError(t, err)
		require.NoError(t, w.Start())
		defer w.Close()

		assert.Error(t, w.Start())
	})

	t.Run("CloseIdempotent", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		w, err := e.Watch(WatchOptions{Debounce: 25 * time.Millisecond})
		require.NoError(t, err)
		require.NoError(t, w.Start())

		assert.NoError(t, w.Close())
		assert.NoError(t, w.Close())
		assert.Equal(t, WatchIdle, w.State())
	})

	t.Run("CloseBeforeStart", func(t *testing.T) {
		e, _ := writerEngine(t, schema)
		w, err := e.Watch(WatchOptions{})
		require.NoError(t, err)
		assert.NoError(t, w.Close())
	})

	t.Run("NoWatchableDirectories", func(t *testing.T) {
		base := t.TempDir()
		paths := SearchPaths{
			System:  filepath.Join(base, "s"),
			User:    filepath.Join(base, "u"),
			Project: filepath.Join(base, "p"),
		}
		e, err := New(Options{Name: "tool", Schema: schema, SearchPaths: paths})
		require.NoError(t, err)
		_, err = e.Load()
		require.NoError(t, err)

		w, err := e.Watch(WatchOptions{})
		require.NoError(t, err)
		require.Error(t, w.Start())
		assert.Equal(t, WatchIdle, w.State())
	})

	t.Run("DebounceBounds", func(t *testing.T) {
		e, _ := writerEngine(t, schema)

		w, err := e.Watch(WatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, DefaultDebounce, w.debounce)

		w, err = e.Watch(WatchOptions{Debounce: time.Nanosecond})
		require.NoError(t, err)
		assert.Equal(t, MinDebounce, w.debounce)
	})
}
