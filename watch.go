// FILE: strata/watch.go
package strata

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchState names the watcher lifecycle phases.
type WatchState int32

const (
	WatchIdle WatchState = iota
	WatchWatching
	WatchDebouncing
	WatchReloading
)

func (s WatchState) String() string {
	switch s {
	case WatchIdle:
		return "idle"
	case WatchWatching:
		return "watching"
	case WatchDebouncing:
		return "debouncing"
	case WatchReloading:
		return "reloading"
	default:
		return fmt.Sprintf("WatchState(%d)", int32(s))
	}
}

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Debounce is the quiet period after the last file event before a
	// reload runs. Zero means DefaultDebounce.
	Debounce time.Duration
}

// Watcher reloads an Engine when any of its discovered config files
// change on disk. Events are debounced, reloads that fail keep the
// last good snapshot current, and results are delivered through the
// OnChange and OnError callbacks.
//
// Usage: create with Engine.Watch, register callbacks, then Start.
// Close is idempotent.
type Watcher struct {
	engine   *Engine
	debounce time.Duration
	paths    map[string]struct{} // files that trigger a reload
	dirs     []string            // parent directories to register

	mu       sync.Mutex
	onChange func(*Store)
	onError  func(error)
	timer    *time.Timer

	fsw       *fsnotify.Watcher
	state     atomic.Int32
	reloading atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Watch builds a Watcher covering every path the engine's discovery
// can choose: all candidate files in the system, user, and project
// directories, or the pinned project file. The watcher is returned
// stopped; register callbacks and call Start.
func (e *Engine) Watch(opts WatchOptions) (*Watcher, error) {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if debounce < MinDebounce {
		debounce = MinDebounce
	}

	w := &Watcher{
		engine:   e,
		debounce: debounce,
		paths:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, loc := range []Location{LocationSystem, LocationUser, LocationProject} {
		if loc == LocationProject && e.opts.ProjectFile != "" {
			abs, err := filepath.Abs(e.opts.ProjectFile)
			if err != nil {
				return nil, err
			}
			w.paths[filepath.Clean(abs)] = struct{}{}
			dirs[filepath.Dir(abs)] = struct{}{}
			continue
		}
		dir, err := e.opts.SearchPaths.dir(loc, e.opts.Name)
		if err != nil {
			return nil, err
		}
		for _, name := range candidateNames(loc, e.opts.Name) {
			w.paths[filepath.Clean(filepath.Join(dir, name))] = struct{}{}
		}
		dirs[dir] = struct{}{}
	}
	for dir := range dirs {
		w.dirs = append(w.dirs, dir)
	}
	return w, nil
}

// Start registers the directory watches and launches the event loop.
// Directories that do not exist yet are skipped; files appearing in
// them later are not observed.
func (w *Watcher) Start() error {
	if !w.state.CompareAndSwap(int32(WatchIdle), int32(WatchWatching)) {
		return fmt.Errorf("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.state.Store(int32(WatchIdle))
		return fmt.Errorf("creating file watcher: %w", err)
	}
	w.fsw = fsw

	registered := 0
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			w.engine.logger.Debug("not watching directory", "dir", dir, "error", err)
			continue
		}
		registered++
	}
	if registered == 0 {
		fsw.Close()
		w.state.Store(int32(WatchIdle))
		return fmt.Errorf("no config directories available to watch")
	}

	go w.loop()
	w.engine.logger.Debug("config watcher started", "dirs", registered, "debounce", w.debounce)
	return nil
}

// OnChange registers the callback invoked with each successfully
// reloaded snapshot. Register before Start.
func (w *Watcher) OnChange(fn func(*Store)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// OnError registers the callback invoked when a reload fails. The
// previous snapshot stays current. Register before Start.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	w.onError = fn
	w.mu.Unlock()
}

// State reports the watcher's current lifecycle phase.
func (w *Watcher) State() WatchState {
	return WatchState(w.state.Load())
}

// Close stops the watcher. It is safe to call multiple times and
// safe to call on a watcher that was never started.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.state.Store(int32(WatchIdle))
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.engine.logger.Debug("config file event", "op", ev.Op.String(), "path", ev.Name)
			w.bump()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(err)
		}
	}
}

// relevant filters directory events down to the candidate files.
// Chmod-only events are ignored; create, write, remove, and rename
// all schedule a reload (an atomic save arrives as create+rename).
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := w.paths[filepath.Clean(ev.Name)]
	return ok
}

// bump (re)arms the debounce timer. Each event during the quiet
// period pushes the reload further out.
func (w *Watcher) bump() {
	w.state.CompareAndSwap(int32(WatchWatching), int32(WatchDebouncing))
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.fire)
		return
	}
	w.timer.Reset(w.debounce)
}

// fire runs one reload after the debounce period settles.
func (w *Watcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}

	if !w.reloading.CompareAndSwap(false, true) {
		// A reload is in flight; push this round out by a full
		// debounce period so its events are not lost.
		w.bump()
		return
	}
	defer w.reloading.Store(false)

	w.state.Store(int32(WatchReloading))
	st, err := w.engine.Reload()
	w.state.Store(int32(WatchWatching))

	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// fail reports a watch or reload problem. The engine keeps serving
// the last good snapshot.
func (w *Watcher) fail(err error) {
	w.engine.logger.Warn("config reload failed, keeping last good snapshot", "error", err)
	w.mu.Lock()
	fn := w.onError
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
