// FILE: strata/writer.go
package strata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteKey persists a single key into the file backing a location and
// re-resolves. Declared keys are coerced and checked against the
// schema before anything touches disk; in strict mode undeclared keys
// are refused. The file is rewritten atomically (temp file plus
// rename) under an advisory lock, so concurrent writers from other
// processes serialize and readers never observe a torn file. When the
// location has no file yet, a JSON one is created at its conventional
// path.
//
// Only structured formats can be edited; a location currently backed
// by a .env file is refused.
func (e *Engine) WriteKey(loc Location, path string, value any) error {
	if err := validatePath(path); err != nil {
		return err
	}
	v, err := fromRaw(value)
	if err != nil {
		return fmt.Errorf("key %q: %w", path, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.targetPath(loc)
	if err != nil {
		return err
	}
	v, err = e.checkWrite(path, v, target)
	if err != nil {
		return err
	}
	if err := e.editFile(target, func(tree map[string]any) error {
		setNestedValue(tree, path, v)
		return nil
	}); err != nil {
		return err
	}
	e.logger.Debug("wrote config key", "key", path, "location", loc.String(), "file", target)

	_, err = e.loadLocked()
	return err
}

// checkWrite applies the schema to a value before it is persisted. A
// value the schema would reject must never reach the file: it would
// survive the failed re-resolution and break every later one.
func (e *Engine) checkWrite(path string, v Value, target string) (Value, error) {
	entry, declared := e.opts.Schema[path]
	if !declared {
		if e.opts.Mode == Strict {
			return Null(), &UnknownKeyError{Key: path, Origin: target}
		}
		return v, nil
	}
	coerced, err := coerce(v, entry.Type)
	if err != nil {
		return Null(), &TypeMismatchError{Key: path, Expected: entry.Type.String(), Got: describeValue(v)}
	}
	if len(entry.Choices) > 0 && !choiceAllowed(coerced, entry) {
		return Null(), &TypeMismatchError{Key: path, Expected: "one of " + choiceList(entry), Got: coerced.String()}
	}
	if entry.Validate != nil {
		if err := entry.Validate(coerced); err != nil {
			return Null(), fmt.Errorf("invalid value for %q: %w", path, err)
		}
	}
	return coerced, nil
}

// UnsetKey removes a key from the file backing a location and
// re-resolves, letting any lower-ranked value show through again.
// A missing file or key is a no-op.
func (e *Engine) UnsetKey(loc Location, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.targetPath(loc)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil
	}

	removed := false
	if err := e.editFile(target, func(tree map[string]any) error {
		removed = deleteNestedValue(tree, path)
		return nil
	}); err != nil {
		return err
	}
	if removed {
		e.logger.Debug("unset config key", "key", path, "location", loc.String(), "file", target)
	}

	_, err = e.loadLocked()
	return err
}

// InitDefaultFile writes a starter file containing the schema's
// default values at a location's conventional path. An empty format
// means JSON. The call refuses to overwrite an existing file.
func (e *Engine) InitDefaultFile(loc Location, format Format) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatYAML, FormatTOML:
	default:
		return "", fmt.Errorf("cannot initialize %s files", format)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	dir, err := e.opts.SearchPaths.dir(loc, e.opts.Name)
	if err != nil {
		return "", err
	}
	name := "config." + string(format)
	if loc == LocationProject {
		name = e.opts.Name + ".config." + string(format)
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil {
		return "", &WriteError{Path: path, Err: os.ErrExist}
	}

	data, err := encodeTree(format, defaultsTree(e.opts.Schema))
	if err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	if err := atomicWriteFile(path, data); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	e.logger.Debug("initialized config file", "location", loc.String(), "file", path)

	if _, err := e.loadLocked(); err != nil {
		return path, err
	}
	return path, nil
}

// targetPath picks the file a write lands in: the explicitly
// configured project file, else the discovered file for the location,
// else the location's conventional JSON path.
func (e *Engine) targetPath(loc Location) (string, error) {
	if loc == LocationProject && e.opts.ProjectFile != "" {
		return e.opts.ProjectFile, nil
	}
	d, err := discoverLocation(loc, e.opts.Name, e.opts.SearchPaths)
	if err != nil {
		return "", err
	}
	if d.path != "" {
		return d.path, nil
	}
	dir, err := e.opts.SearchPaths.dir(loc, e.opts.Name)
	if err != nil {
		return "", err
	}
	if loc == LocationProject {
		return filepath.Join(dir, e.opts.Name+".config.json"), nil
	}
	return filepath.Join(dir, "config.json"), nil
}

// editFile reads, mutates, and atomically rewrites one config file
// under an advisory lock. A missing file starts from an empty tree; a
// file that exists but does not parse cannot be edited.
func (e *Engine) editFile(path string, mutate func(tree map[string]any) error) error {
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("acquiring lock: %w", err)}
	}
	defer fl.Unlock()

	format := detectFormat(path)
	tree := make(map[string]any)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if format == "" {
			format = sniffFormat(data)
		}
		if format == FormatEnv {
			return &WriteError{Path: path, Err: fmt.Errorf("refusing to rewrite a .env file; run init to create a structured config file")}
		}
		p, perr := parserFor(format, e.opts.EnvPrefix)
		if perr != nil {
			return &WriteError{Path: path, Err: perr}
		}
		tree, err = p.Parse(data, path)
		if err != nil {
			return err
		}
	case os.IsNotExist(err):
		if format == "" || format == FormatEnv {
			format = FormatJSON
		}
	default:
		return &WriteError{Path: path, Err: err}
	}

	if err := mutate(tree); err != nil {
		return err
	}

	out, err := encodeTree(format, tree)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := atomicWriteFile(path, out); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// defaultsTree builds a nested tree of the schema's declared
// defaults, coerced to their declared types.
func defaultsTree(schema Schema) map[string]any {
	tree := make(map[string]any)
	for _, key := range schema.Keys() {
		entry := schema[key]
		if entry.Default == nil {
			continue
		}
		dv, err := fromRaw(entry.Default)
		if err != nil {
			continue
		}
		if dv, err = coerce(dv, entry.Type); err != nil {
			continue
		}
		setNestedValue(tree, key, dv)
	}
	return tree
}

// atomicWriteFile writes data to path via a temp file in the same
// directory followed by a rename, creating parent directories as
// needed. Readers see either the old content or the new, never a mix.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // no-op after the rename succeeds

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
