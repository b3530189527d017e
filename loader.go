// FILE: strata/loader.go
package strata

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// resolveSources gathers every configured layer into Source values
// ready for merging: defaults, the three discovered files, matching
// environment variables, and CLI flags. File discovery ambiguities
// are returned as warnings; a file that exists but cannot be read or
// parsed aborts resolution.
func resolveSources(opts Options, logger *slog.Logger) ([]Source, []string, error) {
	sources := make([]Source, 0, 6)
	var warnings []string

	if opts.Defaults != nil {
		src, err := NewDefaultsSource(opts.Defaults)
		if err != nil {
			return nil, nil, fmt.Errorf("defaults: %w", err)
		}
		sources = append(sources, src)
	}

	for _, loc := range []Location{LocationSystem, LocationUser, LocationProject} {
		path := ""
		if loc == LocationProject && opts.ProjectFile != "" {
			// An explicitly configured file bypasses discovery and,
			// unlike discovered candidates, must exist.
			if _, err := os.Stat(opts.ProjectFile); err != nil {
				return nil, nil, fmt.Errorf("configured file %q: %w", opts.ProjectFile, err)
			}
			path = opts.ProjectFile
		} else {
			d, err := discoverLocation(loc, opts.Name, opts.SearchPaths)
			if err != nil {
				return nil, nil, err
			}
			if len(d.skipped) > 0 {
				w := fmt.Sprintf("multiple %s config candidates: using %s, ignoring %s",
					loc, d.path, strings.Join(d.skipped, ", "))
				warnings = append(warnings, w)
				logger.Warn("ambiguous config discovery",
					"location", loc.String(), "using", d.path, "ignoring", d.skipped)
			}
			path = d.path
		}
		if path == "" {
			logger.Debug("no config file found", "location", loc.String())
			continue
		}

		src, err := loadFileSource(path, loc, opts.EnvPrefix)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("loaded config file", "location", loc.String(), "path", path, "keys", len(src.Tree))
		sources = append(sources, src)
	}

	if opts.EnvPrefix != "" {
		environ := opts.Environ
		if environ == nil {
			environ = os.Environ()
		}
		src := NewEnvSource(environ, opts.EnvPrefix)
		if len(src.Tree) > 0 {
			logger.Debug("loaded environment variables", "prefix", opts.EnvPrefix)
		}
		sources = append(sources, src)
	}

	flagMap, err := collectFlags(opts)
	if err != nil {
		return nil, nil, err
	}
	if flagMap != nil {
		src, err := NewFlagSource(flagMap)
		if err != nil {
			return nil, nil, fmt.Errorf("flags: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, warnings, nil
}

// loadFileSource reads and parses one discovered file into a Source.
// The format follows the file name where it is conclusive and content
// sniffing otherwise (rc files carry no extension).
func loadFileSource(path string, loc Location, envPrefix string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", path, err)
	}

	format := detectFormat(path)
	if format == "" {
		format = sniffFormat(data)
	}
	p, err := parserFor(format, envPrefix)
	if err != nil {
		return Source{}, fmt.Errorf("%s: %w", path, err)
	}

	tree, err := p.Parse(data, path)
	if err != nil {
		return Source{}, err
	}
	return Source{Origin: path, Rank: loc.rank(), Tree: tree}, nil
}

// collectFlags merges the raw argument list (if any) with the
// explicit flag map, the map winning on conflicts. Returns nil when
// neither is configured.
func collectFlags(opts Options) (map[string]any, error) {
	if opts.Args == nil && opts.Flags == nil {
		return nil, nil
	}
	combined := make(map[string]any)
	if opts.Args != nil {
		parsed, err := ParseArgs(opts.Args)
		if err != nil {
			return nil, err
		}
		for k, v := range parsed {
			combined[k] = v
		}
	}
	for k, v := range opts.Flags {
		combined[k] = v
	}
	return combined, nil
}

// ParseArgs converts command-line arguments into a flat flag map
// suitable for Options.Flags. It understands "--key=value",
// "--key value", and bare boolean flags ("--verbose"); non-flag
// arguments are skipped. Values stay strings and are coerced against
// the schema during validation.
func ParseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			i++
			continue
		}

		content := strings.TrimPrefix(arg, "--")
		if content == "" {
			// Bare "--" separator.
			i++
			continue
		}

		var key, value string
		if j := strings.IndexByte(content, '='); j >= 0 {
			key = content[:j]
			value = content[j+1:]
			i++
		} else {
			key = content
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				value = "true"
				i++
			} else {
				value = args[i+1]
				i += 2
			}
		}

		if err := validatePath(key); err != nil {
			return nil, fmt.Errorf("flag --%s: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}
