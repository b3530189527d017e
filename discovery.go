// FILE: strata/discovery.go
package strata

import (
	"fmt"
	"os"
	"path/filepath"
)

// Location identifies one of the three file layers consulted during
// resolution, in ascending precedence order.
type Location uint8

const (
	LocationSystem Location = iota
	LocationUser
	LocationProject
)

func (l Location) String() string {
	switch l {
	case LocationSystem:
		return "system"
	case LocationUser:
		return "user"
	case LocationProject:
		return "project"
	default:
		return fmt.Sprintf("Location(%d)", uint8(l))
	}
}

func (l Location) rank() Rank {
	switch l {
	case LocationSystem:
		return RankSystemFile
	case LocationUser:
		return RankUserFile
	default:
		return RankProjectFile
	}
}

// SearchPaths pins the directories consulted during discovery. Zero
// fields fall back to the conventional locations; tests point them at
// temporary directories.
type SearchPaths struct {
	System  string // default: /etc/<name>
	User    string // default: os.UserConfigDir()/<name>
	Project string // default: current working directory
}

// dir resolves the directory searched for a location, applying the
// conventional fallbacks.
func (sp SearchPaths) dir(loc Location, name string) (string, error) {
	switch loc {
	case LocationSystem:
		if sp.System != "" {
			return sp.System, nil
		}
		return filepath.Join("/etc", name), nil
	case LocationUser:
		if sp.User != "" {
			return sp.User, nil
		}
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config dir: %w", err)
		}
		return filepath.Join(base, name), nil
	default:
		if sp.Project != "" {
			return sp.Project, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		return wd, nil
	}
}

// candidateNames lists the file names tried at a location, most
// preferred first. System and user layers use a fixed config.<ext>
// set; the project layer additionally recognizes an rc file and a
// .env file.
func candidateNames(loc Location, name string) []string {
	if loc == LocationProject {
		return []string{
			"." + name + "rc",
			name + ".config.json",
			name + ".config.yaml",
			name + ".config.yml",
			name + ".config.toml",
			".env",
		}
	}
	return []string{"config.json", "config.yaml", "config.yml", "config.toml"}
}

// discovery is the outcome of probing one location: the chosen path
// (empty when no candidate exists) and any candidates that also
// existed but lost the format-preference tiebreak.
type discovery struct {
	path    string
	skipped []string
}

// discoverLocation probes a location's directory for its candidate
// files. A missing directory or missing candidates is a normal
// outcome, not an error; only environment failures (such as an
// unresolvable home directory or an unreadable stat) are reported.
func discoverLocation(loc Location, name string, paths SearchPaths) (discovery, error) {
	dir, err := paths.dir(loc, name)
	if err != nil {
		return discovery{}, err
	}

	var d discovery
	for _, candidate := range candidateNames(loc, name) {
		full := filepath.Join(dir, candidate)
		info, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return discovery{}, fmt.Errorf("probing %s: %w", full, err)
		}
		if info.IsDir() {
			continue
		}
		if d.path == "" {
			d.path = full
		} else {
			d.skipped = append(d.skipped, full)
		}
	}
	return d, nil
}
