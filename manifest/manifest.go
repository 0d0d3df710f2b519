// Package manifest handles flowscript.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in project directories.
const FileName = "flowscript.toml"

// Manifest represents a flowscript.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Library      Library               `toml:"library"`
	Build        Build                 `toml:"build"`
	Cache        Cache                 `toml:"cache"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the flowscript.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Alias   string `toml:"alias"` // import root other projects use for this one
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"` // entry procedure name
}

// Library lists function library files, TOML or binary.
type Library struct {
	Paths []string `toml:"paths"`
}

// Build configures compilation output.
type Build struct {
	Output  string `toml:"output"`
	Workers int    `toml:"workers"`
}

// Cache configures the compile cache.
type Cache struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// Dependency represents a single project dependency.
type Dependency struct {
	Git   string `toml:"git"`
	Tag   string `toml:"tag"`
	Path  string `toml:"path"`
	Alias string `toml:"alias"`
}

// Load parses a flowscript.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Build.Output == "" {
		m.Build.Output = "build"
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".flowscript", "cache.db")
	}
	if m.Build.Workers < 0 {
		return nil, fmt.Errorf("%s: build.workers must not be negative", path)
	}
	for name, dep := range m.Dependencies {
		if dep.Alias != "" {
			if err := ValidateAlias(dep.Alias); err != nil {
				return nil, fmt.Errorf("%s: dependency %q: %w", path, name, err)
			}
		}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a flowscript.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// abs resolves p against the manifest directory.
func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// LibraryPaths returns absolute paths for the configured function libraries.
func (m *Manifest) LibraryPaths() []string {
	var paths []string
	for _, p := range m.Library.Paths {
		paths = append(paths, m.abs(p))
	}
	return paths
}

// OutputDir returns the absolute build output directory.
func (m *Manifest) OutputDir() string {
	return m.abs(m.Build.Output)
}

// CachePath returns the absolute compile cache path, or "" when the cache
// is disabled.
func (m *Manifest) CachePath() string {
	if m.Cache.Disabled {
		return ""
	}
	return m.abs(m.Cache.Path)
}

// DepsDir returns the path to the .flowscript/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".flowscript", "deps")
}

// LockFilePath returns the path to .flowscript/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".flowscript", "lock.toml")
}
