package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// LockFile pins resolved dependencies.
type LockFile struct {
	Deps []LockedDep `toml:"dep"`
}

// LockedDep is one pinned dependency.
type LockedDep struct {
	Name   string `toml:"name"`
	Git    string `toml:"git,omitempty"`
	Tag    string `toml:"tag,omitempty"`
	Commit string `toml:"commit,omitempty"`
	Path   string `toml:"path,omitempty"`
}

// ReadLock reads a lock file. A missing file yields nil and no error.
func ReadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &lf, nil
}

// WriteLock writes lf to path with dependencies sorted by name.
func WriteLock(path string, lf *LockFile) error {
	deps := append([]LockedDep(nil), lf.Deps...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	var buf bytes.Buffer
	buf.WriteString("# Generated by flowc. Do not edit.\n\n")
	if err := toml.NewEncoder(&buf).Encode(LockFile{Deps: deps}); err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// FindLockedDep returns the pinned entry for name, or nil.
func (lf *LockFile) FindLockedDep(name string) *LockedDep {
	if lf == nil {
		return nil
	}
	for i := range lf.Deps {
		if lf.Deps[i].Name == name {
			return &lf.Deps[i]
		}
	}
	return nil
}
