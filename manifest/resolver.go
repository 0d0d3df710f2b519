package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Alias     string    // import root for this dependency
	Manifest  *Manifest // the dependency's own manifest (may be nil)
	Decl      Dependency
}

// SourceDirs returns the directories imports under the alias resolve to.
func (d ResolvedDep) SourceDirs() []string {
	if d.Manifest != nil {
		return d.Manifest.SourceDirPaths()
	}
	return []string{filepath.Join(d.LocalPath, "src")}
}

// LibraryPaths returns the function libraries the dependency declares.
func (d ResolvedDep) LibraryPaths() []string {
	if d.Manifest != nil {
		return d.Manifest.LibraryPaths()
	}
	return nil
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
	log      commonlog.Logger
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{
		manifest: m,
		log:      commonlog.GetLogger("flowc.deps"),
	}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock

	if len(r.manifest.Dependencies) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(r.manifest.DepsDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating deps dir: %w", err)
	}

	resolved := make(map[string]*ResolvedDep)
	order, err := r.resolveAll(r.manifest, resolved)
	if err != nil {
		return nil, err
	}

	aliases := make(map[string]string, len(order))
	for _, rd := range order {
		if prev, dup := aliases[rd.Alias]; dup {
			return nil, fmt.Errorf("dependencies %q and %q share the alias %q", prev, rd.Name, rd.Alias)
		}
		aliases[rd.Alias] = rd.Name
	}

	if err := r.writeLock(resolved); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return order, nil
}

// resolveAll resolves the dependencies of owner recursively, in name order.
// Paths of path dependencies are relative to owner's directory.
func (r *Resolver) resolveAll(owner *Manifest, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	names := make([]string, 0, len(owner.Dependencies))
	for name := range owner.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue
		}

		rd, err := r.resolveOne(owner, name, owner.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved[name] = rd

		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}
		order = append(order, *rd)
	}
	return order, nil
}

// resolveAlias picks the import root for a dependency:
//  1. Consumer override (dep.Alias from TOML)
//  2. Producer manifest (depManifest.Project.Alias)
//  3. ToAlias(name)
func resolveAlias(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var alias string
	switch {
	case dep.Alias != "":
		alias = dep.Alias
	case depManifest != nil && depManifest.Project.Alias != "":
		alias = depManifest.Project.Alias
	default:
		alias = ToAlias(name)
	}
	if err := ValidateAlias(alias); err != nil {
		return "", fmt.Errorf("dependency %q: %w; add alias = \"...\" in [dependencies]", name, err)
	}
	return alias, nil
}

func (r *Resolver) resolveOne(owner *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	var localPath string
	switch {
	case dep.Path != "":
		var err error
		localPath, err = filepath.Abs(owner.abs(dep.Path))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}
		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}

	case dep.Git != "":
		localPath = filepath.Join(r.manifest.DepsDir(), name)
		if err := r.fetch(name, dep, localPath); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("dependency %q has no git or path specified", name)
	}

	// A dependency without a manifest is a bare source tree.
	var depManifest *Manifest
	if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
		m, err := Load(localPath)
		if err != nil {
			return nil, err
		}
		depManifest = m
	}

	alias, err := resolveAlias(name, dep, depManifest)
	if err != nil {
		return nil, err
	}
	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Alias:     alias,
		Manifest:  depManifest,
		Decl:      dep,
	}, nil
}

// fetch clones a git dependency or updates an existing clone, then checks
// out the requested tag.
func (r *Resolver) fetch(name string, dep Dependency, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.log.Infof("cloning %s from %s", name, dep.Git)
		if err := gitClone(dep.Git, dir); err != nil {
			return err
		}
	} else if locked := r.lock.FindLockedDep(name); locked == nil || locked.Tag != dep.Tag {
		r.log.Infof("fetching %s", name)
		if err := gitFetch(dir); err != nil {
			return err
		}
	}
	if dep.Tag != "" {
		return gitCheckout(dir, dep.Tag)
	}
	return nil
}

// writeLock writes the resolved dependencies to the lock file.
func (r *Resolver) writeLock(resolved map[string]*ResolvedDep) error {
	lf := &LockFile{}
	for _, rd := range resolved {
		ld := LockedDep{Name: rd.Name}
		dep := rd.Decl
		switch {
		case dep.Git != "":
			ld.Git = dep.Git
			ld.Tag = dep.Tag
			if commit, err := gitCurrentCommit(rd.LocalPath); err == nil {
				ld.Commit = commit
			}
		case dep.Path != "":
			ld.Path = rd.LocalPath
		}
		lf.Deps = append(lf.Deps, ld)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifest.LockFilePath()), 0755); err != nil {
		return err
	}
	return WriteLock(r.manifest.LockFilePath(), lf)
}
