package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/flowscript/compiler"
)

// ErrImportNotFound is returned when an import path matches no file.
var ErrImportNotFound = errors.New("import not found")

// Roots locates imported files. An import path is tried relative to the
// importing file, then under each search directory, then, when its first
// segment names a dependency, under that dependency's directories.
type Roots struct {
	Search       []string
	Dependencies map[string][]string // alias -> source directories
}

// find returns the absolute path of imp imported from the file at from.
func (r Roots) find(imp, from string) (string, error) {
	var candidates []string
	if filepath.IsAbs(imp) {
		candidates = append(candidates, imp)
	} else {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), imp))
		for _, dir := range r.Search {
			candidates = append(candidates, filepath.Join(dir, imp))
		}
		clean := filepath.ToSlash(filepath.Clean(imp))
		if alias, rest, ok := strings.Cut(clean, "/"); ok {
			for _, dir := range r.Dependencies[alias] {
				candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(rest)))
			}
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", fmt.Errorf("%w: %q imported from %s", ErrImportNotFound, imp, from)
}

// source is a parsed file taking part in a compilation.
type source struct {
	path string
	text []byte
	unit *compiler.CompilationUnit
}

// load parses path and every file it imports, transitively. Files come
// back dependencies first, each once; import cycles are cut at the first
// revisit.
func (r Roots) load(path string) ([]source, error) {
	var (
		order []source
		seen  = make(map[string]bool)
	)
	var visit func(path string) error
	visit = func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		unit, err := compiler.Parse(string(text))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, imp := range unit.Imports {
			dep, err := r.find(imp.Path, path)
			if err != nil {
				return fmt.Errorf("%s: line %d: %w", path, imp.SpanVal.Start.Line, err)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		order = append(order, source{path: path, text: text, unit: unit})
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := visit(abs); err != nil {
		return nil, err
	}
	return order, nil
}

// merge joins the declarations of srcs into one unit, in order.
func merge(srcs []source) *compiler.CompilationUnit {
	if len(srcs) == 1 {
		return srcs[0].unit
	}
	merged := &compiler.CompilationUnit{}
	for _, s := range srcs {
		merged.Decls = append(merged.Decls, s.unit.Decls...)
	}
	return merged
}

// fingerprintSources concatenates every file's path and text so a change
// to any imported file changes the cache key.
func fingerprintSources(srcs []source) []byte {
	var b []byte
	for _, s := range srcs {
		b = append(b, s.path...)
		b = append(b, 0)
		b = append(b, s.text...)
		b = append(b, 0)
	}
	return b
}

// Discover returns every .flow file under dirs, in lexical order per
// directory. Missing directories are skipped.
func Discover(dirs ...string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == SourceExt {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	return files, nil
}
