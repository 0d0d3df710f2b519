// Package build compiles many FlowScript files in parallel.
//
// Each file is a separate compilation unit with its own symbol table and
// instruction buffers, so units compile on independent goroutines. The
// function library and the compile cache are the only values the workers
// share; the library is read-only and the cache serialises its writes.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
	"github.com/chazu/flowscript/pkg/cache"
	"github.com/chazu/flowscript/pkg/library"
)

const (
	// SourceExt is the extension of FlowScript source files.
	SourceExt = ".flow"

	// BinaryExt is the extension of compiled modules.
	BinaryExt = ".fsb"
)

// ErrOutputConflict is returned for a source whose module would overwrite
// another source's module in the same build.
var ErrOutputConflict = errors.New("output conflict")

// Options configures a Builder.
type Options struct {
	Library *library.Library // may be nil
	Cache   *cache.Cache     // may be nil
	Roots   Roots

	// Entry names the entry procedure; compiler.DefaultEntry when empty.
	Entry string

	// OutputDir receives one module per source file. Nothing is written
	// when it is empty.
	OutputDir string

	// Workers bounds the number of concurrent compilations; zero means
	// GOMAXPROCS.
	Workers int
}

// Result is the outcome of compiling one file.
type Result struct {
	Path     string
	Output   string // written module path, empty when not written
	Module   *bytecode.Module
	Data     []byte // encoded module
	Warnings []compiler.Warning
	Cached   bool
	Err      error
}

// Builder compiles files. A Builder may be reused; each Build call gets a
// fresh build ID.
type Builder struct {
	opts Options
	log  commonlog.Logger
}

// New returns a Builder for opts.
func New(opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{opts: opts, log: commonlog.GetLogger("flowc.build")}
}

// Build compiles paths and returns one result per path, in the same order.
// The error joins every failed unit's error; results are returned either
// way. Cancelling ctx stops units that have not started.
func (b *Builder) Build(ctx context.Context, paths []string) ([]Result, error) {
	id := uuid.NewString()
	b.log.Infof("build %s: %d units, %d workers", id, len(paths), b.opts.Workers)

	results := make([]Result, len(paths))
	skip := b.conflicts(paths, results)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, path := range paths {
		if skip[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Path: path, Err: err}
				return nil
			}
			results[i] = b.compile(gctx, id, path)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
		for _, w := range r.Warnings {
			b.log.Noticef("%s: %s", r.Path, w)
		}
	}
	if len(errs) > 0 {
		b.log.Errorf("build %s: %d of %d units failed", id, len(errs), len(paths))
	}
	return results, errors.Join(errs...)
}

// conflicts marks every path whose output file another path already
// claims, recording ErrOutputConflict in its result.
func (b *Builder) conflicts(paths []string, results []Result) []bool {
	skip := make([]bool, len(paths))
	if b.opts.OutputDir == "" {
		return skip
	}
	owner := make(map[string]string, len(paths))
	for i, path := range paths {
		out := OutputPath(b.opts.OutputDir, b.opts.Roots.Search, path)
		if prev, ok := owner[out]; ok {
			results[i] = Result{Path: path, Err: fmt.Errorf("%w: %s and %s both write %s", ErrOutputConflict, prev, path, out)}
			skip[i] = true
			continue
		}
		owner[out] = path
	}
	return skip
}

// compile builds one file, consulting the cache first.
func (b *Builder) compile(ctx context.Context, buildID, path string) Result {
	res := Result{Path: path}
	srcs, err := b.opts.Roots.load(path)
	if err != nil {
		res.Err = err
		return res
	}

	var key string
	if b.opts.Cache != nil {
		key = cache.Key(fingerprintSources(srcs), b.opts.Library.Fingerprint(), b.opts.Entry)
		if e, err := b.opts.Cache.Get(ctx, key); err == nil {
			if m, err := bytecode.Decode(e.Module); err == nil {
				b.log.Debugf("%s: cached by build %s", path, e.BuildID)
				res.Module, res.Data, res.Warnings, res.Cached = m, e.Module, e.Warnings, true
				return b.write(res)
			}
			b.log.Warningf("%s: discarding unreadable cache entry", path)
		} else if !errors.Is(err, cache.ErrMiss) {
			b.log.Warningf("%s: %s", path, err)
		}
	}

	opts := compiler.Options{Entry: b.opts.Entry}
	if b.opts.Library != nil {
		opts.Library = b.opts.Library
	}
	m, warns, err := compiler.Compile(merge(srcs), opts)
	res.Warnings = warns
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)
		return res
	}
	data, err := m.Encode()
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)
		return res
	}
	res.Module, res.Data = m, data

	if b.opts.Cache != nil {
		err := b.opts.Cache.Put(ctx, key, &cache.Entry{Module: data, Warnings: warns, BuildID: buildID})
		if err != nil {
			b.log.Warningf("%s: %s", path, err)
		}
	}
	return b.write(res)
}

// write stores the module under OutputDir.
func (b *Builder) write(res Result) Result {
	if b.opts.OutputDir == "" {
		return res
	}
	out := OutputPath(b.opts.OutputDir, b.opts.Roots.Search, res.Path)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		res.Err = fmt.Errorf("creating output dir: %w", err)
		return res
	}
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		res.Err = fmt.Errorf("writing %s: %w", out, err)
		return res
	}
	res.Output = out
	return res
}

// OutputPath returns where the module compiled from src is written. A
// source under one of roots keeps its path relative to that root; any
// other source is written by base name.
func OutputPath(dir string, roots []string, src string) string {
	name := filepath.Base(src)
	for _, root := range roots {
		rel, err := filepath.Rel(root, src)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			name = rel
			break
		}
	}
	return filepath.Join(dir, strings.TrimSuffix(name, SourceExt)+BinaryExt)
}
