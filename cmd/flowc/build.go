package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/flowscript/manifest"
	"github.com/chazu/flowscript/pkg/build"
	"github.com/chazu/flowscript/pkg/cache"
	"github.com/chazu/flowscript/pkg/library"
)

// loadProject finds the manifest governing dir.
func loadProject(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	return m, nil
}

// runBuild processes `flowc build`.
//
//	flowc build              # build the project around the working directory
//	flowc build -j 8 -no-cache
func runBuild(e *env, args []string) error {
	fs := e.newFlags("build", "")
	dir := fs.String("C", ".", "Project directory")
	workers := fs.Int("j", 0, "Concurrent compilations (default from manifest, then GOMAXPROCS)")
	entry := fs.String("entry", "", "Entry procedure name (default from manifest)")
	noCache := fs.Bool("no-cache", false, "Ignore the compile cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usagef("unexpected arguments: %v", fs.Args())
	}

	m, err := loadProject(*dir)
	if err != nil {
		return err
	}
	deps, err := manifest.NewResolver(m).Resolve()
	if err != nil {
		return fmt.Errorf("resolving dependencies: %w", err)
	}

	libPaths := m.LibraryPaths()
	roots := build.Roots{Search: m.SourceDirPaths(), Dependencies: map[string][]string{}}
	for _, d := range deps {
		e.log.Debugf("dependency %s at %s as %q", d.Name, d.LocalPath, d.Alias)
		roots.Dependencies[d.Alias] = d.SourceDirs()
		libPaths = append(libPaths, d.LibraryPaths()...)
	}
	lib, err := library.LoadAll(libPaths...)
	if err != nil {
		return err
	}

	opts := build.Options{
		Library:   lib,
		Roots:     roots,
		Entry:     m.Source.Entry,
		OutputDir: m.OutputDir(),
		Workers:   m.Build.Workers,
	}
	if *entry != "" {
		opts.Entry = *entry
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if path := m.CachePath(); path != "" && !*noCache {
		c, err := cache.Open(path)
		if err != nil {
			return err
		}
		defer c.Close()
		opts.Cache = c
	}

	paths, err := build.Discover(m.SourceDirPaths()...)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s files under %v", build.SourceExt, m.Source.Dirs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	results, err := build.New(opts).Build(ctx, paths)

	var built, cached int
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		built++
		if r.Cached {
			cached++
		}
		rel, relErr := filepath.Rel(m.Dir, r.Output)
		if relErr != nil {
			rel = r.Output
		}
		fmt.Fprintf(e.stdout, "%s\n", rel)
	}
	fmt.Fprintf(e.stdout, "built %d of %d units (%d cached)\n", built, len(results), cached)
	return err
}

// runCache processes `flowc cache`.
//
//	flowc cache stats
//	flowc cache prune -older 168h
func runCache(e *env, args []string) error {
	if len(args) == 0 {
		return usagef("expected stats or prune")
	}
	sub, args := args[0], args[1:]
	if sub != "stats" && sub != "prune" {
		return usagef("unknown cache command %q", sub)
	}

	fs := e.newFlags("cache "+sub, "")
	dir := fs.String("C", ".", "Project directory")
	path := fs.String("path", "", "Cache database (default from manifest)")
	older := fs.Duration("older", 30*24*time.Hour, "Prune entries older than this")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *path == "" {
		m, err := loadProject(*dir)
		if err != nil {
			return err
		}
		if *path = m.CachePath(); *path == "" {
			return errors.New("the compile cache is disabled for this project")
		}
	}
	c, err := cache.Open(*path)
	if err != nil {
		return err
	}
	defer c.Close()

	log := commonlog.GetLogger("flowc.cache")
	ctx := context.Background()
	switch sub {
	case "stats":
		n, err := c.Len(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s: %d modules\n", c.Path(), n)
	case "prune":
		n, err := c.Prune(ctx, time.Now().Add(-*older))
		if err != nil {
			return err
		}
		log.Infof("pruned %d entries older than %s from %s", n, *older, c.Path())
		fmt.Fprintf(e.stdout, "pruned %d modules\n", n)
	default:
		return usagef("unknown cache command %q", sub)
	}
	return nil
}
