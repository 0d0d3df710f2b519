package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/build"
	"github.com/chazu/flowscript/pkg/bytecode"
	"github.com/chazu/flowscript/pkg/decompiler"
	"github.com/chazu/flowscript/pkg/library"
)

// runCompile processes `flowc compile`.
//
//	flowc compile door.flow                  # writes door.fsb next to the source
//	flowc compile -o out/door.fsb door.flow
//	flowc compile -lib host.toml -I shared door.flow
func runCompile(e *env, args []string) error {
	fs := e.newFlags("compile", "<file.flow>")
	var libs, search listFlag
	fs.Var(&libs, "lib", "Function library file (repeatable)")
	fs.Var(&search, "I", "Import search directory (repeatable)")
	entry := fs.String("entry", "", "Entry procedure name (default main)")
	output := fs.String("o", "", "Output module path")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one source file")
	}
	src := fs.Arg(0)

	lib, err := library.LoadAll(libs...)
	if err != nil {
		return err
	}
	res, err := compileFile(src, lib, *entry, search)
	if err != nil {
		return err
	}

	out := *output
	if out == "" {
		out = build.OutputPath(filepath.Dir(src), nil, src)
	}
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	e.log.Infof("wrote %s (%d procedures, %d bytes)", out, len(res.Module.Procedures), len(res.Data))
	return nil
}

// compileFile compiles a single source file and its imports in memory.
func compileFile(path string, lib *library.Library, entry string, search []string) (build.Result, error) {
	b := build.New(build.Options{
		Library: lib,
		Roots:   build.Roots{Search: search},
		Entry:   entry,
		Workers: 1,
	})
	results, err := b.Build(context.Background(), []string{path})
	if err != nil {
		return build.Result{}, err
	}
	return results[0], nil
}

// readModule loads a module from a binary, or compiles it when path is a
// source file.
func readModule(path string, lib *library.Library) (*bytecode.Module, error) {
	if filepath.Ext(path) == build.SourceExt {
		res, err := compileFile(path, lib, "", nil)
		if err != nil {
			return nil, err
		}
		return res.Module, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := bytecode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// runDecompile processes `flowc decompile`.
func runDecompile(e *env, args []string) error {
	fs := e.newFlags("decompile", "<file.fsb>")
	var libs listFlag
	fs.Var(&libs, "lib", "Function library file used to name imports (repeatable)")
	output := fs.String("o", "", "Write the source here instead of stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one module file")
	}

	lib, err := library.LoadAll(libs...)
	if err != nil {
		return err
	}
	m, err := readModule(fs.Arg(0), lib)
	if err != nil {
		return err
	}
	var opts decompiler.Options
	if lib != nil {
		opts.Library = lib
	}
	unit, err := decompiler.Decompile(m, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	text := compiler.Print(unit)

	if *output == "" {
		_, err = fmt.Fprint(e.stdout, text)
		return err
	}
	return os.WriteFile(*output, []byte(text), 0644)
}

// runDisasm processes `flowc disasm`.
func runDisasm(e *env, args []string) error {
	fs := e.newFlags("disasm", "<file.fsb|file.flow>")
	var libs listFlag
	fs.Var(&libs, "lib", "Function library file (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one module file")
	}
	lib, err := library.LoadAll(libs...)
	if err != nil {
		return err
	}
	m, err := readModule(fs.Arg(0), lib)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(e.stdout, m.Disassemble())
	return err
}

// runRun processes `flowc run`. Imported functions have no
// implementation here: each call is printed and yields its type's zero
// value.
func runRun(e *env, args []string) error {
	fs := e.newFlags("run", "<file.fsb|file.flow>")
	var libs listFlag
	fs.Var(&libs, "lib", "Function library file (repeatable)")
	call := fs.String("call", "", "Procedure to call instead of the entry")
	steps := fs.Int("steps", 1_000_000, "Instruction limit (0 for none)")
	trace := fs.Bool("trace", false, "Print every executed instruction to stderr")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one module or source file")
	}

	lib, err := library.LoadAll(libs...)
	if err != nil {
		return err
	}
	m, err := readModule(fs.Arg(0), lib)
	if err != nil {
		return err
	}

	vm := bytecode.NewVM(m)
	vm.MaxSteps = *steps
	vm.OnHostCall = func(c bytecode.HostCall) {
		fmt.Fprintln(e.stdout, c.String())
	}
	if *trace {
		vm.Trace = func(addr uint32, in bytecode.Instruction, depth int) {
			fmt.Fprintf(e.stderr, "%6d  %-24s [%d]\n", addr, in, depth)
		}
	}

	var result bytecode.Value
	if *call != "" {
		result, err = vm.Call(*call)
	} else {
		result, err = vm.RunEntry()
	}
	e.log.Debugf("executed %d instructions", vm.Steps())
	if err != nil {
		return err
	}
	if result.Type != bytecode.TypeVoid {
		fmt.Fprintf(e.stdout, "=> %s\n", result)
	}
	return nil
}

// runLib processes `flowc lib`: a TOML library is encoded to the binary
// form and a binary library is printed as TOML.
func runLib(e *env, args []string) error {
	fs := e.newFlags("lib", "<library.toml|library.flib>")
	output := fs.String("o", "", "Output path")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one library file")
	}
	in := fs.Arg(0)

	lib, err := library.Load(in)
	if err != nil {
		return err
	}

	if filepath.Ext(in) == ".toml" {
		data, err := lib.Encode()
		if err != nil {
			return err
		}
		out := *output
		if out == "" {
			out = strings.TrimSuffix(in, ".toml") + ".flib"
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		e.log.Infof("wrote %s (%d functions, fingerprint %s)", out, lib.Len(), lib.Fingerprint())
		return nil
	}

	data, err := lib.MarshalTOML()
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = e.stdout.Write(data)
		return err
	}
	return os.WriteFile(*output, data, 0644)
}
