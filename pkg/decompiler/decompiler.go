// Package decompiler reconstructs FlowScript syntax trees from compiled
// modules.
//
// Each procedure is split into basic blocks after folding short-circuit
// expressions, the blocks are simulated into statements, and structured
// statements are recovered by matching the jump shapes the compiler emits
// for loops, switches and conditionals. Anything that does not match is
// rendered with labels and goto, so every well-formed module decompiles.
package decompiler

import (
	"fmt"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

// Options configures a decompilation.
type Options struct {
	// Library names imported functions by (table, index). May be nil.
	Library compiler.FunctionResolver
}

// decompiler holds the module-wide naming state shared by every
// procedure.
type decompiler struct {
	module *bytecode.Module
	opts   Options

	procNames []string
	funcNames []string
	funcSigs  []*compiler.FunctionSignature // library signatures, nil when unknown
	argTypes  [][]bytecode.Type             // argument types seen at call sites

	staticTypes []bytecode.Type
	globalTypes []bytecode.Type
}

// Decompile rebuilds a compilation unit from m. The unit declares every
// imported function, then statics and globals, then the procedures in
// table order. It fails only when m is structurally invalid.
func Decompile(m *bytecode.Module, opts Options) (*compiler.CompilationUnit, error) {
	d := &decompiler{module: m, opts: opts}
	d.nameProcedures()
	d.nameFunctions()
	d.storageTypes()

	procs := make([]compiler.Stmt, len(m.Procedures))
	for i := range m.Procedures {
		decl, err := d.procedure(i)
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", m.Procedures[i].Name, err)
		}
		procs[i] = decl
	}

	unit := &compiler.CompilationUnit{}
	unit.Decls = append(unit.Decls, d.functionDecls()...)
	unit.Decls = append(unit.Decls, d.storageDecls()...)
	unit.Decls = append(unit.Decls, procs...)
	return unit, nil
}

// DecompileBinary decodes a binary and decompiles it.
func DecompileBinary(data []byte, opts Options) (*compiler.CompilationUnit, error) {
	m, err := bytecode.Decode(data)
	if err != nil {
		return nil, err
	}
	return Decompile(m, opts)
}

// EntryName returns the source name of m's entry procedure, or "" when m
// has none. Recompiling a decompiled unit with this name as
// compiler.Options.Entry restores the entry point.
func EntryName(m *bytecode.Module) string {
	if m.Entry == bytecode.NoEntry || int(m.Entry) >= len(m.Procedures) {
		return ""
	}
	d := &decompiler{module: m}
	d.nameProcedures()
	return d.procNames[m.Entry]
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", bytecode.ErrMalformedBinary, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Naming
// ---------------------------------------------------------------------------

func (d *decompiler) nameProcedures() {
	used := make(map[string]bool)
	d.procNames = make([]string, len(d.module.Procedures))
	for i, p := range d.module.Procedures {
		name := p.Name
		if !isIdentifier(name) || used[name] {
			name = fmt.Sprintf("proc_%d", i)
		}
		used[name] = true
		d.procNames[i] = name
	}
}

// nameFunctions prefers the library's name for a (table, index) pair,
// then the name stored in the binary, then FUNC_<table>_<index>.
func (d *decompiler) nameFunctions() {
	used := make(map[string]bool, len(d.procNames))
	for _, n := range d.procNames {
		used[n] = true
	}
	fs := d.module.Functions
	d.funcNames = make([]string, len(fs))
	d.funcSigs = make([]*compiler.FunctionSignature, len(fs))
	d.argTypes = make([][]bytecode.Type, len(fs))
	for i, f := range fs {
		name := ""
		if d.opts.Library != nil {
			if sig, ok := d.opts.Library.LookupIndex(f.Table, f.Index); ok {
				if len(sig.Params) == int(f.ArgCount) {
					d.funcSigs[i] = &sig
				}
				name = sig.Name
			}
		}
		if !isIdentifier(name) || used[name] {
			name = f.Name
		}
		if !isIdentifier(name) || used[name] {
			name = fmt.Sprintf("FUNC_%d_%d", f.Table, f.Index)
		}
		used[name] = true
		d.funcNames[i] = name
	}
}

func (d *decompiler) storageTypes() {
	m := d.module
	d.staticTypes = make([]bytecode.Type, m.StaticCount)
	d.globalTypes = make([]bytecode.Type, m.GlobalCount)
	for i := range d.staticTypes {
		d.staticTypes[i] = bytecode.TypeInt
	}
	for i := range d.globalTypes {
		d.globalTypes[i] = bytecode.TypeInt
	}
	for _, v := range m.Variables {
		if v.Scope == bytecode.ScopeStatic {
			d.staticTypes[v.Slot] = v.Type
		} else {
			d.globalTypes[v.Slot] = v.Type
		}
	}
}

func storageName(scope bytecode.Scope, slot int) string {
	if scope == bytecode.ScopeStatic {
		return fmt.Sprintf("static%d", slot)
	}
	return fmt.Sprintf("global%d", slot)
}

// ---------------------------------------------------------------------------
// Top-level declarations
// ---------------------------------------------------------------------------

func (d *decompiler) functionDecls() []compiler.Stmt {
	decls := make([]compiler.Stmt, len(d.module.Functions))
	for i, f := range d.module.Functions {
		fd := &compiler.FunctionDecl{
			Table:      f.Table,
			Index:      f.Index,
			ReturnType: f.ReturnType,
			Name:       d.funcNames[i],
		}
		sig := d.funcSigs[i]
		for a := 0; a < int(f.ArgCount); a++ {
			p := &compiler.Param{Type: bytecode.TypeInt, Name: fmt.Sprintf("arg%d", a)}
			switch {
			case sig != nil:
				p.Type = sig.Params[a]
				if a < len(sig.ParamNames) && isIdentifier(sig.ParamNames[a]) {
					p.Name = sig.ParamNames[a]
				}
			case a < len(d.argTypes[i]) && d.argTypes[i][a] != bytecode.TypeVoid:
				p.Type = d.argTypes[i][a]
			}
			fd.Params = append(fd.Params, p)
		}
		uniqueParams(fd.Params)
		decls[i] = fd
	}
	return decls
}

// uniqueParams renames parameters whose library names collide.
func uniqueParams(ps []*compiler.Param) {
	seen := make(map[string]bool, len(ps))
	for i, p := range ps {
		if seen[p.Name] {
			p.Name = fmt.Sprintf("arg%d", i)
		}
		seen[p.Name] = true
	}
}

// storageDecls declares every static and global slot in slot order, so a
// recompiled unit allocates the same slots.
func (d *decompiler) storageDecls() []compiler.Stmt {
	m := d.module
	inits := make(map[[2]int]bytecode.Variable, len(m.Variables))
	for _, v := range m.Variables {
		inits[[2]int{int(v.Scope), int(v.Slot)}] = v
	}
	var decls []compiler.Stmt
	emit := func(scope bytecode.Scope, storage compiler.Storage, types []bytecode.Type) {
		for slot, t := range types {
			decl := &compiler.VarDecl{Storage: storage, Type: t, Name: storageName(scope, slot)}
			if v, ok := inits[[2]int{int(scope), slot}]; ok {
				decl.Init = literal(bytecode.DecodeValue(v.Type, v.Value, m.Strings))
			}
			decls = append(decls, decl)
		}
	}
	emit(bytecode.ScopeStatic, compiler.StorageStatic, d.staticTypes)
	emit(bytecode.ScopeGlobal, compiler.StorageGlobal, d.globalTypes)
	return decls
}

// literal renders a constant value.
func literal(v bytecode.Value) compiler.Expr {
	switch v.Type {
	case bytecode.TypeFloat:
		return &compiler.FloatLiteral{Value: v.F}
	case bytecode.TypeBool:
		return &compiler.BoolLiteral{Value: v.B}
	case bytecode.TypeString:
		return &compiler.StringLiteral{Value: v.S}
	default:
		return &compiler.IntLiteral{Value: v.I}
	}
}

func isIdentifier(s string) bool {
	if s == "" || compiler.LookupIdent(s) != compiler.TokenIdentifier {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
