package compiler

import (
	"fmt"

	"github.com/chazu/flowscript/pkg/bytecode"
)

// DefaultEntry is the procedure recorded as a module's entry point when
// Options.Entry is empty.
const DefaultEntry = "main"

// FunctionSignature describes an imported host function.
type FunctionSignature struct {
	Name       string
	Table      uint16
	Index      uint16
	ReturnType bytecode.Type
	Params     []bytecode.Type
	ParamNames []string
}

// FunctionResolver supplies signatures of host functions that a unit may
// call without declaring them. Implementations must be safe for concurrent
// readers.
type FunctionResolver interface {
	LookupName(name string) (FunctionSignature, bool)
	LookupIndex(table, index uint16) (FunctionSignature, bool)
}

// Options configures a compilation.
type Options struct {
	// Library resolves undeclared function calls. May be nil.
	Library FunctionResolver

	// Entry names the entry procedure; DefaultEntry when empty. A unit
	// without that procedure produces a module with no entry.
	Entry string
}

// Compile runs resolve, lower, generate, backpatch and emit over a parsed
// unit. Warnings are returned even when compilation fails.
func Compile(unit *CompilationUnit, opts Options) (*bytecode.Module, []Warning, error) {
	info, warns, err := Resolve(unit, opts.Library)
	if err != nil {
		return nil, warns, err
	}

	m := bytecode.NewModule()
	g := newGenerator(info, m)
	layouts := make([]procLayout, len(info.Procedures))
	for i, p := range info.Procedures {
		layouts[i] = g.procedure(p)
	}
	if err := g.errs.Err(); err != nil {
		return nil, warns, err
	}

	code, addrs, errs := backpatch(&g.out)
	if err := errs.Err(); err != nil {
		return nil, warns, err
	}
	m.Code = code

	for _, f := range info.Functions {
		m.AddFunction(bytecode.Function{
			Name:       f.Name,
			Table:      f.Table,
			Index:      f.Index,
			ArgCount:   uint8(len(f.Params)),
			ReturnType: f.Type,
		})
	}
	for _, l := range layouts {
		start, end := addrs[l.start-1], addrs[l.end-1]
		m.AddProcedure(bytecode.Procedure{
			Name:       l.info.Symbol.Name,
			Entry:      start,
			Length:     end - start,
			LocalTypes: l.info.Locals,
			ParamCount: uint8(len(l.info.Symbol.Params)),
			ReturnType: l.info.Symbol.Type,
		})
	}
	for _, list := range [][]*Symbol{info.Statics, info.Globals} {
		for _, v := range list {
			m.Variables = append(m.Variables, bytecode.Variable{
				Scope: v.Scope,
				Type:  v.Type,
				Slot:  uint16(v.Slot),
				Value: g.encodeConst(v.Init),
			})
		}
	}
	m.StaticCount = uint32(len(info.Statics))
	m.GlobalCount = uint32(len(info.Globals))

	entry := opts.Entry
	if entry == "" {
		entry = DefaultEntry
	}
	if idx := m.ProcedureIndex(entry); idx >= 0 {
		m.Entry = uint32(idx)
	}

	if err := m.Validate(); err != nil {
		return nil, warns, fmt.Errorf("compiler produced an invalid module: %w", err)
	}
	return m, warns, nil
}

// CompileSource parses and compiles source text.
func CompileSource(src string, opts Options) (*bytecode.Module, []Warning, error) {
	unit, err := Parse(src)
	if err != nil {
		return nil, nil, err
	}
	return Compile(unit, opts)
}
