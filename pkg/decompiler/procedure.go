package decompiler

import (
	"fmt"
	"math"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

// procDecompiler holds the state for one procedure.
type procDecompiler struct {
	*decompiler
	proc   *bytecode.Procedure
	code   []bytecode.Instruction
	edges  []edge
	blocks []*block

	byStart map[int]*block
	byEnd   map[int]*block

	types     map[compiler.Expr]bytecode.Type
	slots     map[*compiler.Identifier]int // local slot of every local reference
	loads     map[int]int                  // local slot -> load count
	stores    map[int]int                  // local slot -> store count
	temps     []bytecode.Type
	stackVars map[int]bytecode.Type
	owned     map[string]bool // temporaries and stack variables

	broken bool // a region did not start on a block boundary
}

func (d *decompiler) procedure(idx int) (*compiler.ProcedureDecl, error) {
	p := &d.module.Procedures[idx]
	code, edges, err := relocate(p, d.module.Body(p))
	if err != nil {
		return nil, err
	}
	blocks, err := split(fold(code, edges))
	if err != nil {
		return nil, err
	}
	if err := depths(blocks); err != nil {
		return nil, err
	}

	pd := &procDecompiler{
		decompiler: d,
		proc:       p,
		code:       code,
		edges:      edges,
		blocks:     blocks,
		byStart:    make(map[int]*block, len(blocks)),
		byEnd:      make(map[int]*block, len(blocks)),
		types:      make(map[compiler.Expr]bytecode.Type),
		slots:      make(map[*compiler.Identifier]int),
		loads:      make(map[int]int),
		stores:     make(map[int]int),
		stackVars:  make(map[int]bytecode.Type),
		owned:      make(map[string]bool),
	}
	for _, b := range blocks {
		pd.byStart[b.start] = b
		pd.byEnd[b.end] = b
	}
	for _, in := range code {
		switch in.Op {
		case bytecode.OpLoadLocal:
			pd.loads[int(in.Operand)]++
		case bytecode.OpStoreLocal:
			pd.stores[int(in.Operand)]++
		}
	}
	for _, b := range blocks {
		pd.simulate(b)
	}

	body := pd.structure()
	decl := &compiler.ProcedureDecl{
		ReturnType: p.ReturnType,
		Name:       d.procNames[idx],
	}
	for i := 0; i < int(p.ParamCount); i++ {
		decl.Params = append(decl.Params, &compiler.Param{Type: p.LocalTypes[i], Name: pd.localName(i)})
	}
	decl.Body = &compiler.Block{Stmts: append(pd.declarations(body), body...)}
	return decl, nil
}

// structure recovers structured statements, falling back to a flat goto
// rendering when the structured form would leave a goto without its label.
func (pd *procDecompiler) structure() []compiler.Stmt {
	n := len(pd.code)
	body := pd.region(0, n, context{brk: -1, cont: -1, follow: n, skipLoop: -1})
	if !pd.broken {
		body = pd.tidy(body)
		if labelsResolve(body) {
			return pd.stripDefaultReturn(body)
		}
	}
	var flat []compiler.Stmt
	ctx := context{brk: -1, cont: -1, follow: -1, skipLoop: -1}
	for _, b := range pd.blocks {
		flat = append(flat, label(b.start))
		flat = append(flat, pd.plain(b, n, ctx)...)
	}
	return pd.stripDefaultReturn(pd.tidy(flat))
}

// ---------------------------------------------------------------------------
// Names and declarations
// ---------------------------------------------------------------------------

func (pd *procDecompiler) localName(slot int) string {
	if slot < int(pd.proc.ParamCount) {
		return fmt.Sprintf("param%d", slot)
	}
	return fmt.Sprintf("local%d", slot)
}

func tempName(i int) string  { return fmt.Sprintf("temp%d", i) }
func stackName(i int) string { return fmt.Sprintf("stack%d", i) }

// newTemp allocates a temporary of type t.
func (pd *procDecompiler) newTemp(t bytecode.Type) *compiler.Identifier {
	pd.temps = append(pd.temps, t)
	name := tempName(len(pd.temps) - 1)
	pd.owned[name] = true
	return &compiler.Identifier{Name: name}
}

// stackVar returns a reference to the variable holding stack position i
// across block boundaries.
func (pd *procDecompiler) stackVar(i int) *compiler.Identifier {
	name := stackName(i)
	pd.owned[name] = true
	return &compiler.Identifier{Name: name}
}

// declarations declares every non-parameter local, temporary and stack
// variable the body refers to.
func (pd *procDecompiler) declarations(body []compiler.Stmt) []compiler.Stmt {
	used := make(map[string]bool)
	walk(body, func(n compiler.Node) {
		if id, ok := n.(*compiler.Identifier); ok {
			used[id.Name] = true
		}
	})

	var decls []compiler.Stmt
	declare := func(t bytecode.Type, name string) {
		if !used[name] {
			return
		}
		if t == bytecode.TypeVoid {
			t = bytecode.TypeInt
		}
		decls = append(decls, &compiler.VarDecl{Type: t, Name: name})
	}
	for slot := int(pd.proc.ParamCount); slot < len(pd.proc.LocalTypes); slot++ {
		declare(pd.proc.LocalTypes[slot], pd.localName(slot))
	}
	for i, t := range pd.temps {
		declare(t, tempName(i))
	}
	for i := 0; i < len(pd.stackVars); i++ {
		declare(pd.stackVars[i], stackName(i))
	}
	return decls
}

// stripDefaultReturn drops a trailing return of the zero value, which the
// compiler adds back.
func (pd *procDecompiler) stripDefaultReturn(body []compiler.Stmt) []compiler.Stmt {
	n := len(body)
	if n == 0 {
		return body
	}
	ret, ok := body[n-1].(*compiler.Return)
	if !ok {
		return body
	}
	if ret.Value == nil || isZero(ret.Value, pd.proc.ReturnType) {
		return body[:n-1]
	}
	return body
}

func isZero(e compiler.Expr, t bytecode.Type) bool {
	switch e := e.(type) {
	case *compiler.IntLiteral:
		return t == bytecode.TypeInt && e.Value == 0
	case *compiler.FloatLiteral:
		return t == bytecode.TypeFloat && e.Value == 0 && !math.Signbit(float64(e.Value))
	case *compiler.BoolLiteral:
		return t == bytecode.TypeBool && !e.Value
	case *compiler.StringLiteral:
		return t == bytecode.TypeString && e.Value == ""
	}
	return false
}
