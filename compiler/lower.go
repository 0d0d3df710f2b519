package compiler

import (
	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Control-flow lowering
// ---------------------------------------------------------------------------

// target is an enclosing breakable construct.
type target struct {
	brk      label
	cont     label // zero for switch
	isSwitch bool
}

// generator lowers resolved procedures into one label stream.
type generator struct {
	info    *Info
	module  *bytecode.Module
	out     stream
	errs    ErrorList
	proc    *ProcInfo
	targets []target
	labels  map[string]label // user labels of the current procedure
}

// procLayout records the label bracketing of a lowered procedure.
type procLayout struct {
	info       *ProcInfo
	start, end label
}

func newGenerator(info *Info, m *bytecode.Module) *generator {
	return &generator{info: info, module: m}
}

func (g *generator) procedure(p *ProcInfo) procLayout {
	g.proc = p
	g.targets = g.targets[:0]
	g.labels = make(map[string]label, len(p.Labels))
	for name, sym := range p.Labels {
		g.labels[name] = g.out.newLabel(name, sym.Pos)
	}

	layout := procLayout{
		info:  p,
		start: g.out.newLabel("", p.Decl.SpanVal.Start),
		end:   g.out.newLabel("", p.Decl.SpanVal.End),
	}
	g.out.mark(layout.start)
	g.stmts(p.Decl.Body.Stmts)
	if !g.out.endsInReturn() {
		g.defaultReturn()
	}
	g.out.mark(layout.end)
	g.proc = nil
	return layout
}

// defaultReturn returns the zero value of the procedure's return type.
func (g *generator) defaultReturn() {
	rt := g.proc.Symbol.Type
	if rt == bytecode.TypeVoid {
		g.out.emit(bytecode.Instruction{Op: bytecode.OpReturn})
		return
	}
	g.pushConst(bytecode.ZeroValue(rt))
	g.out.emit(bytecode.Instruction{Op: bytecode.OpReturn, Aux: 1})
}

func (g *generator) stmts(list []Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *generator) stmt(s Stmt) {
	switch s := s.(type) {
	case *NullStmt:
	case *Block:
		g.stmts(s.Stmts)
	case *ExprStmt:
		g.exprStmt(s.X)
	case *VarDecl:
		g.varDecl(s)
	case *LabelStmt:
		g.out.mark(g.userLabel(s.Name, s.SpanVal.Start))
	case *Goto:
		g.out.jump(bytecode.OpJump, g.userLabel(s.Label, s.SpanVal.Start))
	case *If:
		g.lowerIf(s)
	case *While:
		g.lowerWhile(s)
	case *For:
		g.lowerFor(s)
	case *Switch:
		g.lowerSwitch(s)
	case *Break:
		if n := len(g.targets); n > 0 {
			g.out.jump(bytecode.OpJump, g.targets[n-1].brk)
			return
		}
		g.errs.add(ErrInvalidControlFlow, s.SpanVal.Start, "break outside a loop or switch")
	case *Continue:
		for i := len(g.targets) - 1; i >= 0; i-- {
			if !g.targets[i].isSwitch {
				g.out.jump(bytecode.OpJump, g.targets[i].cont)
				return
			}
		}
		g.errs.add(ErrInvalidControlFlow, s.SpanVal.Start, "continue outside a loop")
	case *Return:
		if s.Value == nil {
			g.out.emit(bytecode.Instruction{Op: bytecode.OpReturn})
			return
		}
		g.exprTo(s.Value, g.proc.Symbol.Type)
		g.out.emit(bytecode.Instruction{Op: bytecode.OpReturn, Aux: 1})
	default:
		g.errs.add(ErrUnsupportedConstruct, s.Span().Start, "cannot lower %s", nodeName(s))
	}
}

// userLabel returns the label for a source label name. A goto to a name
// the procedure never defines gets a fresh label that the backpatcher
// reports as unresolved.
func (g *generator) userLabel(name string, pos Position) label {
	if l, ok := g.labels[name]; ok {
		return l
	}
	l := g.out.newLabel(name, pos)
	g.labels[name] = l
	return l
}

func (g *generator) varDecl(d *VarDecl) {
	if d.Storage != StorageAuto || d.Init == nil {
		// Statics and globals are initialised from the variable table and
		// locals start zeroed.
		return
	}
	sym := g.info.Refs[d]
	g.exprTo(d.Init, sym.Type)
	g.store(sym)
}

func (g *generator) lowerIf(s *If) {
	end := g.out.newLabel("", s.SpanVal.End)
	if s.Else == nil {
		g.condJump(s.Cond, bytecode.OpJumpIfFalse, end)
		g.stmt(s.Then)
		g.out.mark(end)
		return
	}
	els := g.out.newLabel("", s.Else.Span().Start)
	g.condJump(s.Cond, bytecode.OpJumpIfFalse, els)
	g.stmt(s.Then)
	g.out.jump(bytecode.OpJump, end)
	g.out.mark(els)
	g.stmt(s.Else)
	g.out.mark(end)
}

func (g *generator) lowerWhile(s *While) {
	top := g.out.newLabel("", s.SpanVal.Start)
	end := g.out.newLabel("", s.SpanVal.End)
	g.out.mark(top)
	g.condJump(s.Cond, bytecode.OpJumpIfFalse, end)
	g.loopBody(s.Body, end, top)
	g.out.jump(bytecode.OpJump, top)
	g.out.mark(end)
}

func (g *generator) lowerFor(s *For) {
	switch init := s.Init.(type) {
	case *VarDecl:
		g.varDecl(init)
	case *ExprStmt:
		g.exprStmt(init.X)
	}
	top := g.out.newLabel("", s.SpanVal.Start)
	step := g.out.newLabel("", s.SpanVal.Start)
	end := g.out.newLabel("", s.SpanVal.End)
	g.out.mark(top)
	if s.Cond != nil {
		g.condJump(s.Cond, bytecode.OpJumpIfFalse, end)
	}
	g.loopBody(s.Body, end, step)
	g.out.mark(step)
	if s.Step != nil {
		g.exprStmt(s.Step)
	}
	g.out.jump(bytecode.OpJump, top)
	g.out.mark(end)
}

func (g *generator) loopBody(body Stmt, brk, cont label) {
	g.targets = append(g.targets, target{brk: brk, cont: cont})
	g.stmt(body)
	g.targets = g.targets[:len(g.targets)-1]
}

// lowerSwitch stores the scrutinee in a hidden local, tests each case in
// source order, and then jumps to the default body or the end. Bodies do
// not fall through.
func (g *generator) lowerSwitch(s *Switch) {
	tmp := g.proc.Temps[s]
	tagType := g.proc.Locals[tmp]
	g.expr(s.Tag)
	g.out.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Operand: uint32(tmp)})

	end := g.out.newLabel("", s.SpanVal.End)
	bodies := make([]label, len(s.Sections))
	var dflt label
	for i, sec := range s.Sections {
		bodies[i] = g.out.newLabel("", sec.SpanVal.Start)
		for _, l := range sec.Labels {
			if l.IsDefault() {
				dflt = bodies[i]
				continue
			}
			v := g.info.Consts[l.Value]
			g.out.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Operand: uint32(tmp)})
			if tagType == bytecode.TypeInt && v.Type == bytecode.TypeFloat {
				g.out.emit(bytecode.Instruction{Op: bytecode.OpToFloat})
			} else if tagType == bytecode.TypeFloat && v.Type == bytecode.TypeInt {
				v = bytecode.FloatValue(v.AsFloat())
			}
			g.pushConst(v)
			g.out.emit(bytecode.Instruction{Op: bytecode.OpEq})
			g.out.jump(bytecode.OpJumpIfTrue, bodies[i])
		}
	}
	if dflt != 0 {
		g.out.jump(bytecode.OpJump, dflt)
	} else {
		g.out.jump(bytecode.OpJump, end)
	}

	g.targets = append(g.targets, target{brk: end, isSwitch: true})
	for i, sec := range s.Sections {
		g.out.mark(bodies[i])
		g.stmts(sec.Body)
		if n := len(sec.Body); n == 0 || !terminates(sec.Body[n-1]) {
			g.out.jump(bytecode.OpJump, end)
		}
	}
	g.targets = g.targets[:len(g.targets)-1]
	g.out.mark(end)
}

// condJump evaluates a condition and jumps to l when its truth equals the
// jump's sense. Any int, float or bool is a valid condition.
func (g *generator) condJump(cond Expr, op bytecode.Opcode, l label) {
	g.expr(cond)
	g.out.jump(op, l)
}
