package decompiler

import (
	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Stack simulation: instructions to expressions and statements
// ---------------------------------------------------------------------------

var binaryOps = map[bytecode.Opcode]compiler.BinaryOp{
	bytecode.OpAdd: compiler.BinaryAdd,
	bytecode.OpSub: compiler.BinarySub,
	bytecode.OpMul: compiler.BinaryMul,
	bytecode.OpDiv: compiler.BinaryDiv,
	bytecode.OpMod: compiler.BinaryMod,
	bytecode.OpEq:  compiler.BinaryEq,
	bytecode.OpNe:  compiler.BinaryNe,
	bytecode.OpLt:  compiler.BinaryLt,
	bytecode.OpLe:  compiler.BinaryLe,
	bytecode.OpGt:  compiler.BinaryGt,
	bytecode.OpGe:  compiler.BinaryGe,
}

var castTypes = map[bytecode.Opcode]bytecode.Type{
	bytecode.OpToInt:   bytecode.TypeInt,
	bytecode.OpToFloat: bytecode.TypeFloat,
	bytecode.OpToBool:  bytecode.TypeBool,
}

// sim is the symbolic operand stack of one block.
type sim struct {
	pd    *procDecompiler
	stack []compiler.Expr
	stmts []compiler.Stmt
}

func (s *sim) push(e compiler.Expr, t bytecode.Type) {
	s.pd.types[e] = t
	s.stack = append(s.stack, e)
}

func (s *sim) pop() compiler.Expr {
	e := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return e
}

func (s *sim) typeOf(e compiler.Expr) bytecode.Type {
	return s.pd.types[e]
}

// emit appends a statement. Pending stack values that the statement could
// observe or reorder are spilled to temporaries first.
func (s *sim) emit(st compiler.Stmt) {
	for i, e := range s.stack {
		if !s.pd.settled(e) {
			t := s.typeOf(e)
			tmp := s.pd.newTemp(t)
			s.stmts = append(s.stmts, assignStmt(tmp, e))
			s.pd.types[tmp] = t
			s.stack[i] = tmp
		}
	}
	s.stmts = append(s.stmts, st)
}

// settled reports whether e can be evaluated later without changing its
// value: constants and decompiler-owned variables.
func (pd *procDecompiler) settled(e compiler.Expr) bool {
	switch e := e.(type) {
	case *compiler.IntLiteral, *compiler.FloatLiteral, *compiler.BoolLiteral, *compiler.StringLiteral:
		return true
	case *compiler.Unary:
		return e.Op == compiler.UnaryNeg && pd.settled(e.Operand)
	case *compiler.Identifier:
		return pd.owned[e.Name]
	}
	return false
}

// simulate turns a block into statements and a terminator. Values left on
// the stack at the end of the block are stored to stack variables, which
// successors read back.
func (pd *procDecompiler) simulate(b *block) {
	s := &sim{pd: pd}
	for i := 0; i < b.depth; i++ {
		id := pd.stackVar(i)
		if _, ok := pd.stackVars[i]; !ok {
			pd.stackVars[i] = bytecode.TypeInt
		}
		s.push(id, pd.stackVars[i])
	}

	ops := b.ops
	last := ops[len(ops)-1]
	if last.logic == nil && last.in.Op.EndsBlock() {
		ops = ops[:len(ops)-1]
	}
	s.run(ops)

	switch {
	case last.logic != nil || !last.in.Op.EndsBlock():
		b.term = termFall
	case last.in.Op == bytecode.OpReturn:
		b.term = termReturn
		ret := &compiler.Return{}
		if last.in.Aux != 0 {
			ret.Value = s.pop()
		}
		s.emit(ret)
	case last.in.Op == bytecode.OpJump:
		b.term = termJump
		b.target = int(last.in.Operand)
	default:
		b.term = termBranch
		b.target = int(last.in.Operand)
		b.cond = s.pop()
		b.sense = last.in.Op == bytecode.OpJumpIfTrue
	}
	if b.term != termReturn {
		s.spill()
	}
	b.stmts = s.stmts
}

// spill stores the remaining stack into stack variables, bottom first.
func (s *sim) spill() {
	for i, e := range s.stack {
		name := stackName(i)
		if id, ok := e.(*compiler.Identifier); ok && id.Name == name {
			continue
		}
		if _, ok := s.pd.stackVars[i]; !ok || s.pd.stackVars[i] == bytecode.TypeInt {
			s.pd.stackVars[i] = s.typeOf(e)
		}
		s.stmts = append(s.stmts, assignStmt(s.pd.stackVar(i), e))
	}
	s.stack = nil
}

func (s *sim) run(ops []op) {
	for i := 0; i < len(ops); i++ {
		o := ops[i]
		if o.logic != nil {
			s.logical(o.logic)
			continue
		}
		in := o.in
		switch {
		case in.Op == bytecode.OpNop:
		case in.Op == bytecode.OpPop:
			s.emit(&compiler.ExprStmt{X: s.pop()})
		case in.Op == bytecode.OpDup:
			if i+1 < len(ops) && ops[i+1].logic == nil && ops[i+1].in.Op.IsStore() {
				i++
				s.assignValue(ops[i].in)
				continue
			}
			e := s.pop()
			t := s.typeOf(e)
			if !s.pd.settled(e) {
				tmp := s.pd.newTemp(t)
				s.stmts = append(s.stmts, assignStmt(tmp, e))
				e = tmp
			}
			s.push(e, t)
			s.push(e, t)
		case in.Op == bytecode.OpPushInt:
			s.push(&compiler.IntLiteral{Value: in.Int()}, bytecode.TypeInt)
		case in.Op == bytecode.OpPushFloat:
			s.push(&compiler.FloatLiteral{Value: in.Float()}, bytecode.TypeFloat)
		case in.Op == bytecode.OpPushBool:
			s.push(&compiler.BoolLiteral{Value: in.Bool()}, bytecode.TypeBool)
		case in.Op == bytecode.OpPushString:
			s.push(&compiler.StringLiteral{Value: s.pd.module.Strings.Get(in.Operand)}, bytecode.TypeString)
		case in.Op.IsLoad():
			id, t := s.pd.variable(in)
			s.push(id, t)
		case in.Op.IsStore():
			target, t := s.pd.variable(in)
			s.emit(s.pd.prettyAssign(target, t, s.pop(), false))
		case in.Op.IsBinary():
			r, l := s.pop(), s.pop()
			s.binary(binaryOps[in.Op], l, r)
		case in.Op == bytecode.OpNeg:
			x := s.pop()
			s.push(&compiler.Unary{Op: compiler.UnaryNeg, Operand: x}, s.typeOf(x))
		case in.Op == bytecode.OpNot:
			s.push(&compiler.Unary{Op: compiler.UnaryNot, Operand: s.pop()}, bytecode.TypeBool)
		case in.Op.IsConversion():
			t := castTypes[in.Op]
			s.push(&compiler.Cast{Type: t, Operand: s.pop()}, t)
		case in.Op == bytecode.OpCallProc:
			args := s.args(int(in.Aux))
			name := s.pd.procNames[in.Operand]
			s.push(&compiler.Call{Name: name, Args: args}, s.pd.module.Procedures[in.Operand].ReturnType)
		case in.Op == bytecode.OpCallFunc:
			args := s.args(int(in.Aux))
			s.pd.noteArgs(int(in.Operand), args)
			s.push(&compiler.Call{Name: s.pd.funcNames[in.Operand], Args: args}, s.pd.module.Functions[in.Operand].ReturnType)
		}
	}
}

// args pops n call arguments, first argument deepest.
func (s *sim) args(n int) []compiler.Expr {
	if n == 0 {
		return nil
	}
	args := make([]compiler.Expr, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = s.pop()
	}
	return args
}

func (pd *procDecompiler) noteArgs(fn int, args []compiler.Expr) {
	if pd.argTypes[fn] != nil {
		return
	}
	types := make([]bytecode.Type, len(args))
	for i, a := range args {
		types[i] = pd.types[a]
	}
	pd.argTypes[fn] = types
}

// variable returns the identifier and type addressed by a load or store.
func (pd *procDecompiler) variable(in bytecode.Instruction) (*compiler.Identifier, bytecode.Type) {
	slot := int(in.Operand)
	switch scope := bytecode.ScopeOf(in.Op); scope {
	case bytecode.ScopeStatic:
		return &compiler.Identifier{Name: storageName(scope, slot)}, pd.staticTypes[slot]
	case bytecode.ScopeGlobal:
		return &compiler.Identifier{Name: storageName(scope, slot)}, pd.globalTypes[slot]
	default:
		id := &compiler.Identifier{Name: pd.localName(slot)}
		pd.slots[id] = slot
		return id, pd.proc.LocalTypes[slot]
	}
}

// assignValue handles dup; store: an assignment whose value stays on the
// stack.
func (s *sim) assignValue(store bytecode.Instruction) {
	target, t := s.pd.variable(store)
	v := s.pop()
	st := s.pd.prettyAssign(target, t, v, true).(*compiler.ExprStmt)
	s.push(st.X, t)
}

func (s *sim) binary(op compiler.BinaryOp, l, r compiler.Expr) {
	lt, rt := s.typeOf(l), s.typeOf(r)
	t := bytecode.TypeBool
	if op.IsArithmetic() {
		switch {
		case lt == bytecode.TypeFloat || rt == bytecode.TypeFloat:
			t = bytecode.TypeFloat
		case lt == bytecode.TypeString:
			t = bytecode.TypeString
		default:
			t = bytecode.TypeInt
		}
	}
	// (x += 1) - 1 is x++ used as a value.
	if u, ok := l.(*compiler.Unary); ok && isOne(r) {
		switch {
		case op == compiler.BinarySub && u.Op == compiler.UnaryPreInc:
			s.push(&compiler.Unary{Op: compiler.UnaryPostInc, Operand: u.Operand}, t)
			return
		case op == compiler.BinaryAdd && u.Op == compiler.UnaryPreDec:
			s.push(&compiler.Unary{Op: compiler.UnaryPostDec, Operand: u.Operand}, t)
			return
		}
	}
	s.push(&compiler.Binary{Op: op, Left: l, Right: r}, t)
}

// logical folds a short-circuit region. The to-bool conversions the
// compiler inserts for non-bool operands are dropped.
func (s *sim) logical(l *logical) {
	left := s.pop()
	sub := &sim{pd: s.pd}
	sub.run(l.right)
	right := sub.stack[0]
	op := compiler.BinaryAnd
	if l.or {
		op = compiler.BinaryOr
	}
	s.push(&compiler.Binary{Op: op, Left: s.pd.unbool(left), Right: s.pd.unbool(right)}, bytecode.TypeBool)
}

func (pd *procDecompiler) unbool(e compiler.Expr) compiler.Expr {
	if c, ok := e.(*compiler.Cast); ok && c.Type == bytecode.TypeBool && pd.types[c.Operand] != bytecode.TypeBool {
		return c.Operand
	}
	return e
}

// prettyAssign renders target = v as the shortest equivalent form:
// x++ or x-- for statements, ++x or --x for values, and x op= e.
func (pd *procDecompiler) prettyAssign(target *compiler.Identifier, t bytecode.Type, v compiler.Expr, value bool) compiler.Stmt {
	if b, ok := v.(*compiler.Binary); ok && b.Op.IsArithmetic() {
		if id, ok := b.Left.(*compiler.Identifier); ok && id.Name == target.Name {
			if isOne(b.Right) && pd.types[b.Right] == t && (b.Op == compiler.BinaryAdd || b.Op == compiler.BinarySub) {
				op := compiler.UnaryPostInc
				switch {
				case value && b.Op == compiler.BinaryAdd:
					op = compiler.UnaryPreInc
				case value:
					op = compiler.UnaryPreDec
				case b.Op == compiler.BinarySub:
					op = compiler.UnaryPostDec
				}
				return &compiler.ExprStmt{X: &compiler.Unary{Op: op, Operand: target}}
			}
			return &compiler.ExprStmt{X: &compiler.Assign{Op: compoundOps[b.Op], Target: target, Value: b.Right}}
		}
	}
	return assignStmt(target, v)
}

var compoundOps = map[compiler.BinaryOp]compiler.AssignOp{
	compiler.BinaryAdd: compiler.AssignAdd,
	compiler.BinarySub: compiler.AssignSub,
	compiler.BinaryMul: compiler.AssignMul,
	compiler.BinaryDiv: compiler.AssignDiv,
	compiler.BinaryMod: compiler.AssignMod,
}

func assignStmt(target *compiler.Identifier, v compiler.Expr) compiler.Stmt {
	return &compiler.ExprStmt{X: &compiler.Assign{Op: compiler.AssignSet, Target: target, Value: v}}
}

func isOne(e compiler.Expr) bool {
	switch e := e.(type) {
	case *compiler.IntLiteral:
		return e.Value == 1
	case *compiler.FloatLiteral:
		return e.Value == 1
	}
	return false
}

// negate returns the logical negation of e, removing a double negation.
func negate(e compiler.Expr) compiler.Expr {
	if u, ok := e.(*compiler.Unary); ok && u.Op == compiler.UnaryNot {
		return u.Operand
	}
	return &compiler.Unary{Op: compiler.UnaryNot, Operand: e}
}
