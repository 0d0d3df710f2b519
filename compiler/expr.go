package compiler

import (
	"math"

	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Expression code generation
// ---------------------------------------------------------------------------

var binaryOpcodes = map[BinaryOp]bytecode.Opcode{
	BinaryAdd: bytecode.OpAdd,
	BinarySub: bytecode.OpSub,
	BinaryMul: bytecode.OpMul,
	BinaryDiv: bytecode.OpDiv,
	BinaryMod: bytecode.OpMod,
	BinaryLt:  bytecode.OpLt,
	BinaryLe:  bytecode.OpLe,
	BinaryGt:  bytecode.OpGt,
	BinaryGe:  bytecode.OpGe,
	BinaryEq:  bytecode.OpEq,
	BinaryNe:  bytecode.OpNe,
}

var conversionOpcodes = map[bytecode.Type]bytecode.Opcode{
	bytecode.TypeInt:   bytecode.OpToInt,
	bytecode.TypeFloat: bytecode.OpToFloat,
	bytecode.TypeBool:  bytecode.OpToBool,
}

func (g *generator) typeOf(e Expr) bytecode.Type {
	if t, ok := g.info.Types[e]; ok {
		return t
	}
	return bytecode.TypeInt
}

func (g *generator) op(op bytecode.Opcode) {
	g.out.emit(bytecode.Instruction{Op: op})
}

// coerce converts the value on top of the stack between int and float.
func (g *generator) coerce(from, to bytecode.Type) {
	if from == to || !from.IsNumeric() || !to.IsNumeric() {
		return
	}
	g.op(conversionOpcodes[to])
}

// exprTo generates e and converts the result to want.
func (g *generator) exprTo(e Expr, want bytecode.Type) {
	g.coerce(g.expr(e), want)
}

func (g *generator) pushConst(v bytecode.Value) {
	switch v.Type {
	case bytecode.TypeInt:
		g.out.emit(bytecode.PushInt(v.I))
	case bytecode.TypeFloat:
		g.out.emit(bytecode.PushFloat(v.F))
	case bytecode.TypeBool:
		g.out.emit(bytecode.PushBool(v.B))
	case bytecode.TypeString:
		g.out.emit(bytecode.NewInstruction(bytecode.OpPushString, g.module.Strings.Add(v.S)))
	}
}

// encodeConst returns the variable-table encoding of v.
func (g *generator) encodeConst(v bytecode.Value) uint32 {
	switch v.Type {
	case bytecode.TypeInt:
		return uint32(v.I)
	case bytecode.TypeFloat:
		return math.Float32bits(v.F)
	case bytecode.TypeBool:
		if v.B {
			return 1
		}
	case bytecode.TypeString:
		return g.module.Strings.Add(v.S)
	}
	return 0
}

func (g *generator) load(sym *Symbol) {
	g.out.emit(bytecode.NewInstruction(sym.Scope.LoadOp(), uint32(sym.Slot)))
}

func (g *generator) store(sym *Symbol) {
	g.out.emit(bytecode.NewInstruction(sym.Scope.StoreOp(), uint32(sym.Slot)))
}

// one pushes the increment step for a variable of type t.
func (g *generator) one(t bytecode.Type) {
	if t == bytecode.TypeFloat {
		g.out.emit(bytecode.PushFloat(1))
		return
	}
	g.out.emit(bytecode.PushInt(1))
}

// exprStmt generates an expression whose value is discarded. Assignments
// and increments skip the dup; everything else pops its result.
func (g *generator) exprStmt(e Expr) {
	switch e := e.(type) {
	case *Assign:
		g.assign(e, false)
		return
	case *Unary:
		if e.Op == UnaryPreInc || e.Op == UnaryPostInc || e.Op == UnaryPreDec || e.Op == UnaryPostDec {
			g.increment(e, false)
			return
		}
	}
	g.expr(e)
	g.op(bytecode.OpPop)
}

// expr generates e, leaving exactly one value on the stack, and returns
// its static type.
func (g *generator) expr(e Expr) bytecode.Type {
	t := g.typeOf(e)
	switch e := e.(type) {
	case *IntLiteral:
		g.out.emit(bytecode.PushInt(e.Value))
	case *FloatLiteral:
		g.out.emit(bytecode.PushFloat(e.Value))
	case *BoolLiteral:
		g.out.emit(bytecode.PushBool(e.Value))
	case *StringLiteral:
		g.pushConst(bytecode.StringValue(e.Value))
	case *Identifier:
		g.load(g.info.Refs[e])
	case *MemberAccess:
		g.out.emit(bytecode.PushInt(g.info.Refs[e].Value))
	case *Call:
		g.call(e)
	case *Unary:
		switch e.Op {
		case UnaryNeg:
			g.expr(e.Operand)
			g.op(bytecode.OpNeg)
		case UnaryNot:
			g.expr(e.Operand)
			g.op(bytecode.OpNot)
		default:
			g.increment(e, true)
		}
	case *Binary:
		g.binary(e)
	case *Assign:
		g.assign(e, true)
	case *Cast:
		g.expr(e.Operand)
		g.op(conversionOpcodes[e.Type])
	default:
		g.errs.add(ErrUnsupportedConstruct, e.Span().Start, "cannot generate %s", nodeName(e))
	}
	return t
}

func (g *generator) call(e *Call) {
	sym := g.info.Refs[e]
	for i, a := range e.Args {
		g.exprTo(a, sym.Params[i])
	}
	op := bytecode.OpCallProc
	if sym.Kind == SymFunction {
		op = bytecode.OpCallFunc
	}
	g.out.emit(bytecode.Instruction{Op: op, Aux: uint16(len(e.Args)), Operand: uint32(sym.Slot)})
}

func (g *generator) binary(e *Binary) {
	if e.Op.IsLogical() {
		g.logical(e)
		return
	}
	lt, rt := g.typeOf(e.Left), g.typeOf(e.Right)
	operand := lt
	if lt.IsNumeric() && rt.IsNumeric() {
		operand = numericResult(lt, rt)
	}
	g.exprTo(e.Left, operand)
	g.exprTo(e.Right, operand)
	g.op(binaryOpcodes[e.Op])
}

// logical generates a short-circuit && or ||:
//
//	A; [to-bool]; dup; jump-if-false/true L; pop; B; [to-bool]; L:
func (g *generator) logical(e *Binary) {
	jump := bytecode.OpJumpIfFalse
	if e.Op == BinaryOr {
		jump = bytecode.OpJumpIfTrue
	}
	end := g.out.newLabel("", e.SpanVal.End)
	g.boolExpr(e.Left)
	g.op(bytecode.OpDup)
	g.out.jump(jump, end)
	g.op(bytecode.OpPop)
	g.boolExpr(e.Right)
	g.out.mark(end)
}

func (g *generator) boolExpr(e Expr) {
	if g.expr(e) != bytecode.TypeBool {
		g.op(bytecode.OpToBool)
	}
}

// assign generates x = e or x op= e. With keep set the stored value is
// also left on the stack.
func (g *generator) assign(e *Assign, keep bool) {
	sym := g.info.Refs[e.Target]
	op, compound := e.Op.Binary()
	if !compound {
		g.exprTo(e.Value, sym.Type)
	} else {
		vt := g.typeOf(e.Value)
		operand := sym.Type
		if sym.Type.IsNumeric() && vt.IsNumeric() {
			operand = numericResult(sym.Type, vt)
		}
		g.load(sym)
		g.coerce(sym.Type, operand)
		g.exprTo(e.Value, operand)
		g.op(binaryOpcodes[op])
		g.coerce(operand, sym.Type)
	}
	if keep {
		g.op(bytecode.OpDup)
	}
	g.store(sym)
}

// increment generates ++ and --. As a statement every form is x += 1.
// Prefix forms yield the new value; postfix forms yield the new value
// minus the step.
func (g *generator) increment(e *Unary, keep bool) {
	sym := g.info.Refs[e.Operand]
	step, undo := bytecode.OpAdd, bytecode.OpSub
	if e.Op == UnaryPreDec || e.Op == UnaryPostDec {
		step, undo = bytecode.OpSub, bytecode.OpAdd
	}
	g.load(sym)
	g.one(sym.Type)
	g.op(step)
	if keep {
		g.op(bytecode.OpDup)
	}
	g.store(sym)
	if keep && (e.Op == UnaryPostInc || e.Op == UnaryPostDec) {
		g.one(sym.Type)
		g.op(undo)
	}
}
