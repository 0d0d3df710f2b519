package compiler

import (
	"fmt"

	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Resolver: scopes, slots and types
// ---------------------------------------------------------------------------

// SymbolKind classifies a resolved name.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymProcedure
	SymLabel
	SymEnumConstant
)

func (k SymbolKind) String() string {
	switch k {
	case SymVariable:
		return "variable"
	case SymFunction:
		return "function"
	case SymProcedure:
		return "procedure"
	case SymLabel:
		return "label"
	case SymEnumConstant:
		return "enum constant"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is a resolved declaration.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Scope  bytecode.Scope  // variables only
	Type   bytecode.Type   // variable type, or return type of callables
	Slot   int             // variable slot, procedure index or function index
	Value  int32           // enum constants
	Params []bytecode.Type // callables
	Table  uint16          // functions
	Index  uint16          // functions
	Init   bytecode.Value  // initial value of statics and globals
	Pos    Position

	param bool
	used  bool
}

// ProcInfo is the resolved frame layout of one procedure.
type ProcInfo struct {
	Decl   *ProcedureDecl
	Symbol *Symbol
	Locals []bytecode.Type    // parameters first
	Temps  map[*Switch]int    // hidden scrutinee slots
	Labels map[string]*Symbol // procedure-scoped labels
}

// Info is the resolver's output: the symbol table plus per-expression types.
type Info struct {
	Types      map[Expr]bytecode.Type
	Consts     map[Expr]bytecode.Value // case label values
	Refs       map[Node]*Symbol
	Procedures []*ProcInfo
	Functions  []*Symbol
	Globals    []*Symbol
	Statics    []*Symbol
}

// typeInvalid marks an expression whose type could not be determined; it
// suppresses follow-on diagnostics.
const typeInvalid = bytecode.Type(0xFF)

type resolver struct {
	lib    FunctionResolver
	errs   ErrorList
	warns  []Warning
	info   *Info
	enums  map[string]map[string]*Symbol
	scopes []map[string]*Symbol
	proc   *ProcInfo
	locals []*Symbol // non-parameter locals of the current procedure
}

// Resolve builds the symbol table for unit. Errors are accumulated; a
// non-nil error means the unit must not be lowered.
func Resolve(unit *CompilationUnit, lib FunctionResolver) (*Info, []Warning, error) {
	r := &resolver{
		lib: lib,
		info: &Info{
			Types:  make(map[Expr]bytecode.Type),
			Consts: make(map[Expr]bytecode.Value),
			Refs:  make(map[Node]*Symbol),
		},
		enums:  make(map[string]map[string]*Symbol),
		scopes: []map[string]*Symbol{make(map[string]*Symbol)},
	}
	r.collect(unit)
	for _, d := range unit.Decls {
		if p, ok := d.(*ProcedureDecl); ok {
			r.resolveProcedure(p)
		}
	}
	if err := r.errs.Err(); err != nil {
		return nil, r.warns, err
	}
	return r.info, r.warns, nil
}

func (r *resolver) errorAt(kind error, n Node, format string, args ...any) {
	r.errs.add(kind, n.Span().Start, format, args...)
}

func (r *resolver) warnAt(n Node, format string, args ...any) {
	r.warns = append(r.warns, Warning{Pos: n.Span().Start, Msg: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (r *resolver) pushScope() {
	r.scopes = append(r.scopes, make(map[string]*Symbol))
}

func (r *resolver) popScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// declare binds sym in the innermost scope.
func (r *resolver) declare(n Node, sym *Symbol) bool {
	scope := r.scopes[len(r.scopes)-1]
	if prev, ok := scope[sym.Name]; ok {
		r.errorAt(ErrDuplicateDeclaration, n, "%s already declared as %s at line %d", sym.Name, prev.Kind, prev.Pos.Line)
		return false
	}
	scope[sym.Name] = sym
	return true
}

// lookup finds name innermost-first.
func (r *resolver) lookup(name string) *Symbol {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if sym, ok := r.scopes[i][name]; ok {
			return sym
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pass one: top-level declarations
// ---------------------------------------------------------------------------

func (r *resolver) collect(unit *CompilationUnit) {
	// Enums first so global initializers may use them.
	for _, d := range unit.Decls {
		if e, ok := d.(*EnumDecl); ok {
			r.collectEnum(e)
		}
	}

	for _, d := range unit.Decls {
		switch d := d.(type) {
		case *EnumDecl:
		case *FunctionDecl:
			r.declareFunction(d, FunctionSignature{
				Name:       d.Name,
				Table:      d.Table,
				Index:      d.Index,
				ReturnType: d.ReturnType,
				Params:     paramTypes(d.Params),
			})
		case *ProcedureDecl:
			sym := &Symbol{
				Name:   d.Name,
				Kind:   SymProcedure,
				Type:   d.ReturnType,
				Slot:   len(r.info.Procedures),
				Params: paramTypes(d.Params),
				Pos:    d.SpanVal.Start,
			}
			if len(d.Params) > 255 {
				r.errorAt(ErrUnsupportedConstruct, d, "procedure %s has %d parameters", d.Name, len(d.Params))
			}
			if r.declare(d, sym) {
				r.info.Refs[d] = sym
				r.info.Procedures = append(r.info.Procedures, &ProcInfo{
					Decl:   d,
					Symbol: sym,
					Temps:  make(map[*Switch]int),
					Labels: make(map[string]*Symbol),
				})
			}
		case *VarDecl:
			scope := bytecode.ScopeGlobal
			if d.Storage == StorageStatic {
				scope = bytecode.ScopeStatic
			}
			r.declareStorage(d, scope)
		default:
			r.errorAt(ErrUnsupportedConstruct, d, "%s is not allowed at top level", nodeName(d))
		}
	}
}

func paramTypes(ps []*Param) []bytecode.Type {
	types := make([]bytecode.Type, len(ps))
	for i, p := range ps {
		types[i] = p.Type
	}
	return types
}

func (r *resolver) declareFunction(n Node, sig FunctionSignature) *Symbol {
	sym := &Symbol{
		Name:   sig.Name,
		Kind:   SymFunction,
		Type:   sig.ReturnType,
		Slot:   len(r.info.Functions),
		Params: sig.Params,
		Table:  sig.Table,
		Index:  sig.Index,
		Pos:    n.Span().Start,
	}
	if len(sig.Params) > 255 {
		r.errorAt(ErrUnsupportedConstruct, n, "function %s has %d parameters", sig.Name, len(sig.Params))
	}
	if !r.declare(n, sym) {
		return nil
	}
	r.info.Functions = append(r.info.Functions, sym)
	return sym
}

func (r *resolver) collectEnum(d *EnumDecl) {
	if _, dup := r.enums[d.Name]; dup {
		r.errorAt(ErrDuplicateDeclaration, d, "enum %s already declared", d.Name)
		return
	}
	members := make(map[string]*Symbol)
	r.enums[d.Name] = members
	next := int32(0)
	for _, m := range d.Members {
		if _, dup := members[m.Name]; dup {
			r.errorAt(ErrDuplicateDeclaration, m, "enum member %s.%s already declared", d.Name, m.Name)
			continue
		}
		if m.Value != nil {
			v, ok := r.constValue(m.Value)
			switch {
			case !ok:
				r.errorAt(ErrUnsupportedConstruct, m, "value of %s.%s must be constant", d.Name, m.Name)
			case v.Type != bytecode.TypeInt:
				r.errorAt(ErrTypeMismatch, m, "value of %s.%s is %s, want int", d.Name, m.Name, v.Type)
			default:
				next = v.I
			}
		}
		members[m.Name] = &Symbol{
			Name:  d.Name + "." + m.Name,
			Kind:  SymEnumConstant,
			Type:  bytecode.TypeInt,
			Value: next,
			Pos:   m.SpanVal.Start,
		}
		next++
	}
}

// declareStorage allocates a static or global slot with its initial value.
func (r *resolver) declareStorage(d *VarDecl, scope bytecode.Scope) {
	sym := &Symbol{
		Name:  d.Name,
		Kind:  SymVariable,
		Scope: scope,
		Type:  d.Type,
		Init:  bytecode.ZeroValue(d.Type),
		Pos:   d.SpanVal.Start,
		used:  true,
	}
	if scope == bytecode.ScopeStatic {
		sym.Slot = len(r.info.Statics)
	} else {
		sym.Slot = len(r.info.Globals)
	}

	if d.Init != nil {
		v, ok := r.constValue(d.Init)
		if !ok {
			r.errorAt(ErrUnsupportedConstruct, d.Init, "initializer of %s %s must be constant", scope, d.Name)
		} else if conv, ok := convertConst(v, d.Type); ok {
			sym.Init = conv
		} else {
			r.errorAt(ErrTypeMismatch, d.Init, "cannot initialize %s %s with %s", d.Type, d.Name, v.Type)
		}
	}

	if !r.declare(d, sym) {
		return
	}
	r.info.Refs[d] = sym
	if scope == bytecode.ScopeStatic {
		r.info.Statics = append(r.info.Statics, sym)
	} else {
		r.info.Globals = append(r.info.Globals, sym)
	}
}

// ---------------------------------------------------------------------------
// Pass two: procedure bodies
// ---------------------------------------------------------------------------

func (r *resolver) resolveProcedure(d *ProcedureDecl) {
	sym, ok := r.info.Refs[d]
	if !ok {
		return // duplicate, already reported
	}
	r.proc = r.info.Procedures[sym.Slot]
	r.locals = nil

	r.pushScope()
	for _, p := range d.Params {
		if p.Type == bytecode.TypeVoid {
			r.errorAt(ErrTypeMismatch, p, "parameter %s declared void", p.Name)
		}
		ps := &Symbol{
			Name:  p.Name,
			Kind:  SymVariable,
			Scope: bytecode.ScopeLocal,
			Type:  p.Type,
			Slot:  len(r.proc.Locals),
			Pos:   p.SpanVal.Start,
			param: true,
		}
		if r.declare(p, ps) {
			r.info.Refs[p] = ps
		}
		r.proc.Locals = append(r.proc.Locals, p.Type)
	}

	r.collectLabels(d.Body)
	// The body shares the parameters' scope.
	r.resolveStmts(d.Body.Stmts)
	r.popScope()

	for _, l := range r.locals {
		if !l.used {
			r.warns = append(r.warns, Warning{Pos: l.Pos, Msg: fmt.Sprintf("local variable %s declared but not used", l.Name)})
		}
	}
	if len(r.proc.Locals) > 0xFFFF {
		r.errorAt(ErrUnsupportedConstruct, d, "procedure %s needs %d local slots", d.Name, len(r.proc.Locals))
	}
	r.proc = nil
}

// collectLabels records every label of a procedure body so gotos may
// reference labels defined later.
func (r *resolver) collectLabels(body Stmt) {
	walkStmts(body, func(s Stmt) {
		l, ok := s.(*LabelStmt)
		if !ok {
			return
		}
		if prev, dup := r.proc.Labels[l.Name]; dup {
			r.errorAt(ErrDuplicateDeclaration, l, "label %s already defined at line %d", l.Name, prev.Pos.Line)
			return
		}
		sym := &Symbol{Name: l.Name, Kind: SymLabel, Pos: l.SpanVal.Start}
		r.proc.Labels[l.Name] = sym
		r.info.Refs[l] = sym
	})
}

// walkStmts calls fn for s and every statement nested inside it.
func walkStmts(s Stmt, fn func(Stmt)) {
	if s == nil {
		return
	}
	fn(s)
	switch s := s.(type) {
	case *Block:
		for _, c := range s.Stmts {
			walkStmts(c, fn)
		}
	case *If:
		walkStmts(s.Then, fn)
		walkStmts(s.Else, fn)
	case *While:
		walkStmts(s.Body, fn)
	case *For:
		walkStmts(s.Init, fn)
		walkStmts(s.Body, fn)
	case *Switch:
		for _, sec := range s.Sections {
			for _, c := range sec.Body {
				walkStmts(c, fn)
			}
		}
	}
}

// terminates reports whether control never falls through s.
func terminates(s Stmt) bool {
	switch s.(type) {
	case *Return, *Break, *Continue, *Goto:
		return true
	}
	return false
}

func (r *resolver) resolveStmts(stmts []Stmt) {
	dead := false
	for _, s := range stmts {
		if _, isLabel := s.(*LabelStmt); isLabel {
			dead = false
		} else if dead {
			r.warnAt(s, "unreachable code")
			dead = false
		}
		r.resolveStmt(s)
		if terminates(s) {
			dead = true
		}
	}
}

// scoped resolves a branch or loop body in its own scope.
func (r *resolver) scoped(s Stmt) {
	r.pushScope()
	r.resolveStmt(s)
	r.popScope()
}

func (r *resolver) resolveStmt(s Stmt) {
	switch s := s.(type) {
	case *NullStmt, *Break, *Continue, *Goto, *LabelStmt:
	case *Block:
		r.pushScope()
		r.resolveStmts(s.Stmts)
		r.popScope()
	case *ExprStmt:
		r.expr(s.X)
	case *VarDecl:
		r.resolveVarDecl(s)
	case *If:
		r.condition(s.Cond)
		r.scoped(s.Then)
		if s.Else != nil {
			r.scoped(s.Else)
		}
	case *While:
		r.condition(s.Cond)
		r.scoped(s.Body)
	case *For:
		r.pushScope()
		switch init := s.Init.(type) {
		case nil:
		case *VarDecl:
			r.resolveVarDecl(init)
		case *ExprStmt:
			r.expr(init.X)
		default:
			r.errorAt(ErrUnsupportedConstruct, init, "%s in for initializer", nodeName(init))
		}
		if s.Cond != nil {
			r.condition(s.Cond)
		}
		if s.Step != nil {
			r.expr(s.Step)
		}
		r.scoped(s.Body)
		r.popScope()
	case *Switch:
		r.resolveSwitch(s)
	case *Return:
		r.resolveReturn(s)
	default:
		r.errorAt(ErrUnsupportedConstruct, s, "%s inside a procedure", nodeName(s))
	}
}

func (r *resolver) resolveVarDecl(d *VarDecl) {
	if d.Type == bytecode.TypeVoid {
		r.errorAt(ErrTypeMismatch, d, "variable %s declared void", d.Name)
		return
	}
	switch d.Storage {
	case StorageStatic:
		r.declareStorage(d, bytecode.ScopeStatic)
		return
	case StorageGlobal:
		r.declareStorage(d, bytecode.ScopeGlobal)
		return
	}

	if d.Init != nil {
		t := r.valueExpr(d.Init)
		r.checkAssignable(d.Init, d.Type, t, "initialize "+d.Name)
	}
	sym := &Symbol{
		Name:  d.Name,
		Kind:  SymVariable,
		Scope: bytecode.ScopeLocal,
		Type:  d.Type,
		Slot:  len(r.proc.Locals),
		Pos:   d.SpanVal.Start,
	}
	r.proc.Locals = append(r.proc.Locals, d.Type)
	if r.declare(d, sym) {
		r.info.Refs[d] = sym
		r.locals = append(r.locals, sym)
	}
}

func (r *resolver) resolveSwitch(s *Switch) {
	tag := r.valueExpr(s.Tag)
	r.proc.Temps[s] = len(r.proc.Locals)
	if tag == typeInvalid {
		r.proc.Locals = append(r.proc.Locals, bytecode.TypeInt)
	} else {
		r.proc.Locals = append(r.proc.Locals, tag)
	}

	seen := make(map[bytecode.Value]bool)
	hasDefault := false
	r.pushScope()
	for _, sec := range s.Sections {
		for _, l := range sec.Labels {
			if l.IsDefault() {
				if hasDefault {
					r.errorAt(ErrDuplicateDeclaration, l, "multiple default labels in switch")
				}
				hasDefault = true
				continue
			}
			t := r.valueExpr(l.Value)
			v, ok := r.constValue(l.Value)
			if !ok {
				r.errorAt(ErrUnsupportedConstruct, l, "case value must be constant")
				continue
			}
			if !comparable(tag, t) {
				r.errorAt(ErrTypeMismatch, l, "case value of type %s in switch on %s", t, tag)
				continue
			}
			if seen[v] {
				r.errorAt(ErrDuplicateDeclaration, l, "duplicate case %s", v)
			}
			seen[v] = true
			r.info.Consts[l.Value] = v
		}
		r.resolveStmts(sec.Body)
	}
	r.popScope()
}

func (r *resolver) resolveReturn(s *Return) {
	want := r.proc.Symbol.Type
	if s.Value == nil {
		if want != bytecode.TypeVoid {
			r.errorAt(ErrInvalidControlFlow, s, "%s must return a %s value", r.proc.Symbol.Name, want)
		}
		return
	}
	t := r.valueExpr(s.Value)
	if want == bytecode.TypeVoid {
		r.errorAt(ErrInvalidControlFlow, s, "void procedure %s returns a value", r.proc.Symbol.Name)
		return
	}
	r.checkAssignable(s.Value, want, t, "return from "+r.proc.Symbol.Name)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// condition resolves a branch or loop condition.
func (r *resolver) condition(e Expr) {
	t := r.valueExpr(e)
	if t != typeInvalid && !isTestable(t) {
		r.errorAt(ErrTypeMismatch, e, "condition has type %s", t)
	}
}

// valueExpr resolves e and rejects void results.
func (r *resolver) valueExpr(e Expr) bytecode.Type {
	t := r.expr(e)
	if t == bytecode.TypeVoid {
		r.errorAt(ErrTypeMismatch, e, "void value used in expression")
		t = typeInvalid
		r.info.Types[e] = t
	}
	return t
}

func (r *resolver) expr(e Expr) bytecode.Type {
	t := r.exprType(e)
	r.info.Types[e] = t
	return t
}

func (r *resolver) exprType(e Expr) bytecode.Type {
	switch e := e.(type) {
	case *IntLiteral:
		return bytecode.TypeInt
	case *FloatLiteral:
		return bytecode.TypeFloat
	case *BoolLiteral:
		return bytecode.TypeBool
	case *StringLiteral:
		return bytecode.TypeString

	case *Identifier:
		sym := r.lookup(e.Name)
		if sym == nil {
			r.errorAt(ErrUndeclaredIdentifier, e, "%s", e.Name)
			return typeInvalid
		}
		if sym.Kind != SymVariable {
			r.errorAt(ErrTypeMismatch, e, "%s %s used as a value", sym.Kind, e.Name)
			return typeInvalid
		}
		sym.used = true
		r.info.Refs[e] = sym
		return sym.Type

	case *MemberAccess:
		sym := r.enums[e.Enum][e.Member]
		if sym == nil {
			r.errorAt(ErrUndeclaredIdentifier, e, "%s.%s", e.Enum, e.Member)
			return typeInvalid
		}
		r.info.Refs[e] = sym
		return bytecode.TypeInt

	case *Call:
		return r.resolveCall(e)

	case *Unary:
		return r.resolveUnary(e)

	case *Binary:
		return r.resolveBinary(e)

	case *Assign:
		sym := r.assignTarget(e.Target)
		vt := r.valueExpr(e.Value)
		if sym == nil || vt == typeInvalid {
			return typeInvalid
		}
		if op, compound := e.Op.Binary(); compound {
			if _, ok := arithmeticType(op, sym.Type, vt); !ok {
				r.errorAt(ErrTypeMismatch, e, "%s %s %s", sym.Type, e.Op, vt)
				return typeInvalid
			}
		} else {
			r.checkAssignable(e.Value, sym.Type, vt, "assign to "+sym.Name)
		}
		return sym.Type

	case *Cast:
		t := r.valueExpr(e.Operand)
		switch e.Type {
		case bytecode.TypeInt, bytecode.TypeFloat, bytecode.TypeBool:
		default:
			r.errorAt(ErrUnsupportedConstruct, e, "cast to %s", e.Type)
			return typeInvalid
		}
		if t != typeInvalid && !t.IsNumeric() && t != bytecode.TypeBool {
			r.errorAt(ErrTypeMismatch, e, "cannot cast %s to %s", t, e.Type)
			return typeInvalid
		}
		return e.Type
	}

	r.errorAt(ErrUnsupportedConstruct, e, "%s expression", nodeName(e))
	return typeInvalid
}

func (r *resolver) resolveCall(e *Call) bytecode.Type {
	sym := r.lookup(e.Name)
	if sym == nil && r.lib != nil {
		if sig, ok := r.lib.LookupName(e.Name); ok {
			// Library functions are imported on first use.
			sym = r.declareFunctionGlobal(e, sig)
		}
	}
	for _, a := range e.Args {
		r.valueExpr(a)
	}
	if sym == nil {
		r.errorAt(ErrUndeclaredIdentifier, e, "%s", e.Name)
		return typeInvalid
	}
	if sym.Kind != SymProcedure && sym.Kind != SymFunction {
		r.errorAt(ErrTypeMismatch, e, "%s %s is not callable", sym.Kind, e.Name)
		return typeInvalid
	}
	r.info.Refs[e] = sym
	if len(e.Args) != len(sym.Params) {
		r.errorAt(ErrTypeMismatch, e, "%s takes %d arguments, got %d", e.Name, len(sym.Params), len(e.Args))
		return sym.Type
	}
	for i, a := range e.Args {
		r.checkAssignable(a, sym.Params[i], r.info.Types[a], fmt.Sprintf("pass argument %d of %s", i+1, e.Name))
	}
	return sym.Type
}

// declareFunctionGlobal imports a library function into the outermost scope.
func (r *resolver) declareFunctionGlobal(n Node, sig FunctionSignature) *Symbol {
	saved := r.scopes
	r.scopes = r.scopes[:1]
	sym := r.declareFunction(n, sig)
	r.scopes = saved
	return sym
}

func (r *resolver) resolveUnary(e *Unary) bytecode.Type {
	switch e.Op {
	case UnaryNeg:
		t := r.valueExpr(e.Operand)
		if t != typeInvalid && !t.IsNumeric() {
			r.errorAt(ErrTypeMismatch, e, "cannot negate %s", t)
			return typeInvalid
		}
		return t
	case UnaryNot:
		t := r.valueExpr(e.Operand)
		if t != typeInvalid && !isTestable(t) {
			r.errorAt(ErrTypeMismatch, e, "cannot apply ! to %s", t)
			return typeInvalid
		}
		return bytecode.TypeBool
	}

	// Increment and decrement.
	id, ok := e.Operand.(*Identifier)
	if !ok {
		r.expr(e.Operand)
		r.errorAt(ErrUnsupportedConstruct, e, "increment of a non-variable")
		return typeInvalid
	}
	sym := r.assignTarget(id)
	if sym == nil {
		return typeInvalid
	}
	r.info.Types[id] = sym.Type
	if !sym.Type.IsNumeric() {
		r.errorAt(ErrTypeMismatch, e, "cannot increment %s %s", sym.Type, sym.Name)
		return typeInvalid
	}
	return sym.Type
}

func (r *resolver) resolveBinary(e *Binary) bytecode.Type {
	lt := r.valueExpr(e.Left)
	rt := r.valueExpr(e.Right)
	if lt == typeInvalid || rt == typeInvalid {
		return typeInvalid
	}
	switch {
	case e.Op.IsLogical():
		if !isTestable(lt) || !isTestable(rt) {
			r.errorAt(ErrTypeMismatch, e, "%s %s %s", lt, e.Op, rt)
			return typeInvalid
		}
		return bytecode.TypeBool
	case e.Op.IsArithmetic():
		t, ok := arithmeticType(e.Op, lt, rt)
		if !ok {
			r.errorAt(ErrTypeMismatch, e, "%s %s %s", lt, e.Op, rt)
			return typeInvalid
		}
		return t
	case e.Op.IsRelational():
		if !lt.IsNumeric() || !rt.IsNumeric() {
			r.errorAt(ErrTypeMismatch, e, "%s %s %s", lt, e.Op, rt)
			return typeInvalid
		}
		return bytecode.TypeBool
	default:
		if !comparable(lt, rt) {
			r.errorAt(ErrTypeMismatch, e, "%s %s %s", lt, e.Op, rt)
			return typeInvalid
		}
		return bytecode.TypeBool
	}
}

// assignTarget resolves the variable an assignment or increment writes.
func (r *resolver) assignTarget(id *Identifier) *Symbol {
	sym := r.lookup(id.Name)
	if sym == nil {
		r.errorAt(ErrUndeclaredIdentifier, id, "%s", id.Name)
		return nil
	}
	if sym.Kind != SymVariable {
		r.errorAt(ErrTypeMismatch, id, "cannot assign to %s %s", sym.Kind, id.Name)
		return nil
	}
	sym.used = true
	r.info.Refs[id] = sym
	r.info.Types[id] = sym.Type
	return sym
}

func (r *resolver) checkAssignable(n Node, dst, src bytecode.Type, what string) {
	if src == typeInvalid || dst == typeInvalid {
		return
	}
	if !assignable(dst, src) {
		r.errorAt(ErrTypeMismatch, n, "cannot %s: %s value where %s is expected", what, src, dst)
	}
}

// ---------------------------------------------------------------------------
// Type rules
// ---------------------------------------------------------------------------

// assignable reports whether a src value may be stored in a dst slot.
// Int and float convert implicitly; nothing else does.
func assignable(dst, src bytecode.Type) bool {
	return dst == src || (dst.IsNumeric() && src.IsNumeric())
}

// comparable reports whether == and != accept the operand types.
func comparable(a, b bytecode.Type) bool {
	if a == typeInvalid || b == typeInvalid {
		return true
	}
	return (a.IsNumeric() && b.IsNumeric()) || (a == b && a != bytecode.TypeVoid)
}

// isTestable reports whether t may be used as a condition.
func isTestable(t bytecode.Type) bool {
	return t == bytecode.TypeBool || t.IsNumeric()
}

// arithmeticType returns the result type of an arithmetic operator.
func arithmeticType(op BinaryOp, a, b bytecode.Type) (bytecode.Type, bool) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		return numericResult(a, b), true
	case op == BinaryAdd && a == bytecode.TypeString && b == bytecode.TypeString:
		return bytecode.TypeString, true
	}
	return typeInvalid, false
}

// numericResult is float when either operand is float.
func numericResult(a, b bytecode.Type) bytecode.Type {
	if a == bytecode.TypeFloat || b == bytecode.TypeFloat {
		return bytecode.TypeFloat
	}
	return bytecode.TypeInt
}

// ---------------------------------------------------------------------------
// Constant evaluation
// ---------------------------------------------------------------------------

// constValue evaluates a compile-time constant: literals, enum members,
// and unary, cast and integer arithmetic over constants.
func (r *resolver) constValue(e Expr) (bytecode.Value, bool) {
	switch e := e.(type) {
	case *IntLiteral:
		return bytecode.IntValue(e.Value), true
	case *FloatLiteral:
		return bytecode.FloatValue(e.Value), true
	case *BoolLiteral:
		return bytecode.BoolValue(e.Value), true
	case *StringLiteral:
		return bytecode.StringValue(e.Value), true
	case *MemberAccess:
		if sym := r.enums[e.Enum][e.Member]; sym != nil {
			return bytecode.IntValue(sym.Value), true
		}
	case *Unary:
		v, ok := r.constValue(e.Operand)
		if !ok {
			return v, false
		}
		switch {
		case e.Op == UnaryNeg && v.Type == bytecode.TypeInt:
			return bytecode.IntValue(-v.I), true
		case e.Op == UnaryNeg && v.Type == bytecode.TypeFloat:
			return bytecode.FloatValue(-v.F), true
		case e.Op == UnaryNot && v.Type == bytecode.TypeBool:
			return bytecode.BoolValue(!v.B), true
		}
	case *Cast:
		v, ok := r.constValue(e.Operand)
		if !ok || v.Type == bytecode.TypeString {
			return v, false
		}
		switch e.Type {
		case bytecode.TypeInt:
			return bytecode.IntValue(v.AsInt()), true
		case bytecode.TypeFloat:
			return bytecode.FloatValue(v.AsFloat()), true
		case bytecode.TypeBool:
			return bytecode.BoolValue(v.Truthy()), true
		}
	case *Binary:
		a, ok1 := r.constValue(e.Left)
		b, ok2 := r.constValue(e.Right)
		if !ok1 || !ok2 || a.Type != bytecode.TypeInt || b.Type != bytecode.TypeInt {
			return bytecode.Void, false
		}
		switch e.Op {
		case BinaryAdd:
			return bytecode.IntValue(a.I + b.I), true
		case BinarySub:
			return bytecode.IntValue(a.I - b.I), true
		case BinaryMul:
			return bytecode.IntValue(a.I * b.I), true
		case BinaryDiv:
			if b.I != 0 {
				return bytecode.IntValue(a.I / b.I), true
			}
		case BinaryMod:
			if b.I != 0 {
				return bytecode.IntValue(a.I % b.I), true
			}
		}
	}
	return bytecode.Void, false
}

// convertConst converts a constant to a declared type.
func convertConst(v bytecode.Value, t bytecode.Type) (bytecode.Value, bool) {
	if !assignable(t, v.Type) {
		return v, false
	}
	switch t {
	case bytecode.TypeInt:
		return bytecode.IntValue(v.AsInt()), true
	case bytecode.TypeFloat:
		return bytecode.FloatValue(v.AsFloat()), true
	}
	return v, true
}

// nodeName describes a node kind in diagnostics.
func nodeName(n Node) string {
	switch n.(type) {
	case *FunctionDecl:
		return "function declaration"
	case *ProcedureDecl:
		return "procedure declaration"
	case *EnumDecl:
		return "enum declaration"
	case *VarDecl:
		return "variable declaration"
	case *LabelStmt:
		return "label"
	}
	return fmt.Sprintf("%T", n)
}
