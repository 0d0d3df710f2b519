package compiler

import "github.com/chazu/flowscript/pkg/bytecode"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for FlowScript
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Stmt is the interface for statement and declaration nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int32
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float32
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

// Identifier represents a reference to a variable.
type Identifier struct {
	SpanVal Span
	Name    string
}

// MemberAccess represents Enum.Member.
type MemberAccess struct {
	SpanVal Span
	Enum    string
	Member  string
}

// Call represents a procedure or imported-function call.
type Call struct {
	SpanVal Span
	Name    string
	Args    []Expr
}

// UnaryOp is a prefix or postfix operator.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryPreInc
	UnaryPreDec
	UnaryPostInc
	UnaryPostDec
)

// Unary represents a prefix or postfix operator application.
type Unary struct {
	SpanVal Span
	Op      UnaryOp
	Operand Expr
}

// BinaryOp is an infix operator.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryLt
	BinaryLe
	BinaryGt
	BinaryGe
	BinaryEq
	BinaryNe
	BinaryAnd
	BinaryOr
)

var binaryOpText = [...]string{
	BinaryAdd: "+", BinarySub: "-", BinaryMul: "*", BinaryDiv: "/", BinaryMod: "%",
	BinaryLt: "<", BinaryLe: "<=", BinaryGt: ">", BinaryGe: ">=",
	BinaryEq: "==", BinaryNe: "!=", BinaryAnd: "&&", BinaryOr: "||",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// IsArithmetic reports whether op is + - * / or %.
func (op BinaryOp) IsArithmetic() bool { return op <= BinaryMod }

// IsRelational reports whether op is an ordering comparison.
func (op BinaryOp) IsRelational() bool { return op >= BinaryLt && op <= BinaryGe }

// IsEquality reports whether op is == or !=.
func (op BinaryOp) IsEquality() bool { return op == BinaryEq || op == BinaryNe }

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool { return op == BinaryAnd || op == BinaryOr }

// Binary represents an infix operator application.
type Binary struct {
	SpanVal Span
	Op      BinaryOp
	Left    Expr
	Right   Expr
}

// AssignOp is = or a compound assignment operator.
type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
)

// Binary returns the arithmetic operator of a compound assignment.
func (op AssignOp) Binary() (BinaryOp, bool) {
	switch op {
	case AssignAdd:
		return BinaryAdd, true
	case AssignSub:
		return BinarySub, true
	case AssignMul:
		return BinaryMul, true
	case AssignDiv:
		return BinaryDiv, true
	case AssignMod:
		return BinaryMod, true
	}
	return 0, false
}

func (op AssignOp) String() string {
	if b, ok := op.Binary(); ok {
		return b.String() + "="
	}
	return "="
}

// Assign represents an assignment expression.
type Assign struct {
	SpanVal Span
	Op      AssignOp
	Target  *Identifier
	Value   Expr
}

// Cast represents (int)x, (float)x or (bool)x.
type Cast struct {
	SpanVal Span
	Type    bytecode.Type
	Operand Expr
}

func (n *IntLiteral) Span() Span    { return n.SpanVal }
func (n *FloatLiteral) Span() Span  { return n.SpanVal }
func (n *BoolLiteral) Span() Span   { return n.SpanVal }
func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *Identifier) Span() Span    { return n.SpanVal }
func (n *MemberAccess) Span() Span  { return n.SpanVal }
func (n *Call) Span() Span          { return n.SpanVal }
func (n *Unary) Span() Span         { return n.SpanVal }
func (n *Binary) Span() Span        { return n.SpanVal }
func (n *Assign) Span() Span        { return n.SpanVal }
func (n *Cast) Span() Span          { return n.SpanVal }

func (n *IntLiteral) node()    {}
func (n *FloatLiteral) node()  {}
func (n *BoolLiteral) node()   {}
func (n *StringLiteral) node() {}
func (n *Identifier) node()    {}
func (n *MemberAccess) node()  {}
func (n *Call) node()          {}
func (n *Unary) node()         {}
func (n *Binary) node()        {}
func (n *Assign) node()        {}
func (n *Cast) node()          {}

func (n *IntLiteral) expr()    {}
func (n *FloatLiteral) expr()  {}
func (n *BoolLiteral) expr()   {}
func (n *StringLiteral) expr() {}
func (n *Identifier) expr()    {}
func (n *MemberAccess) expr()  {}
func (n *Call) expr()          {}
func (n *Unary) expr()         {}
func (n *Binary) expr()        {}
func (n *Assign) expr()        {}
func (n *Cast) expr()          {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// NullStmt is an empty statement (;).
type NullStmt struct {
	SpanVal Span
}

// Block is a compound statement.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

// If is a conditional statement. Else may be nil.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt
}

// While is a pre-tested loop.
type While struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

// For is a C-style loop. Init, Cond and Step may be nil; a nil Cond loops
// forever.
type For struct {
	SpanVal Span
	Init    Stmt // *VarDecl or *ExprStmt
	Cond    Expr
	Step    Expr
	Body    Stmt
}

// Switch dispatches on a scrutinee.
type Switch struct {
	SpanVal  Span
	Tag      Expr
	Sections []*SwitchSection
}

// SwitchSection is a run of case labels followed by statements.
type SwitchSection struct {
	SpanVal Span
	Labels  []*CaseLabel
	Body    []Stmt
}

// CaseLabel is case <value>: or default: when Value is nil.
type CaseLabel struct {
	SpanVal Span
	Value   Expr
}

// IsDefault reports whether the label is default:.
func (c *CaseLabel) IsDefault() bool { return c.Value == nil }

// Break exits the nearest loop or switch.
type Break struct {
	SpanVal Span
}

// Continue jumps to the continuation of the nearest loop.
type Continue struct {
	SpanVal Span
}

// Return leaves the current procedure. Value may be nil.
type Return struct {
	SpanVal Span
	Value   Expr
}

// Goto jumps to a label in the same procedure.
type Goto struct {
	SpanVal Span
	Label   string
}

// LabelStmt defines a goto target.
type LabelStmt struct {
	SpanVal Span
	Name    string
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Storage is the storage class written on a variable declaration.
type Storage int

const (
	StorageAuto   Storage = iota // local inside bodies, global at top level
	StorageStatic                // static
	StorageGlobal                // global
)

// VarDecl declares a variable. Init may be nil.
type VarDecl struct {
	SpanVal Span
	Storage Storage
	Type    bytecode.Type
	Name    string
	Init    Expr
}

// Param is a procedure or function parameter.
type Param struct {
	SpanVal Span
	Type    bytecode.Type
	Name    string
}

// FunctionDecl declares an imported host function:
// function(table, index) type NAME(params);
type FunctionDecl struct {
	SpanVal    Span
	Table      uint16
	Index      uint16
	ReturnType bytecode.Type
	Name       string
	Params     []*Param
}

// ProcedureDecl defines a procedure with a body.
type ProcedureDecl struct {
	SpanVal    Span
	ReturnType bytecode.Type
	Name       string
	Params     []*Param
	Body       *Block
}

// EnumDecl declares named integer constants.
type EnumDecl struct {
	SpanVal Span
	Name    string
	Members []*EnumMember
}

// EnumMember is one enum constant. Value may be nil.
type EnumMember struct {
	SpanVal Span
	Name    string
	Value   Expr
}

// Import names another source file.
type Import struct {
	SpanVal Span
	Path    string
}

// CompilationUnit is the root of a parsed source file.
type CompilationUnit struct {
	SpanVal Span
	Imports []*Import
	Decls   []Stmt
}

func (n *NullStmt) Span() Span        { return n.SpanVal }
func (n *Block) Span() Span           { return n.SpanVal }
func (n *ExprStmt) Span() Span        { return n.SpanVal }
func (n *If) Span() Span              { return n.SpanVal }
func (n *While) Span() Span           { return n.SpanVal }
func (n *For) Span() Span             { return n.SpanVal }
func (n *Switch) Span() Span          { return n.SpanVal }
func (n *SwitchSection) Span() Span   { return n.SpanVal }
func (n *CaseLabel) Span() Span       { return n.SpanVal }
func (n *Break) Span() Span           { return n.SpanVal }
func (n *Continue) Span() Span        { return n.SpanVal }
func (n *Return) Span() Span          { return n.SpanVal }
func (n *Goto) Span() Span            { return n.SpanVal }
func (n *LabelStmt) Span() Span       { return n.SpanVal }
func (n *VarDecl) Span() Span         { return n.SpanVal }
func (n *Param) Span() Span           { return n.SpanVal }
func (n *FunctionDecl) Span() Span    { return n.SpanVal }
func (n *ProcedureDecl) Span() Span   { return n.SpanVal }
func (n *EnumDecl) Span() Span        { return n.SpanVal }
func (n *EnumMember) Span() Span      { return n.SpanVal }
func (n *Import) Span() Span          { return n.SpanVal }
func (n *CompilationUnit) Span() Span { return n.SpanVal }

func (n *NullStmt) node()        {}
func (n *Block) node()           {}
func (n *ExprStmt) node()        {}
func (n *If) node()              {}
func (n *While) node()           {}
func (n *For) node()             {}
func (n *Switch) node()          {}
func (n *SwitchSection) node()   {}
func (n *CaseLabel) node()       {}
func (n *Break) node()           {}
func (n *Continue) node()        {}
func (n *Return) node()          {}
func (n *Goto) node()            {}
func (n *LabelStmt) node()       {}
func (n *VarDecl) node()         {}
func (n *Param) node()           {}
func (n *FunctionDecl) node()    {}
func (n *ProcedureDecl) node()   {}
func (n *EnumDecl) node()        {}
func (n *EnumMember) node()      {}
func (n *Import) node()          {}
func (n *CompilationUnit) node() {}

func (n *NullStmt) stmt()      {}
func (n *Block) stmt()         {}
func (n *ExprStmt) stmt()      {}
func (n *If) stmt()            {}
func (n *While) stmt()         {}
func (n *For) stmt()           {}
func (n *Switch) stmt()        {}
func (n *Break) stmt()         {}
func (n *Continue) stmt()      {}
func (n *Return) stmt()        {}
func (n *Goto) stmt()          {}
func (n *LabelStmt) stmt()     {}
func (n *VarDecl) stmt()       {}
func (n *FunctionDecl) stmt()  {}
func (n *ProcedureDecl) stmt() {}
func (n *EnumDecl) stmt()      {}

// Procedure returns the named procedure declaration, or nil.
func (u *CompilationUnit) Procedure(name string) *ProcedureDecl {
	for _, d := range u.Decls {
		if p, ok := d.(*ProcedureDecl); ok && p.Name == name {
			return p
		}
	}
	return nil
}
