package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Printer: renders syntax trees as FlowScript source
// ---------------------------------------------------------------------------

// Operator precedence, lowest first.
const (
	precAssign = iota + 1
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

// Print renders a compilation unit as source text.
func Print(unit *CompilationUnit) string {
	pr := &printer{}
	for _, imp := range unit.Imports {
		pr.line("import(%s);", strconv.Quote(imp.Path))
	}
	if len(unit.Imports) > 0 && len(unit.Decls) > 0 {
		pr.sb.WriteString("\n")
	}
	prevProc := false
	for i, d := range unit.Decls {
		_, isProc := d.(*ProcedureDecl)
		_, isEnum := d.(*EnumDecl)
		if i > 0 && (isProc || isEnum || prevProc) {
			pr.sb.WriteString("\n")
		}
		pr.stmt(d)
		prevProc = isProc || isEnum
	}
	return pr.sb.String()
}

// PrintStmt renders a single statement.
func PrintStmt(s Stmt) string {
	pr := &printer{}
	pr.stmt(s)
	return strings.TrimSuffix(pr.sb.String(), "\n")
}

// PrintExpr renders a single expression.
func PrintExpr(e Expr) string {
	return exprString(e)
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (pr *printer) line(format string, args ...any) {
	pr.sb.WriteString(strings.Repeat("    ", pr.indent))
	fmt.Fprintf(&pr.sb, format, args...)
	pr.sb.WriteString("\n")
}

func params(ps []*Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Type.String() + " " + p.Name
	}
	return strings.Join(parts, ", ")
}

func (pr *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *NullStmt:
		pr.line(";")
	case *Block:
		pr.line("{")
		pr.body(s.Stmts)
		pr.line("}")
	case *ExprStmt:
		pr.line("%s;", exprString(s.X))
	case *VarDecl:
		pr.line("%s;", varDeclString(s))
	case *If:
		pr.line("if (%s)", exprString(s.Cond))
		pr.nested(braceDangling(s))
		for s.Else != nil {
			if elif, ok := s.Else.(*If); ok {
				pr.line("else if (%s)", exprString(elif.Cond))
				pr.nested(braceDangling(elif))
				s = elif
				continue
			}
			pr.line("else")
			pr.nested(s.Else)
			break
		}
	case *While:
		pr.line("while (%s)", exprString(s.Cond))
		pr.nested(s.Body)
	case *For:
		init := ""
		switch in := s.Init.(type) {
		case *VarDecl:
			init = varDeclString(in)
		case *ExprStmt:
			init = exprString(in.X)
		}
		cond, step := "", ""
		if s.Cond != nil {
			cond = " " + exprString(s.Cond)
		}
		if s.Step != nil {
			step = " " + exprString(s.Step)
		}
		pr.line("for (%s;%s;%s)", init, cond, step)
		pr.nested(s.Body)
	case *Switch:
		pr.line("switch (%s)", exprString(s.Tag))
		pr.line("{")
		for i, sec := range s.Sections {
			for _, l := range sec.Labels {
				if l.IsDefault() {
					pr.line("default:")
				} else {
					pr.line("case %s:", exprString(l.Value))
				}
			}
			// A bare label shares the next section's body.
			if len(sec.Body) == 0 && i+1 < len(s.Sections) {
				pr.body([]Stmt{&Break{}})
				continue
			}
			pr.body(sec.Body)
		}
		pr.line("}")
	case *Break:
		pr.line("break;")
	case *Continue:
		pr.line("continue;")
	case *Return:
		if s.Value == nil {
			pr.line("return;")
		} else {
			pr.line("return %s;", exprString(s.Value))
		}
	case *Goto:
		pr.line("goto %s;", s.Label)
	case *LabelStmt:
		// Labels sit one level out from the statements they precede.
		saved := pr.indent
		if pr.indent > 0 {
			pr.indent--
		}
		pr.line("%s:", s.Name)
		pr.indent = saved
	case *FunctionDecl:
		pr.line("function(0x%04X, 0x%04X) %s %s(%s);", s.Table, s.Index, s.ReturnType, s.Name, params(s.Params))
	case *ProcedureDecl:
		pr.line("%s %s(%s)", s.ReturnType, s.Name, params(s.Params))
		pr.stmt(s.Body)
	case *EnumDecl:
		pr.line("enum %s", s.Name)
		pr.line("{")
		pr.indent++
		for i, m := range s.Members {
			text := m.Name
			if m.Value != nil {
				text += " = " + exprString(m.Value)
			}
			if i < len(s.Members)-1 {
				text += ","
			}
			pr.line("%s", text)
		}
		pr.indent--
		pr.line("}")
	default:
		pr.line("/* unsupported %T */", s)
	}
}

func (pr *printer) body(stmts []Stmt) {
	pr.indent++
	for _, s := range stmts {
		pr.stmt(s)
	}
	pr.indent--
}

// nested prints a loop or branch body; blocks stay at the same level.
func (pr *printer) nested(s Stmt) {
	if _, ok := s.(*Block); ok {
		pr.stmt(s)
		return
	}
	pr.indent++
	pr.stmt(s)
	pr.indent--
}

// braceDangling returns the then-branch of s, wrapped in a block when it
// would otherwise steal s's else.
func braceDangling(s *If) Stmt {
	if s.Else != nil && danglingIf(s.Then) {
		return &Block{SpanVal: s.Then.Span(), Stmts: []Stmt{s.Then}}
	}
	return s.Then
}

func varDeclString(d *VarDecl) string {
	var sb strings.Builder
	switch d.Storage {
	case StorageStatic:
		sb.WriteString("static ")
	case StorageGlobal:
		sb.WriteString("global ")
	}
	sb.WriteString(d.Type.String())
	sb.WriteString(" ")
	sb.WriteString(d.Name)
	if d.Init != nil {
		sb.WriteString(" = ")
		sb.WriteString(exprString(d.Init))
	}
	return sb.String()
}

func binaryPrec(op BinaryOp) int {
	switch op {
	case BinaryOr:
		return precOr
	case BinaryAnd:
		return precAnd
	case BinaryEq, BinaryNe:
		return precEquality
	case BinaryLt, BinaryLe, BinaryGt, BinaryGe:
		return precRelational
	case BinaryAdd, BinarySub:
		return precAdditive
	default:
		return precMultiplicative
	}
}

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *Assign:
		return precAssign
	case *Binary:
		return binaryPrec(e.Op)
	case *Unary:
		if e.Op == UnaryPostInc || e.Op == UnaryPostDec {
			return precPostfix
		}
		return precUnary
	case *Cast:
		return precUnary
	case *IntLiteral:
		if e.Value < 0 {
			return precUnary
		}
	case *FloatLiteral:
		if e.Value < 0 || math.Signbit(float64(e.Value)) {
			return precUnary
		}
	}
	return precPrimary
}

// wrap parenthesises e when its precedence is below min.
func wrap(e Expr, min int) string {
	s := exprString(e)
	if exprPrec(e) < min {
		return "(" + s + ")"
	}
	return s
}

func exprString(e Expr) string {
	switch e := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(int64(e.Value), 10)
	case *FloatLiteral:
		return formatFloat(e.Value)
	case *BoolLiteral:
		return strconv.FormatBool(e.Value)
	case *StringLiteral:
		return strconv.Quote(e.Value)
	case *Identifier:
		return e.Name
	case *MemberAccess:
		return e.Enum + "." + e.Member
	case *Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = exprString(a)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case *Unary:
		switch e.Op {
		case UnaryPostInc:
			return wrap(e.Operand, precPostfix) + "++"
		case UnaryPostDec:
			return wrap(e.Operand, precPostfix) + "--"
		}
		operand := wrap(e.Operand, precUnary)
		prefix := map[UnaryOp]string{UnaryNeg: "-", UnaryNot: "!", UnaryPreInc: "++", UnaryPreDec: "--"}[e.Op]
		// Keep "- -x" and "- --x" from lexing as a decrement.
		if (e.Op == UnaryNeg || e.Op == UnaryPreDec) && strings.HasPrefix(operand, "-") {
			operand = "(" + operand + ")"
		}
		return prefix + operand
	case *Binary:
		prec := binaryPrec(e.Op)
		return wrap(e.Left, prec) + " " + e.Op.String() + " " + wrap(e.Right, prec+1)
	case *Assign:
		return e.Target.Name + " " + e.Op.String() + " " + wrap(e.Value, precAssign)
	case *Cast:
		return "(" + e.Type.String() + ")" + wrap(e.Operand, precUnary)
	}
	return fmt.Sprintf("/* unsupported %T */", e)
}

// formatFloat renders a float so it lexes back as a float literal.
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// danglingIf reports whether s ends in an if without else, which would
// capture a following else when printed.
func danglingIf(s Stmt) bool {
	switch s := s.(type) {
	case *If:
		if s.Else == nil {
			return true
		}
		return danglingIf(s.Else)
	case *While:
		return danglingIf(s.Body)
	case *For:
		return danglingIf(s.Body)
	}
	return false
}
