package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chazu/flowscript/pkg/bytecode"
)

// ignoreSpans compares trees by shape only.
var ignoreSpans = cmpopts.IgnoreTypes(Span{})

func id(name string) *Identifier { return &Identifier{Name: name} }
func num(v int32) *IntLiteral    { return &IntLiteral{Value: v} }
func bin(op BinaryOp, l, r Expr) *Binary {
	return &Binary{Op: op, Left: l, Right: r}
}

func mustParse(t *testing.T, src string) *CompilationUnit {
	t.Helper()
	unit, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return unit
}

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  Expr
	}{
		{"42", num(42)},
		{"-5", num(-5)},
		{"0x10", num(16)},
		{"0xFFFFFFFF", num(-1)},
		{"-2147483648", num(-2147483648)},
		{"3.5", &FloatLiteral{Value: 3.5}},
		{"-0.25", &FloatLiteral{Value: -0.25}},
		{"1.5f", &FloatLiteral{Value: 1.5}},
		{"true", &BoolLiteral{Value: true}},
		{"false", &BoolLiteral{Value: false}},
		{`"hello\n"`, &StringLiteral{Value: "hello\n"}},
		{"Color.Red", &MemberAccess{Enum: "Color", Member: "Red"}},
	}

	for _, tc := range tests {
		got, err := ParseExpr(tc.input)
		if err != nil {
			t.Errorf("parse %q: %v", tc.input, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got, ignoreSpans); diff != "" {
			t.Errorf("parse %q mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  Expr
	}{
		{"a + b * c", bin(BinaryAdd, id("a"), bin(BinaryMul, id("b"), id("c")))},
		{"a - b - c", bin(BinarySub, bin(BinarySub, id("a"), id("b")), id("c"))},
		{"(a + b) * c", bin(BinaryMul, bin(BinaryAdd, id("a"), id("b")), id("c"))},
		{"a < b == c > d", bin(BinaryEq, bin(BinaryLt, id("a"), id("b")), bin(BinaryGt, id("c"), id("d")))},
		{"a || b && c", bin(BinaryOr, id("a"), bin(BinaryAnd, id("b"), id("c")))},
		{"a % b / c", bin(BinaryDiv, bin(BinaryMod, id("a"), id("b")), id("c"))},
		{"x - -1", bin(BinarySub, id("x"), num(-1))},
		{"-x * y", bin(BinaryMul, &Unary{Op: UnaryNeg, Operand: id("x")}, id("y"))},
		{"!a && b", bin(BinaryAnd, &Unary{Op: UnaryNot, Operand: id("a")}, id("b"))},
		{"a = b = 3", &Assign{Op: AssignSet, Target: id("a"), Value: &Assign{Op: AssignSet, Target: id("b"), Value: num(3)}}},
		{"a += b * 2", &Assign{Op: AssignAdd, Target: id("a"), Value: bin(BinaryMul, id("b"), num(2))}},
		{"x++ + ++y", bin(BinaryAdd, &Unary{Op: UnaryPostInc, Operand: id("x")}, &Unary{Op: UnaryPreInc, Operand: id("y")})},
		{"(float)a / b", bin(BinaryDiv, &Cast{Type: bytecode.TypeFloat, Operand: id("a")}, id("b"))},
		{"f(a, g(b), 1 + 2)", &Call{Name: "f", Args: []Expr{id("a"), &Call{Name: "g", Args: []Expr{id("b")}}, bin(BinaryAdd, num(1), num(2))}}},
		{"f()", &Call{Name: "f"}},
	}

	for _, tc := range tests {
		got, err := ParseExpr(tc.input)
		if err != nil {
			t.Errorf("parse %q: %v", tc.input, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got, ignoreSpans); diff != "" {
			t.Errorf("parse %q mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestParserUnit(t *testing.T) {
	src := `
import("common.flow");

function(0x0001, 0x0010) void PUT(int value);
function(3) int RAND();

enum Color { Red, Green = 5, Blue }

int counter = 1;
static float scale = 0.5;

int add(int a, int b)
{
    return a + b;
}

void main(void)
{
    int x = add(1, 2);
    PUT(x);
}
`
	unit := mustParse(t, src)

	if len(unit.Imports) != 1 || unit.Imports[0].Path != "common.flow" {
		t.Fatalf("imports = %+v", unit.Imports)
	}
	if len(unit.Decls) != 7 {
		t.Fatalf("got %d declarations, want 7", len(unit.Decls))
	}

	put := unit.Decls[0].(*FunctionDecl)
	if put.Table != 1 || put.Index != 0x10 || put.Name != "PUT" || put.ReturnType != bytecode.TypeVoid || len(put.Params) != 1 {
		t.Errorf("PUT decl = %+v", put)
	}
	rand := unit.Decls[1].(*FunctionDecl)
	if rand.Table != 0 || rand.Index != 3 || len(rand.Params) != 0 {
		t.Errorf("RAND decl = %+v", rand)
	}

	color := unit.Decls[2].(*EnumDecl)
	if color.Name != "Color" || len(color.Members) != 3 || color.Members[1].Value == nil {
		t.Errorf("enum = %+v", color)
	}

	counter := unit.Decls[3].(*VarDecl)
	if counter.Storage != StorageAuto || counter.Type != bytecode.TypeInt {
		t.Errorf("counter = %+v", counter)
	}
	scale := unit.Decls[4].(*VarDecl)
	if scale.Storage != StorageStatic || scale.Type != bytecode.TypeFloat {
		t.Errorf("scale = %+v", scale)
	}

	add := unit.Procedure("add")
	if add == nil || len(add.Params) != 2 || add.ReturnType != bytecode.TypeInt {
		t.Fatalf("add = %+v", add)
	}
	main := unit.Procedure("main")
	if main == nil || len(main.Params) != 0 || len(main.Body.Stmts) != 2 {
		t.Fatalf("main = %+v", main)
	}
}

func TestParserStatements(t *testing.T) {
	src := `
void p(int n)
{
    if (n > 0) n = 1; else if (n < 0) n = -1; else n = 0;
    while (n) n--;
    for (int i = 0; i < 10; i++) { continue; }
    for (;;) break;
    switch (n) {
    case 1:
    case 2:
        n = 3;
        break;
    default:
        n = 4;
    }
top:
    goto top;
    ;
    return;
}
`
	unit := mustParse(t, src)
	body := unit.Procedure("p").Body.Stmts
	if len(body) != 9 {
		t.Fatalf("got %d statements, want 9", len(body))
	}

	ifs := body[0].(*If)
	if _, ok := ifs.Else.(*If); !ok {
		t.Errorf("else branch = %T, want *If", ifs.Else)
	}

	if _, ok := body[1].(*While); !ok {
		t.Errorf("body[1] = %T, want *While", body[1])
	}

	f := body[2].(*For)
	if _, ok := f.Init.(*VarDecl); !ok || f.Cond == nil || f.Step == nil {
		t.Errorf("for = %+v", f)
	}
	inf := body[3].(*For)
	if inf.Init != nil || inf.Cond != nil || inf.Step != nil {
		t.Errorf("infinite for = %+v", inf)
	}

	sw := body[4].(*Switch)
	if len(sw.Sections) != 2 {
		t.Fatalf("switch sections = %d, want 2", len(sw.Sections))
	}
	if len(sw.Sections[0].Labels) != 2 || len(sw.Sections[0].Body) != 2 {
		t.Errorf("first section = %+v", sw.Sections[0])
	}
	if !sw.Sections[1].Labels[0].IsDefault() {
		t.Errorf("second section is not default")
	}

	if l, ok := body[5].(*LabelStmt); !ok || l.Name != "top" {
		t.Errorf("body[5] = %+v, want label top", body[5])
	}
	if g, ok := body[6].(*Goto); !ok || g.Label != "top" {
		t.Errorf("body[6] = %+v, want goto top", body[6])
	}
	if _, ok := body[7].(*NullStmt); !ok {
		t.Errorf("body[7] = %T, want *NullStmt", body[7])
	}
	if r, ok := body[8].(*Return); !ok || r.Value != nil {
		t.Errorf("body[8] = %+v, want bare return", body[8])
	}
}

func TestParserSpans(t *testing.T) {
	unit := mustParse(t, "void main()\n{\n    x = 1;\n}\n")
	stmt := unit.Procedure("main").Body.Stmts[0]
	sp := stmt.Span()
	if sp.Start.Line != 3 || sp.Start.Column != 5 {
		t.Errorf("start = %+v, want 3:5", sp.Start)
	}
	if sp.End.Line != 3 || sp.End.Column != 11 {
		t.Errorf("end = %+v, want 3:11", sp.End)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
	}{
		{"void main() { x = ; }", 1},
		{"void main() {\n  1 = x;\n}", 2},
		{"void main() { if x { } }", 1},
		{"int x = 2147483648;", 1},
		{"int x = 0x100000000;", 1},
		{"void x;", 1},
		{"function(70000) void F();", 1},
		{"static void p() { }", 1},
		{"void main() { int; }", 1},
		{"void main() {\n\n  enum E { A }\n}", 3},
		{"void main() { s = \"unterminated; }", 1},
		{"@", 1},
		{"void main() {", 1},
		{"string s() {\n  return \"a\\x00b\";\n}", 2},
		{`string g = "\000";`, 1},
	}

	for _, tc := range tests {
		_, err := Parse(tc.input)
		if err == nil {
			t.Errorf("parse %q: expected error", tc.input)
			continue
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("parse %q: error %v is not a syntax error", tc.input, err)
		}
		var list ErrorList
		if !errors.As(err, &list) || len(list) == 0 {
			t.Errorf("parse %q: error %T is not an ErrorList", tc.input, err)
			continue
		}
		if list[0].Pos.Line != tc.line {
			t.Errorf("parse %q: first error on line %d, want %d (%v)", tc.input, list[0].Pos.Line, tc.line, err)
		}
	}
}

func TestParserRecovers(t *testing.T) {
	src := `
void a() { x = ; }
void b() { y = 1; }
void c() { z = ) ; }
`
	p := NewParser(src)
	unit := p.ParseUnit()
	if n := len(p.Errors()); n != 2 {
		t.Fatalf("got %d errors, want 2: %v", n, p.Errors())
	}
	if unit.Procedure("b") == nil {
		t.Errorf("procedure b was lost during recovery")
	}
	msg := p.Errors().Error()
	if !strings.Contains(msg, "2 errors") {
		t.Errorf("error text = %q", msg)
	}
}
