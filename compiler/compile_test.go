package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/flowscript/pkg/bytecode"
)

func compileOK(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	m, _, err := CompileSource(src, Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

// procCode returns the body of the named procedure.
func procCode(t *testing.T, m *bytecode.Module, name string) []bytecode.Instruction {
	t.Helper()
	idx := m.ProcedureIndex(name)
	if idx < 0 {
		t.Fatalf("no procedure %s", name)
	}
	return m.Body(&m.Procedures[idx])
}

// hostTrace runs fn on a VM for m and returns the rendered host calls.
func hostTrace(t *testing.T, m *bytecode.Module, setup func(*bytecode.VM), fn func(*bytecode.VM) error) []string {
	t.Helper()
	vm := bytecode.NewVM(m)
	vm.MaxSteps = 100000
	var calls []string
	vm.OnHostCall = func(c bytecode.HostCall) { calls = append(calls, c.String()) }
	if setup != nil {
		setup(vm)
	}
	if err := fn(vm); err != nil {
		t.Fatalf("run: %v", err)
	}
	return calls
}

func TestCompileIfElseShape(t *testing.T) {
	m := compileOK(t, `
void main()
{
    int x = 0;
    int y;
    if (x > 0) { y = 1; } else { y = -1; }
}
`)
	want := []bytecode.Instruction{
		bytecode.PushInt(0),
		{Op: bytecode.OpStoreLocal, Operand: 0},
		{Op: bytecode.OpLoadLocal, Operand: 0},
		bytecode.PushInt(0),
		{Op: bytecode.OpGt},
		{Op: bytecode.OpJumpIfFalse, Operand: 9},
		bytecode.PushInt(1),
		{Op: bytecode.OpStoreLocal, Operand: 1},
		{Op: bytecode.OpJump, Operand: 11},
		bytecode.PushInt(-1),
		{Op: bytecode.OpStoreLocal, Operand: 1},
		{Op: bytecode.OpReturn},
	}
	if diff := cmp.Diff(want, procCode(t, m, "main")); diff != "" {
		t.Errorf("if/else code mismatch (-want +got):\n%s\n%s", diff, m.Disassemble())
	}
}

func TestCompileExpressionShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []bytecode.Instruction
	}{
		{
			name: "void call statement pops its value",
			body: "f();",
			want: []bytecode.Instruction{
				{Op: bytecode.OpCallProc, Operand: 0},
				{Op: bytecode.OpPop},
			},
		},
		{
			name: "assignment used as a value",
			body: "a = b = 2;",
			want: []bytecode.Instruction{
				bytecode.PushInt(2),
				{Op: bytecode.OpDup},
				{Op: bytecode.OpStoreLocal, Operand: 1},
				{Op: bytecode.OpStoreLocal, Operand: 0},
			},
		},
		{
			name: "postfix increment used as a value",
			body: "a = b++;",
			want: []bytecode.Instruction{
				{Op: bytecode.OpLoadLocal, Operand: 1},
				bytecode.PushInt(1),
				{Op: bytecode.OpAdd},
				{Op: bytecode.OpDup},
				{Op: bytecode.OpStoreLocal, Operand: 1},
				bytecode.PushInt(1),
				{Op: bytecode.OpSub},
				{Op: bytecode.OpStoreLocal, Operand: 0},
			},
		},
		{
			name: "compound assignment with int to float coercion",
			body: "c += a;",
			want: []bytecode.Instruction{
				{Op: bytecode.OpLoadLocal, Operand: 2},
				{Op: bytecode.OpLoadLocal, Operand: 0},
				{Op: bytecode.OpToFloat},
				{Op: bytecode.OpAdd},
				{Op: bytecode.OpStoreLocal, Operand: 2},
			},
		},
		{
			name: "short-circuit and",
			body: "d = a && d;",
			want: []bytecode.Instruction{
				{Op: bytecode.OpLoadLocal, Operand: 0},
				{Op: bytecode.OpToBool},
				{Op: bytecode.OpDup},
				{Op: bytecode.OpJumpIfFalse, Operand: 6},
				{Op: bytecode.OpPop},
				{Op: bytecode.OpLoadLocal, Operand: 3},
				{Op: bytecode.OpStoreLocal, Operand: 3},
			},
		},
	}

	for _, tc := range tests {
		src := "void f() { }\nvoid main()\n{\n    int a; int b; float c; bool d;\n    " + tc.body + "\n    a = b; c = c; d = d;\n}\n"
		m := compileOK(t, src)
		got := procCode(t, m, "main")
		// Shift expected jump targets to absolute addresses.
		base := m.Procedures[m.ProcedureIndex("main")].Entry
		want := make([]bytecode.Instruction, len(tc.want))
		for i, in := range tc.want {
			if in.Op.IsJump() {
				in.Operand += base
			}
			want[i] = in
		}
		if len(got) < len(want) {
			t.Errorf("%s: code too short:\n%s", tc.name, m.Disassemble())
			continue
		}
		if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestShortCircuitLaw(t *testing.T) {
	src := `
function(0x0001) bool SIDE(int tag);

void both(int a, int b) { if (SIDE(a) && SIDE(b)) { } }
void either(int a, int b) { if (SIDE(a) || SIDE(b)) { } }
`
	m := compileOK(t, src)
	// SIDE returns true for odd tags.
	setup := func(vm *bytecode.VM) {
		vm.Register("SIDE", func(args []bytecode.Value) (bytecode.Value, error) {
			return bytecode.BoolValue(args[0].I%2 == 1), nil
		})
	}
	tests := []struct {
		proc string
		a, b int32
		want []string
	}{
		{"both", 2, 3, []string{"SIDE(2)"}},
		{"both", 1, 3, []string{"SIDE(1)", "SIDE(3)"}},
		{"either", 1, 4, []string{"SIDE(1)"}},
		{"either", 2, 4, []string{"SIDE(2)", "SIDE(4)"}},
	}
	for _, tc := range tests {
		calls := hostTrace(t, m, setup, func(vm *bytecode.VM) error {
			_, err := vm.Call(tc.proc, bytecode.IntValue(tc.a), bytecode.IntValue(tc.b))
			return err
		})
		if diff := cmp.Diff(tc.want, calls); diff != "" {
			t.Errorf("%s(%d, %d) calls mismatch (-want +got):\n%s", tc.proc, tc.a, tc.b, diff)
		}
	}
}

func TestStaticScopingLaw(t *testing.T) {
	m := compileOK(t, `
int counter()
{
    static int n = 0;
    int local = 0;
    n++;
    local++;
    return n * 100 + local;
}
`)
	vm := bytecode.NewVM(m)
	for i, want := range []int32{101, 201, 301} {
		got, err := vm.Call("counter")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got.I != want {
			t.Errorf("call %d = %v, want %d", i, got, want)
		}
	}
}

func TestSwitchDispatchOrderLaw(t *testing.T) {
	m := compileOK(t, `
function(0x0002) void MARK(int v);

void pick(int n)
{
    switch (n)
    {
        case 2: MARK(2);
        case 1: MARK(1);
        default: MARK(0);
    }
    MARK(9);
}
`)
	tests := []struct {
		n    int32
		want []string
	}{
		{1, []string{"MARK(1)", "MARK(9)"}},
		{2, []string{"MARK(2)", "MARK(9)"}},
		{7, []string{"MARK(0)", "MARK(9)"}},
	}
	for _, tc := range tests {
		calls := hostTrace(t, m, nil, func(vm *bytecode.VM) error {
			_, err := vm.Call("pick", bytecode.IntValue(tc.n))
			return err
		})
		if diff := cmp.Diff(tc.want, calls); diff != "" {
			t.Errorf("pick(%d) mismatch (-want +got):\n%s", tc.n, diff)
		}
	}
}

func TestCompileSemantics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bytecode.Value
	}{
		{"postfix", "int t() { int x = 5; int y = x++; return y * 10 + x; }", bytecode.IntValue(56)},
		{"prefix", "int t() { int x = 5; int y = ++x; return y * 10 + x; }", bytecode.IntValue(66)},
		{"postfix decrement", "int t() { int x = 5; int y = x--; return y * 10 + x; }", bytecode.IntValue(54)},
		{"chained assignment", "int t() { int a; int b; a = b = 3; return a + b; }", bytecode.IntValue(6)},
		{"compound", "int t() { int a = 7; a *= 3; a -= 1; a /= 4; a %= 3; return a; }", bytecode.IntValue(2)},
		{"float coercion", "int t() { float f = 1; f = f / 2; return (int)(f * 10); }", bytecode.IntValue(5)},
		{"return coercion", "int t() { return 7.9; }", bytecode.IntValue(7)},
		{"float result", "float t() { int a = 3; return a / 2.0; }", bytecode.FloatValue(1.5)},
		{"string concat", `string t() { string a = "ab"; a += "cd"; return a + "!"; }`, bytecode.StringValue("abcd!")},
		{"for continue", "int t() { int sum = 0; for (int i = 1; i <= 10; i++) { if (i % 2 == 0) continue; sum += i; } return sum; }", bytecode.IntValue(25)},
		{"while break", "int t() { int i = 0; while (true) { i++; if (i == 7) break; } return i; }", bytecode.IntValue(7)},
		{"goto loop", "int t() { int i = 0; again: i++; if (i < 4) goto again; return i; }", bytecode.IntValue(4)},
		{"enum", "enum E { A, B = 5, C }\nint t() { return E.C; }", bytecode.IntValue(6)},
		{"global init", "int g = 40;\nint t() { return g + 2; }", bytecode.IntValue(42)},
		{"recursion", "int fact(int n) { if (n <= 1) return 1; return n * fact(n - 1); }\nint t() { return fact(5); }", bytecode.IntValue(120)},
		{"mixed compare", "bool t() { int i = 1; float f = 1.5; return i < f; }", bytecode.BoolValue(true)},
		{"int and", "bool t() { int a = 2; return a && 0; }", bytecode.BoolValue(false)},
		{"int or", "bool t() { int a = 2; return a || 0; }", bytecode.BoolValue(true)},
		{"shadowing", "int t() { int a = 1; { int a = 10; a++; } return a; }", bytecode.IntValue(1)},
		{"switch break in loop", "int t() { int n = 0; for (int i = 0; i < 5; i++) { switch (i) { case 3: break; default: n++; } } return n; }", bytecode.IntValue(4)},
		{"switch continue", "int t() { int n = 0; int i = 0; while (i < 5) { i++; switch (i) { case 2: continue; } n += i; } return n; }", bytecode.IntValue(13)},
		{"default return", "int t() { }", bytecode.IntValue(0)},
		{"default string return", "string t() { }", bytecode.StringValue("")},
		{"negative hex", "int t() { return 0xFFFFFFFF; }", bytecode.IntValue(-1)},
		{"not", "bool t() { return !(1 > 2); }", bytecode.BoolValue(true)},
		{"cast to bool", "bool t() { return (bool)3; }", bytecode.BoolValue(true)},
	}

	for _, tc := range tests {
		m, _, err := CompileSource(tc.src, Options{})
		if err != nil {
			t.Errorf("%s: compile: %v", tc.name, err)
			continue
		}
		vm := bytecode.NewVM(m)
		vm.MaxSteps = 10000
		got, err := vm.Call("t")
		if err != nil {
			t.Errorf("%s: run: %v", tc.name, err)
			continue
		}
		if got.Type != tc.want.Type || !got.Equal(tc.want) {
			t.Errorf("%s: got %v (%s), want %v (%s)", tc.name, got, got.Type, tc.want, tc.want.Type)
		}
	}
}

func TestCompileUndeclaredIdentifier(t *testing.T) {
	m, _, err := CompileSource("void main() { int w; w = z + 1; }", Options{})
	if m != nil {
		t.Errorf("a module was emitted despite errors")
	}
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("error %v is not an ErrorList", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(list), err)
	}
	if !errors.Is(list[0], ErrUndeclaredIdentifier) || !strings.Contains(list[0].Msg, "z") {
		t.Errorf("error = %v, want undeclared identifier z", list[0])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{"duplicate local", "void p() { int a; int a; }", ErrDuplicateDeclaration},
		{"duplicate procedure", "void p() { }\nvoid p() { }", ErrDuplicateDeclaration},
		{"duplicate label", "void p() { l: ; l: ; }", ErrDuplicateDeclaration},
		{"duplicate case", "void p(int n) { switch (n) { case 1: case 1: ; } }", ErrDuplicateDeclaration},
		{"duplicate default", "void p(int n) { switch (n) { default: ; default: ; } }", ErrDuplicateDeclaration},
		{"duplicate enum member", "enum E { A, A }", ErrDuplicateDeclaration},
		{"initializer type", `void p() { int a = "s"; }`, ErrTypeMismatch},
		{"string arithmetic", `void p() { string s = 1 + "a"; }`, ErrTypeMismatch},
		{"argument count", "void f(int a) { }\nvoid p() { f(); }", ErrTypeMismatch},
		{"argument type", "void f(int a) { }\nvoid p() { f(\"x\"); }", ErrTypeMismatch},
		{"void value", "void f() { }\nvoid p() { int x = f(); }", ErrTypeMismatch},
		{"assign to procedure", "void f() { }\nvoid p() { f = 1; }", ErrTypeMismatch},
		{"string condition", `void p() { if ("s") { } }`, ErrTypeMismatch},
		{"string increment", "void p() { string s; s++; }", ErrTypeMismatch},
		{"global type", `int g = "x";`, ErrTypeMismatch},
		{"break outside loop", "void p() { break; }", ErrInvalidControlFlow},
		{"continue outside loop", "void p() { continue; }", ErrInvalidControlFlow},
		{"continue in switch", "void p() { switch (1) { case 1: continue; } }", ErrInvalidControlFlow},
		{"void returns value", "void p() { return 1; }", ErrInvalidControlFlow},
		{"missing return value", "int p() { return; }", ErrInvalidControlFlow},
		{"undefined label", "void p() { goto nowhere; }", ErrUnresolvedLabel},
		{"undeclared call", "void p() { NOPE(1); }", ErrUndeclaredIdentifier},
		{"undeclared enum", "int p() { return E.X; }", ErrUndeclaredIdentifier},
		{"non-constant global", "int f() { return 1; }\nint g = f();", ErrUnsupportedConstruct},
		{"non-constant static", "void p(int n) { static int s = n; }", ErrUnsupportedConstruct},
		{"non-constant case", "void p(int n) { switch (n) { case n: ; } }", ErrUnsupportedConstruct},
		{"cast to string", "void p() { int a = 1; string s = (string)a; }", ErrUnsupportedConstruct},
	}

	for _, tc := range tests {
		m, _, err := CompileSource(tc.src, Options{})
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if m != nil {
			t.Errorf("%s: module emitted despite error", tc.name)
		}
		if !errors.Is(err, tc.kind) {
			t.Errorf("%s: error %v, want %v", tc.name, err, tc.kind)
		}
	}
}

func TestCompileAccumulatesErrors(t *testing.T) {
	_, _, err := CompileSource("void p() { a = 1; b = 2; c(3); }", Options{})
	var list ErrorList
	if !errors.As(err, &list) || len(list) != 3 {
		t.Fatalf("got %v, want 3 errors", err)
	}
	for _, e := range list {
		if !errors.Is(e, ErrUndeclaredIdentifier) {
			t.Errorf("error %v is not an undeclared identifier", e)
		}
	}
}

func TestCompileReportsEveryUnresolvedLabel(t *testing.T) {
	_, _, err := CompileSource("void p() { goto a; goto b; goto a; }", Options{})
	var list ErrorList
	if !errors.As(err, &list) || len(list) != 2 {
		t.Fatalf("got %v, want 2 errors", err)
	}
	if !strings.Contains(list[0].Msg, "label a ") || !strings.Contains(list[1].Msg, "label b ") {
		t.Errorf("errors = %v", list)
	}
}

func TestCompileWarnings(t *testing.T) {
	_, warns, err := CompileSource("void p() { int unused; return; p(); }", Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var msgs []string
	for _, w := range warns {
		msgs = append(msgs, w.Msg)
	}
	joined := strings.Join(msgs, "\n")
	if len(warns) != 2 || !strings.Contains(joined, "unreachable") || !strings.Contains(joined, "unused") {
		t.Errorf("warnings = %q", msgs)
	}
}

type fakeLibrary map[string]FunctionSignature

func (l fakeLibrary) LookupName(name string) (FunctionSignature, bool) {
	sig, ok := l[name]
	return sig, ok
}

func (l fakeLibrary) LookupIndex(table, index uint16) (FunctionSignature, bool) {
	for _, sig := range l {
		if sig.Table == table && sig.Index == index {
			return sig, true
		}
	}
	return FunctionSignature{}, false
}

func TestCompileImportsLibraryFunctions(t *testing.T) {
	lib := fakeLibrary{
		"PRINT": {Name: "PRINT", Table: 2, Index: 7, ReturnType: bytecode.TypeVoid, Params: []bytecode.Type{bytecode.TypeFloat}},
	}
	m, _, err := CompileSource("void main() { PRINT(3); PRINT(4); }", Options{Library: lib})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(m.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(m.Functions))
	}
	f := m.Functions[0]
	if f.Name != "PRINT" || f.Table != 2 || f.Index != 7 || f.ArgCount != 1 {
		t.Errorf("function = %+v", f)
	}

	vm := bytecode.NewVM(m)
	var args []bytecode.Value
	vm.OnHostCall = func(c bytecode.HostCall) { args = append(args, c.Args...) }
	if _, err := vm.RunEntry(); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Int arguments are converted to the declared float parameter.
	want := []bytecode.Value{bytecode.FloatValue(3), bytecode.FloatValue(4)}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileModuleLayout(t *testing.T) {
	m := compileOK(t, `
global int g = 10;
static string s = "hi";
float h;

int helper(int a, float b) { int c = a; return c; }
void main() { static bool once = true; helper(1, 2); }
`)
	if m.Entry != uint32(m.ProcedureIndex("main")) {
		t.Errorf("entry = %d, want main", m.Entry)
	}
	if m.GlobalCount != 2 || m.StaticCount != 2 {
		t.Errorf("globals %d statics %d, want 2 and 2", m.GlobalCount, m.StaticCount)
	}

	helper := m.Procedures[m.ProcedureIndex("helper")]
	wantTypes := []bytecode.Type{bytecode.TypeInt, bytecode.TypeFloat, bytecode.TypeInt}
	if diff := cmp.Diff(wantTypes, helper.LocalTypes); diff != "" {
		t.Errorf("helper locals mismatch (-want +got):\n%s", diff)
	}
	if helper.ParamCount != 2 || helper.ReturnType != bytecode.TypeInt {
		t.Errorf("helper = %+v", helper)
	}

	vm := bytecode.NewVM(m)
	if got := vm.Global(0); !got.Equal(bytecode.IntValue(10)) {
		t.Errorf("global 0 = %v, want 10", got)
	}
	if got := vm.Global(1); got.Type != bytecode.TypeFloat {
		t.Errorf("global 1 = %v, want a float zero", got)
	}
	if got := vm.Static(0); !got.Equal(bytecode.StringValue("hi")) {
		t.Errorf("static 0 = %v, want hi", got)
	}
	if got := vm.Static(1); !got.Equal(bytecode.BoolValue(true)) {
		t.Errorf("static 1 = %v, want true", got)
	}

	// Every jump lands inside the procedure that issues it.
	for i := range m.Procedures {
		p := &m.Procedures[i]
		for addr := p.Entry; addr < p.End(); addr++ {
			in := m.Code[addr]
			if in.Op.IsJump() && !p.Contains(in.Operand) {
				t.Errorf("%s: jump at %d to %d leaves the procedure", p.Name, addr, in.Operand)
			}
		}
	}
}

func TestCompileEntryOption(t *testing.T) {
	src := "void start() { }\nvoid main() { }"
	m, _, err := CompileSource(src, Options{Entry: "start"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if m.Entry != 0 {
		t.Errorf("entry = %d, want 0", m.Entry)
	}
	m, _, err = CompileSource("void other() { }", Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if m.Entry != bytecode.NoEntry {
		t.Errorf("entry = %d, want none", m.Entry)
	}
}

func TestCompileRoundTripsThroughBinary(t *testing.T) {
	m := compileOK(t, printerSample[strings.Index(printerSample, "function"):])
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := bytecode.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	again, err := back.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if diff := cmp.Diff(data, again); diff != "" {
		t.Errorf("binary round trip mismatch:\n%s", diff)
	}
}
