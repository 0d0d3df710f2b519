package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
	"github.com/chazu/flowscript/pkg/decompiler"
)

const sample = `
[[function]]
table = 3
index = 7
name = "LOOKUP"
return = "int"
params = [{ name = "key", type = "int" }]

[[function]]
index = 1
name = "PRINT"
params = [{ name = "text", type = "string" }, { name = "scale", type = "float" }]
`

func parseSample(t *testing.T) *Library {
	t.Helper()
	l, err := ParseTOML([]byte(sample))
	if err != nil {
		t.Fatalf("ParseTOML: %v", err)
	}
	return l
}

func TestParseTOML(t *testing.T) {
	l := parseSample(t)
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	want := compiler.FunctionSignature{
		Name:       "LOOKUP",
		Table:      3,
		Index:      7,
		ReturnType: bytecode.TypeInt,
		Params:     []bytecode.Type{bytecode.TypeInt},
		ParamNames: []string{"key"},
	}
	got, ok := l.LookupName("LOOKUP")
	if !ok {
		t.Fatal("LOOKUP not found by name")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupName mismatch (-want +got):\n%s", diff)
	}
	got, ok = l.LookupIndex(3, 7)
	if !ok {
		t.Fatal("LOOKUP not found by index")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupIndex mismatch (-want +got):\n%s", diff)
	}

	pr, ok := l.LookupIndex(0, 1)
	if !ok || pr.ReturnType != bytecode.TypeVoid {
		t.Errorf("PRINT = %+v, %v; want void return", pr, ok)
	}
	if _, ok := l.LookupName("MISSING"); ok {
		t.Error("found MISSING")
	}

	// Entries are ordered by (table, index).
	if fns := l.Functions(); fns[0].Name != "PRINT" || fns[1].Name != "LOOKUP" {
		t.Errorf("order = %s, %s", fns[0].Name, fns[1].Name)
	}
}

func TestNilLibrary(t *testing.T) {
	var l *Library
	if _, ok := l.LookupName("X"); ok {
		t.Error("nil library found a name")
	}
	if l.Len() != 0 || l.Fingerprint() != "" {
		t.Error("nil library is not empty")
	}
	merged, err := l.Merge(parseSample(t))
	if err != nil || merged.Len() != 2 {
		t.Errorf("Merge into nil = %v, %v", merged.Len(), err)
	}
}

func TestInvalidLibraries(t *testing.T) {
	tests := []struct {
		name string
		fns  []Function
		want error
	}{
		{"duplicate name", []Function{{Index: 1, Name: "A"}, {Index: 2, Name: "A"}}, ErrDuplicate},
		{"duplicate index", []Function{{Index: 1, Name: "A"}, {Index: 1, Name: "B"}}, ErrDuplicate},
		{"no name", []Function{{Index: 1}}, ErrInvalid},
		{"bad return", []Function{{Name: "A", Return: "double"}}, ErrInvalid},
		{"void parameter", []Function{{Name: "A", Params: []Param{{Type: "void"}}}}, ErrInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fns...)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBinaryForm(t *testing.T) {
	l := parseSample(t)
	data, err := l.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(l.Functions(), back.Functions()); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}
	if l.Fingerprint() != back.Fingerprint() {
		t.Error("fingerprint changed across the binary form")
	}
	if _, err := Decode([]byte{0xff}); err == nil {
		t.Error("Decode accepted garbage")
	}
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a, err := New(Function{Index: 1, Name: "A"}, Function{Index: 2, Name: "B"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Function{Index: 2, Name: "B"}, Function{Index: 1, Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint depends on declaration order")
	}
	c, err := New(Function{Index: 1, Name: "A", Return: "int"}, Function{Index: 2, Name: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint ignores the return type")
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "host.toml")
	if err := os.WriteFile(tomlPath, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}
	extra, err := New(Function{Table: 9, Index: 0, Name: "EXTRA", Return: "bool"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := extra.Encode()
	if err != nil {
		t.Fatal(err)
	}
	binPath := filepath.Join(dir, "extra.flib")
	if err := os.WriteFile(binPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	l, err := LoadAll(tomlPath, binPath)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}
	if _, err := LoadAll(tomlPath, tomlPath); !errors.Is(err, ErrDuplicate) {
		t.Errorf("loading twice: err = %v, want ErrDuplicate", err)
	}
}

func TestMarshalTOML(t *testing.T) {
	l := parseSample(t)
	data, err := l.MarshalTOML()
	if err != nil {
		t.Fatalf("MarshalTOML: %v", err)
	}
	back, err := ParseTOML(data)
	if err != nil {
		t.Fatalf("ParseTOML:\n%s\n%v", data, err)
	}
	if l.Fingerprint() != back.Fingerprint() {
		t.Errorf("fingerprint changed through TOML:\n%s", data)
	}
}

// The library resolves undeclared calls when compiling and names imported
// functions when decompiling.
func TestResolverCollaboration(t *testing.T) {
	l := parseSample(t)
	m, _, err := compiler.CompileSource(`
int main()
{
    PRINT("x", 2);
    return LOOKUP(5);
}
`, compiler.Options{Library: l})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(m.Functions) != 2 {
		t.Fatalf("%d imported functions, want 2", len(m.Functions))
	}

	// Rename the imports in the binary; the library restores them.
	for i := range m.Functions {
		m.Functions[i].Name = "renamed" + m.Functions[i].Name
	}
	unit, err := decompiler.Decompile(m, decompiler.Options{Library: l})
	if err != nil {
		t.Fatalf("decompile: %v", err)
	}
	src := compiler.Print(unit)
	for _, want := range []string{"int LOOKUP(int key)", "void PRINT(string text, float scale)", "LOOKUP(5)"} {
		if !strings.Contains(src, want) {
			t.Errorf("decompiled source lacks %q:\n%s", want, src)
		}
	}
}
