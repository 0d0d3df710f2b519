package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/flowscript/pkg/library"
)

const doorSource = `
function(0x0002) void MARK(int v);

int main()
{
    int total = 0;
    int i;
    for (i = 0; i < 3; i++)
    {
        MARK(i);
        total += i * 10;
    }
    return total;
}
`

// flowc runs a command line and returns its exit code and output.
func flowc(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-v", "-1"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustFlowc(t *testing.T, args ...string) string {
	t.Helper()
	code, out, errOut := flowc(t, args...)
	if code != exitOK {
		t.Fatalf("flowc %s exited %d:\n%s", strings.Join(args, " "), code, errOut)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestUsage(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{nil, exitUsage},
		{[]string{"bogus"}, exitUsage},
		{[]string{"-h"}, exitOK},
		{[]string{"compile"}, exitUsage},
		{[]string{"compile", "-nope", "x.flow"}, exitUsage},
		{[]string{"cache", "shrink"}, exitUsage},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		if got := run(tt.args, &stdout, &stderr); got != tt.want {
			t.Errorf("run(%q) = %d, want %d\n%s", tt.args, got, tt.want, stderr.String())
		}
	}
}

func TestCompileRunDecompile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "door.flow")
	writeFile(t, src, doorSource)

	mustFlowc(t, "compile", src)
	bin := filepath.Join(dir, "door.fsb")
	if _, err := os.Stat(bin); err != nil {
		t.Fatalf("compile wrote no module: %v", err)
	}

	want := "MARK(0)\nMARK(1)\nMARK(2)\n=> 30\n"
	if got := mustFlowc(t, "run", bin); got != want {
		t.Errorf("run output:\n%s\nwant:\n%s", got, want)
	}
	if got := mustFlowc(t, "run", src); got != want {
		t.Errorf("run from source:\n%s\nwant:\n%s", got, want)
	}

	text := mustFlowc(t, "decompile", bin)
	if !strings.Contains(text, "int main()") {
		t.Errorf("decompiled source has no main:\n%s", text)
	}

	again := filepath.Join(dir, "again.flow")
	writeFile(t, again, text)
	mustFlowc(t, "compile", "-o", filepath.Join(dir, "again.fsb"), again)
	if got := mustFlowc(t, "run", filepath.Join(dir, "again.fsb")); got != want {
		t.Errorf("recompiled output:\n%s\nwant:\n%s\nsource:\n%s", got, want, text)
	}

	listing := mustFlowc(t, "disasm", bin)
	for _, s := range []string{"; Entry: main", "MARK"} {
		if !strings.Contains(listing, s) {
			t.Errorf("disassembly lacks %q:\n%s", s, listing)
		}
	}
}

func TestRunStepLimit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "spin.flow")
	writeFile(t, src, "void main() { while (true) { } }\n")
	code, _, errOut := flowc(t, "run", "-steps", "100", src)
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "Error:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.flow")
	writeFile(t, src, "int main() { return missing; }\n")
	code, _, errOut := flowc(t, "compile", src)
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "missing") {
		t.Errorf("stderr does not name the identifier: %q", errOut)
	}

	if code, _, _ := flowc(t, "decompile", filepath.Join(dir, "absent.fsb")); code != exitError {
		t.Errorf("decompile of a missing file exited %d", code)
	}
}

func TestLibraryCommands(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "host.toml")
	writeFile(t, tomlPath, `
[[function]]
table = 1
index = 9
name = "BEEP"
return = "int"
params = [{ name = "pitch", type = "int" }]
`)
	mustFlowc(t, "lib", tomlPath)
	flib := filepath.Join(dir, "host.flib")

	printed := mustFlowc(t, "lib", flib)
	back, err := library.ParseTOML([]byte(printed))
	if err != nil {
		t.Fatalf("printed library does not parse: %v\n%s", err, printed)
	}
	orig, err := library.Load(tomlPath)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(orig.Functions(), back.Functions()); diff != "" {
		t.Errorf("library changed (-want +got):\n%s", diff)
	}

	src := filepath.Join(dir, "beep.flow")
	writeFile(t, src, "int main() { return BEEP(440); }\n")
	mustFlowc(t, "compile", "-lib", flib, src)
	if got := mustFlowc(t, "run", filepath.Join(dir, "beep.fsb")); got != "BEEP(440)\n=> 0\n" {
		t.Errorf("run output = %q", got)
	}
	text := mustFlowc(t, "decompile", "-lib", tomlPath, filepath.Join(dir, "beep.fsb"))
	if !strings.Contains(text, "int BEEP(int pitch)") {
		t.Errorf("library names not applied:\n%s", text)
	}
}

func TestBuildProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "flowscript.toml"), `
[project]
name = "doors"

[library]
paths = ["host.toml"]

[dependencies]
shapes = { path = "shapes" }
`)
	writeFile(t, filepath.Join(dir, "host.toml"), `
[[function]]
index = 4
name = "AREA"
return = "int"
params = [{ name = "w", type = "int" }, { name = "h", type = "int" }]
`)
	writeFile(t, filepath.Join(dir, "shapes", "src", "area.flow"), "int area(int w, int h) { return AREA(w, h); }\n")
	writeFile(t, filepath.Join(dir, "src", "front.flow"), "import(\"shapes/area.flow\");\nint main() { return area(2, 3); }\n")
	writeFile(t, filepath.Join(dir, "src", "back.flow"), doorSource)

	out := mustFlowc(t, "build", "-C", dir)
	if !strings.Contains(out, "built 2 of 2 units (0 cached)") {
		t.Errorf("first build output:\n%s", out)
	}
	for _, name := range []string{"front.fsb", "back.fsb"} {
		if _, err := os.Stat(filepath.Join(dir, "build", name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".flowscript", "lock.toml")); err != nil {
		t.Errorf("no lock file: %v", err)
	}

	out = mustFlowc(t, "build", "-C", dir)
	if !strings.Contains(out, "built 2 of 2 units (2 cached)") {
		t.Errorf("second build output:\n%s", out)
	}
	out = mustFlowc(t, "build", "-C", dir, "-no-cache")
	if !strings.Contains(out, "(0 cached)") {
		t.Errorf("uncached build output:\n%s", out)
	}

	if got := mustFlowc(t, "cache", "stats", "-C", dir); !strings.HasSuffix(got, ": 2 modules\n") {
		t.Errorf("cache stats = %q", got)
	}
	if got := mustFlowc(t, "cache", "prune", "-C", dir, "-older", "0s"); got != "pruned 2 modules\n" {
		t.Errorf("cache prune = %q", got)
	}
}

func TestBuildWithoutManifest(t *testing.T) {
	code, _, errOut := flowc(t, "build", "-C", t.TempDir())
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "flowscript.toml") {
		t.Errorf("stderr = %q", errOut)
	}
}
