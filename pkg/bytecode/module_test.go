package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for name, build := range map[string]func() *Module{"sample": sampleModule, "sum": sumModule} {
		t.Run(name, func(t *testing.T) {
			m := build()
			data, err := m.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if diff := cmp.Diff(m.Procedures, got.Procedures); diff != "" {
				t.Errorf("procedures mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(m.Functions, got.Functions); diff != "" {
				t.Errorf("functions mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(m.Variables, got.Variables); diff != "" {
				t.Errorf("variables mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(m.Code, got.Code); diff != "" {
				t.Errorf("code mismatch (-want +got):\n%s", diff)
			}
			if got.Entry != m.Entry || got.GlobalCount != m.GlobalCount || got.StaticCount != m.StaticCount {
				t.Errorf("header = entry %d globals %d statics %d", got.Entry, got.GlobalCount, got.StaticCount)
			}

			again, err := got.Encode()
			if err != nil {
				t.Fatalf("re-Encode: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Error("re-encoded binary differs from original")
			}
		})
	}
}

func TestHeaderSize(t *testing.T) {
	data, err := NewModule().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("empty module encodes to %d bytes, want %d", len(data), HeaderSize)
	}
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Entry != NoEntry || m.Procedures != nil || m.Code != nil {
		t.Errorf("decoded empty module = %+v", m)
	}
}

func TestStringPoolDeduplicates(t *testing.T) {
	sp := NewStringPool()
	a := sp.Add("hello")
	b := sp.Add("world")
	c := sp.Add("hello")
	if a != c {
		t.Errorf("duplicate string got offsets %d and %d", a, c)
	}
	if b != 6 {
		t.Errorf("second string offset = %d, want 6", b)
	}
	if sp.Size() != 12 {
		t.Errorf("Size() = %d, want 12", sp.Size())
	}
	if _, err := sp.Lookup(2); !errors.Is(err, ErrMalformedBinary) {
		t.Errorf("mid-string lookup error = %v", err)
	}
	if _, err := sp.Lookup(-1); !errors.Is(err, ErrMalformedBinary) {
		t.Errorf("negative lookup error = %v", err)
	}
}

// corrupt returns a copy of data with a little-endian u32 written at off.
func corrupt32(data []byte, off int, v uint32) []byte {
	out := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(out[off:], v)
	return out
}

func corrupt16(data []byte, off int, v uint16) []byte {
	out := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(out[off:], v)
	return out
}

func TestDecodeRejectsMalformed(t *testing.T) {
	m := sampleModule()
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	code := len(data) - len(m.Code)*InstructionSize
	instr := func(i int) int { return code + i*InstructionSize }
	funcs := HeaderSize + len(m.Procedures)*ProcedureEntrySize
	vars := funcs + len(m.Functions)*FunctionEntrySize

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("FLOX"), data[4:]...)},
		{"bad version", corrupt16(data, 4, 99)},
		{"truncated", data[:len(data)-1]},
		{"trailing byte", append(append([]byte(nil), data...), 0)},
		{"entry out of range", corrupt32(data, 36, 7)},
		{"negative name offset", corrupt32(data, HeaderSize, 0xFFFFFFFF)},
		{"name offset past pool", corrupt32(data, HeaderSize, 0x7FFFFFFF)},
		{"mid-string name offset", corrupt32(data, HeaderSize, 1)},
		{"body past code", corrupt32(data, HeaderSize+8, 1000)},
		{"empty body", corrupt32(data, HeaderSize+8, 0)},
		{"overlapping bodies", corrupt32(data, HeaderSize+8, 5)},
		{"function reserved", corrupt16(data, funcs+10, 1)},
		{"variable bad scope", corrupt16(data, vars, 0x0109)},
		{"static slots without variables", corrupt32(data, 32, 1<<22)},
		{"global slots short", corrupt32(data, 28, 0)},
		{"slot declared twice", corrupt16(corrupt32(corrupt32(data, 28, 2), 32, 0), vars+VariableEntrySize, 0x0402)},
		{"unknown opcode", corrupt16(data, instr(0), 0x00EE)},
		{"local slot out of range", corrupt32(data, instr(1)+4, 2)},
		{"jump outside code", corrupt32(corrupt16(data, instr(14), uint16(OpJump)), instr(14)+4, 500)},
		{"call argc mismatch", corrupt16(data, instr(6)+2, 1)},
		{"call index out of range", corrupt32(data, instr(6)+4, 9)},
		{"func index out of range", corrupt32(data, instr(13)+4, 3)},
		{"global slot out of range", corrupt32(data, instr(9)+4, 1)},
		{"aux on plain op", corrupt16(data, instr(2)+2, 1)},
		{"operand on plain op", corrupt32(data, instr(2)+4, 1)},
		{"return flag", corrupt16(data, instr(3)+2, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformedBinary) {
				t.Errorf("Decode error = %v, want ErrMalformedBinary", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	m := sampleModule()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	m.Code[0].Operand = 5
	if err := m.Validate(); !errors.Is(err, ErrMalformedBinary) {
		t.Errorf("Validate after corrupting slot = %v", err)
	}
}

func TestProcedureAt(t *testing.T) {
	m := sampleModule()
	if p := m.ProcedureAt(3); p == nil || p.Name != "add" {
		t.Errorf("ProcedureAt(3) = %v, want add", p)
	}
	if p := m.ProcedureAt(4); p == nil || p.Name != "main" {
		t.Errorf("ProcedureAt(4) = %v, want main", p)
	}
	if p := m.ProcedureAt(100); p != nil {
		t.Errorf("ProcedureAt(100) = %v, want nil", p)
	}
	if got := len(m.Body(&m.Procedures[1])); got != 13 {
		t.Errorf("len(Body(main)) = %d, want 13", got)
	}
}
