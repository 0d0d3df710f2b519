package bytecode

import (
	"errors"
	"fmt"
)

// FormatVersion is the current container format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

// Magic bytes for FlowScript binaries.
var Magic = [4]byte{'F', 'L', 'O', 'W'}

// NoEntry marks a module without an entry procedure.
const NoEntry uint32 = 0xFFFFFFFF

// ErrMalformedBinary is returned for any bounds or format violation found
// while reading or decompiling a binary.
var ErrMalformedBinary = errors.New("malformed binary")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedBinary, fmt.Sprintf(format, args...))
}

// Procedure is an entry in the procedure table.
type Procedure struct {
	Name       string
	NameOffset uint32
	Entry      uint32 // first instruction index
	Length     uint32 // instruction count
	LocalTypes []Type // one per local slot; parameters first
	TypesOff   uint32 // pool offset of the encoded local types
	ParamCount uint8
	ReturnType Type
}

// End returns the index one past the procedure's last instruction.
func (p *Procedure) End() uint32 {
	return p.Entry + p.Length
}

// Contains reports whether addr lies inside the procedure body.
func (p *Procedure) Contains(addr uint32) bool {
	return addr >= p.Entry && addr < p.End()
}

// Function is an entry in the imported-function table.
type Function struct {
	Name       string
	NameOffset uint32
	Table      uint16
	Index      uint16
	ArgCount   uint8
	ReturnType Type
}

// Variable describes a static or global slot and its initial value.
type Variable struct {
	Scope Scope
	Type  Type
	Slot  uint16
	Value uint32 // same encoding as the matching push instruction operand
}

// Module is a loaded or freshly compiled FlowScript binary.
type Module struct {
	Version     uint16
	Flags       uint16
	Entry       uint32 // procedure index, or NoEntry
	GlobalCount uint32
	StaticCount uint32

	Procedures []Procedure
	Functions  []Function
	Variables  []Variable
	Strings    *StringPool
	Code       []Instruction
}

// NewModule creates an empty module with the current version.
func NewModule() *Module {
	return &Module{
		Version: FormatVersion,
		Entry:   NoEntry,
		Strings: NewStringPool(),
	}
}

// AddProcedure appends a procedure, interning its name and local types.
func (m *Module) AddProcedure(p Procedure) int {
	p.NameOffset = m.Strings.Add(p.Name)
	p.TypesOff = m.Strings.Add(EncodeLocalTypes(p.LocalTypes))
	m.Procedures = append(m.Procedures, p)
	return len(m.Procedures) - 1
}

// AddFunction appends an imported function, interning its name.
func (m *Module) AddFunction(f Function) int {
	f.NameOffset = m.Strings.Add(f.Name)
	m.Functions = append(m.Functions, f)
	return len(m.Functions) - 1
}

// ProcedureIndex returns the index of the named procedure, or -1.
func (m *Module) ProcedureIndex(name string) int {
	for i := range m.Procedures {
		if m.Procedures[i].Name == name {
			return i
		}
	}
	return -1
}

// ProcedureAt returns the procedure whose body contains addr, or nil.
func (m *Module) ProcedureAt(addr uint32) *Procedure {
	for i := range m.Procedures {
		if m.Procedures[i].Contains(addr) {
			return &m.Procedures[i]
		}
	}
	return nil
}

// Body returns the instructions of procedure p.
func (m *Module) Body(p *Procedure) []Instruction {
	return m.Code[p.Entry:p.End()]
}

// EncodeLocalTypes renders a local-types descriptor string.
func EncodeLocalTypes(types []Type) string {
	buf := make([]byte, len(types))
	for i, t := range types {
		buf[i] = TypeCode(t)
	}
	return string(buf)
}

// DecodeLocalTypes parses a local-types descriptor string.
func DecodeLocalTypes(s string) ([]Type, error) {
	types := make([]Type, len(s))
	for i := 0; i < len(s); i++ {
		t, ok := TypeFromCode(s[i])
		if !ok {
			return nil, malformed("invalid local type code %q at %d", s[i], i)
		}
		types[i] = t
	}
	return types, nil
}

// ---------------------------------------------------------------------------
// StringPool: deduplicated, offset-addressed string storage
// ---------------------------------------------------------------------------

// StringPool stores NUL-terminated strings addressed by byte offset.
// The raw bytes are kept so a decoded pool re-encodes identically.
type StringPool struct {
	data    []byte
	offsets map[string]uint32
}

// NewStringPool creates an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{offsets: make(map[string]uint32)}
}

// Add interns s and returns its offset. Existing strings are reused.
func (sp *StringPool) Add(s string) uint32 {
	if off, ok := sp.offsets[s]; ok {
		return off
	}
	off := uint32(len(sp.data))
	sp.data = append(sp.data, s...)
	sp.data = append(sp.data, 0)
	sp.offsets[s] = off
	return off
}

// Size returns the pool size in bytes.
func (sp *StringPool) Size() int {
	return len(sp.data)
}

// Bytes returns the raw pool bytes.
func (sp *StringPool) Bytes() []byte {
	return sp.data
}

// IsStart reports whether off is the first byte of a pooled string.
func (sp *StringPool) IsStart(off uint32) bool {
	if int64(off) >= int64(len(sp.data)) {
		return false
	}
	return off == 0 || sp.data[off-1] == 0
}

// Get returns the string at off. Callers that accept untrusted offsets
// should use Lookup.
func (sp *StringPool) Get(off uint32) string {
	s, _ := sp.Lookup(int64(off))
	return s
}

// Lookup returns the string starting at off, validating that off lies
// inside the pool and starts a NUL-terminated string.
func (sp *StringPool) Lookup(off int64) (string, error) {
	if off < 0 || off >= int64(len(sp.data)) {
		return "", malformed("string offset %d outside pool of %d bytes", off, len(sp.data))
	}
	if off > 0 && sp.data[off-1] != 0 {
		return "", malformed("string offset %d does not start a string", off)
	}
	for end := off; end < int64(len(sp.data)); end++ {
		if sp.data[end] == 0 {
			return string(sp.data[off:end]), nil
		}
	}
	return "", malformed("string at offset %d is not terminated", off)
}

// loadStringPool wraps raw pool bytes read from a binary.
func loadStringPool(data []byte) (*StringPool, error) {
	if len(data) > 0 && data[len(data)-1] != 0 {
		return nil, malformed("string pool is not NUL-terminated")
	}
	sp := &StringPool{
		data:    append([]byte(nil), data...),
		offsets: make(map[string]uint32),
	}
	start := 0
	for i, b := range sp.data {
		if b != 0 {
			continue
		}
		s := string(sp.data[start:i])
		if _, dup := sp.offsets[s]; !dup {
			sp.offsets[s] = uint32(start)
		}
		start = i + 1
	}
	return sp, nil
}
