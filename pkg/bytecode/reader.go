package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// ---------------------------------------------------------------------------
// Reader: strict decoding of the binary container format
// ---------------------------------------------------------------------------

// Header contains the parsed fixed-size header of a binary.
type Header struct {
	Version          uint16
	Flags            uint16
	InstructionCount uint32
	ProcedureCount   uint32
	FunctionCount    uint32
	VariableCount    uint32
	StringPoolSize   uint32
	GlobalCount      uint32
	StaticCount      uint32
	Entry            uint32
}

type reader struct {
	data   []byte
	offset int
}

func (r *reader) u8() uint8 {
	v := r.data[r.offset]
	r.offset++
	return v
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v
}

// ReadHeader parses and validates the header of data.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, malformed("need at least %d header bytes, got %d", HeaderSize, len(data))
	}
	if [4]byte(data[0:4]) != Magic {
		return nil, malformed("invalid magic %q", data[0:4])
	}
	r := &reader{data: data, offset: 4}
	h := &Header{
		Version:          r.u16(),
		Flags:            r.u16(),
		InstructionCount: r.u32(),
		ProcedureCount:   r.u32(),
		FunctionCount:    r.u32(),
		VariableCount:    r.u32(),
		StringPoolSize:   r.u32(),
		GlobalCount:      r.u32(),
		StaticCount:      r.u32(),
		Entry:            r.u32(),
	}
	if h.Version != FormatVersion {
		return nil, malformed("unsupported version %d (want %d)", h.Version, FormatVersion)
	}

	// Sizes are computed in 64 bits so hostile counts cannot wrap.
	want := int64(HeaderSize) +
		int64(h.ProcedureCount)*ProcedureEntrySize +
		int64(h.FunctionCount)*FunctionEntrySize +
		int64(h.VariableCount)*VariableEntrySize +
		int64(h.StringPoolSize) +
		int64(h.InstructionCount)*InstructionSize
	if want != int64(len(data)) {
		return nil, malformed("section sizes total %d bytes but binary has %d", want, len(data))
	}
	// Every storage slot has exactly one variable entry, so the slot counts
	// are bounded by the binary's size.
	if int64(h.GlobalCount)+int64(h.StaticCount) != int64(h.VariableCount) {
		return nil, malformed("%d global and %d static slots but %d variable entries",
			h.GlobalCount, h.StaticCount, h.VariableCount)
	}
	if h.Entry != NoEntry && h.Entry >= h.ProcedureCount {
		return nil, malformed("entry procedure %d outside table of %d", h.Entry, h.ProcedureCount)
	}
	return h, nil
}

// Decode parses a binary, validating every table entry and every operand.
// The first violation aborts decoding with ErrMalformedBinary.
func Decode(data []byte) (*Module, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	m := &Module{
		Version:     h.Version,
		Flags:       h.Flags,
		Entry:       h.Entry,
		GlobalCount: h.GlobalCount,
		StaticCount: h.StaticCount,
	}

	// The string pool sits after the three tables; load it first so table
	// entries can be checked against it as they are read.
	poolStart := HeaderSize +
		int(h.ProcedureCount)*ProcedureEntrySize +
		int(h.FunctionCount)*FunctionEntrySize +
		int(h.VariableCount)*VariableEntrySize
	poolEnd := poolStart + int(h.StringPoolSize)
	m.Strings, err = loadStringPool(data[poolStart:poolEnd])
	if err != nil {
		return nil, err
	}

	r := &reader{data: data, offset: HeaderSize}

	m.Procedures = makeTable[Procedure](h.ProcedureCount)
	for i := range m.Procedures {
		p, err := readProcedure(r, m.Strings, h.InstructionCount)
		if err != nil {
			return nil, fmt.Errorf("procedure %d: %w", i, err)
		}
		m.Procedures[i] = p
	}
	if err := checkOverlap(m.Procedures); err != nil {
		return nil, err
	}

	m.Functions = makeTable[Function](h.FunctionCount)
	for i := range m.Functions {
		f, err := readFunction(r, m.Strings)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		m.Functions[i] = f
	}

	m.Variables = makeTable[Variable](h.VariableCount)
	seen := map[Scope][]bool{
		ScopeGlobal: make([]bool, h.GlobalCount),
		ScopeStatic: make([]bool, h.StaticCount),
	}
	for i := range m.Variables {
		v, err := readVariable(r, m)
		if err != nil {
			return nil, fmt.Errorf("variable %d: %w", i, err)
		}
		if seen[v.Scope][v.Slot] {
			return nil, malformed("variable %d: %s slot %d declared twice", i, v.Scope, v.Slot)
		}
		seen[v.Scope][v.Slot] = true
		m.Variables[i] = v
	}

	r.offset = poolEnd
	m.Code = makeTable[Instruction](h.InstructionCount)
	for i := range m.Code {
		m.Code[i] = Instruction{Op: Opcode(r.u16()), Aux: r.u16(), Operand: r.u32()}
	}
	for i := range m.Code {
		if err := m.checkInstruction(uint32(i)); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// makeTable allocates a table of n entries; empty tables stay nil, as in
// a module built with NewModule.
func makeTable[T any](n uint32) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}

// ReadModule reads and decodes a whole binary from r.
func ReadModule(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	return Decode(data)
}

// poolOffset interprets a raw table offset. Offsets are signed on disk;
// anything negative is rejected rather than wrapped.
func poolOffset(raw uint32) int64 {
	return int64(int32(raw))
}

func readProcedure(r *reader, pool *StringPool, instrCount uint32) (Procedure, error) {
	p := Procedure{
		NameOffset: r.u32(),
		Entry:      r.u32(),
		Length:     r.u32(),
		TypesOff:   r.u32(),
	}
	localCount := r.u16()
	p.ParamCount = r.u8()
	p.ReturnType = Type(r.u8())

	var err error
	if p.Name, err = pool.Lookup(poolOffset(p.NameOffset)); err != nil {
		return p, fmt.Errorf("name: %w", err)
	}
	types, err := pool.Lookup(poolOffset(p.TypesOff))
	if err != nil {
		return p, fmt.Errorf("local types: %w", err)
	}
	if len(types) != int(localCount) {
		return p, malformed("local types %q do not match local count %d", types, localCount)
	}
	if p.LocalTypes, err = DecodeLocalTypes(types); err != nil {
		return p, err
	}
	if int(p.ParamCount) > int(localCount) {
		return p, malformed("%d parameters exceed %d locals", p.ParamCount, localCount)
	}
	if !p.ReturnType.Valid() {
		return p, malformed("invalid return type %d", p.ReturnType)
	}
	if p.Length == 0 {
		return p, malformed("empty body")
	}
	if int64(p.Entry)+int64(p.Length) > int64(instrCount) {
		return p, malformed("body [%d, %d) outside instruction section of %d",
			p.Entry, int64(p.Entry)+int64(p.Length), instrCount)
	}
	return p, nil
}

func checkOverlap(procs []Procedure) error {
	order := make([]int, len(procs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return procs[order[a]].Entry < procs[order[b]].Entry })
	for i := 1; i < len(order); i++ {
		prev, cur := &procs[order[i-1]], &procs[order[i]]
		if cur.Entry < prev.End() {
			return malformed("procedures %q and %q overlap", prev.Name, cur.Name)
		}
	}
	return nil
}

func readFunction(r *reader, pool *StringPool) (Function, error) {
	f := Function{
		NameOffset: r.u32(),
		Table:      r.u16(),
		Index:      r.u16(),
		ArgCount:   r.u8(),
		ReturnType: Type(r.u8()),
	}
	reserved := r.u16()

	var err error
	if f.Name, err = pool.Lookup(poolOffset(f.NameOffset)); err != nil {
		return f, fmt.Errorf("name: %w", err)
	}
	if !f.ReturnType.Valid() {
		return f, malformed("invalid return type %d", f.ReturnType)
	}
	if reserved != 0 {
		return f, malformed("reserved field is %d", reserved)
	}
	return f, nil
}

func readVariable(r *reader, m *Module) (Variable, error) {
	v := Variable{
		Scope: Scope(r.u8()),
		Type:  Type(r.u8()),
		Slot:  r.u16(),
		Value: r.u32(),
	}
	switch v.Scope {
	case ScopeStatic:
		if uint32(v.Slot) >= m.StaticCount {
			return v, malformed("static slot %d outside %d slots", v.Slot, m.StaticCount)
		}
	case ScopeGlobal:
		if uint32(v.Slot) >= m.GlobalCount {
			return v, malformed("global slot %d outside %d slots", v.Slot, m.GlobalCount)
		}
	default:
		return v, malformed("invalid scope %d", v.Scope)
	}
	switch v.Type {
	case TypeInt, TypeFloat:
	case TypeBool:
		if v.Value > 1 {
			return v, malformed("bool value %d", v.Value)
		}
	case TypeString:
		if _, err := m.Strings.Lookup(poolOffset(v.Value)); err != nil {
			return v, err
		}
	default:
		return v, malformed("invalid type %d", v.Type)
	}
	return v, nil
}

// checkInstruction validates the instruction at addr against the module's
// tables.
func (m *Module) checkInstruction(addr uint32) error {
	in := m.Code[addr]
	info, ok := GetOpcodeInfo(in.Op)
	if !ok {
		return malformed("instruction %d: unknown opcode 0x%04X", addr, uint16(in.Op))
	}
	fail := func(format string, args ...any) error {
		return malformed("instruction %d (%s): %s", addr, info.Name, fmt.Sprintf(format, args...))
	}

	usesAux := in.Op.IsCall() || in.Op == OpReturn
	if !usesAux && in.Aux != 0 {
		return fail("unexpected aux %d", in.Aux)
	}

	switch info.Operand {
	case OperandNone:
		if in.Operand != 0 {
			return fail("unexpected operand %d", in.Operand)
		}
		if in.Op == OpReturn && in.Aux > 1 {
			return fail("return value flag %d", in.Aux)
		}
	case OperandBool:
		if in.Operand > 1 {
			return fail("bool operand %d", in.Operand)
		}
	case OperandString:
		if _, err := m.Strings.Lookup(poolOffset(in.Operand)); err != nil {
			return fmt.Errorf("instruction %d: %w", addr, err)
		}
	case OperandAddress:
		if in.Operand >= uint32(len(m.Code)) {
			return fail("jump target %d outside instruction section of %d", in.Operand, len(m.Code))
		}
	case OperandProcedure:
		if in.Operand >= uint32(len(m.Procedures)) {
			return fail("procedure %d outside table of %d", in.Operand, len(m.Procedures))
		}
		if p := &m.Procedures[in.Operand]; in.Aux != uint16(p.ParamCount) {
			return fail("%d arguments for %q which takes %d", in.Aux, p.Name, p.ParamCount)
		}
	case OperandFunction:
		if in.Operand >= uint32(len(m.Functions)) {
			return fail("function %d outside table of %d", in.Operand, len(m.Functions))
		}
		if f := &m.Functions[in.Operand]; in.Aux != uint16(f.ArgCount) {
			return fail("%d arguments for %q which takes %d", in.Aux, f.Name, f.ArgCount)
		}
	case OperandSlot:
		switch ScopeOf(in.Op) {
		case ScopeStatic:
			if in.Operand >= m.StaticCount {
				return fail("static slot %d outside %d slots", in.Operand, m.StaticCount)
			}
		case ScopeGlobal:
			if in.Operand >= m.GlobalCount {
				return fail("global slot %d outside %d slots", in.Operand, m.GlobalCount)
			}
		default:
			p := m.ProcedureAt(addr)
			if p == nil {
				return fail("local access outside any procedure")
			}
			if in.Operand >= uint32(len(p.LocalTypes)) {
				return fail("local slot %d outside %d locals of %q", in.Operand, len(p.LocalTypes), p.Name)
			}
		}
	}
	return nil
}

// Validate runs the reader's checks over an in-memory module.
func (m *Module) Validate() error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	_, err = Decode(data)
	return err
}
