package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record sizes of the container format.
const (
	HeaderSize         = 40
	ProcedureEntrySize = 20
	FunctionEntrySize  = 12
	VariableEntrySize  = 8
)

// Encode serializes the module to the binary container format.
// Format (little-endian, fixed-width records):
//
//	[magic:4] [version:2] [flags:2]
//	[instr_count:4] [proc_count:4] [func_count:4] [var_count:4] [pool_size:4]
//	[global_slots:4] [static_slots:4] [entry:4]
//	[procedures: name:4 entry:4 length:4 types:4 locals:2 params:1 ret:1]
//	[functions:  name:4 table:2 index:2 argc:1 ret:1 reserved:2]
//	[variables:  scope:1 type:1 slot:2 value:4]
//	[string pool]
//	[instructions: op:2 aux:2 operand:4]
func (m *Module) Encode() ([]byte, error) {
	if m.Strings == nil {
		m.Strings = NewStringPool()
	}
	size := HeaderSize +
		len(m.Procedures)*ProcedureEntrySize +
		len(m.Functions)*FunctionEntrySize +
		len(m.Variables)*VariableEntrySize +
		m.Strings.Size() +
		len(m.Code)*InstructionSize
	buf := make([]byte, 0, size)

	// Header
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, m.Version)
	buf = binary.LittleEndian.AppendUint16(buf, m.Flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Code)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Procedures)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Functions)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Variables)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Strings.Size()))
	buf = binary.LittleEndian.AppendUint32(buf, m.GlobalCount)
	buf = binary.LittleEndian.AppendUint32(buf, m.StaticCount)
	buf = binary.LittleEndian.AppendUint32(buf, m.Entry)

	// Procedure table
	for i, p := range m.Procedures {
		if len(p.LocalTypes) > 0xFFFF {
			return nil, fmt.Errorf("procedure %d (%s): too many locals (%d)", i, p.Name, len(p.LocalTypes))
		}
		buf = binary.LittleEndian.AppendUint32(buf, p.NameOffset)
		buf = binary.LittleEndian.AppendUint32(buf, p.Entry)
		buf = binary.LittleEndian.AppendUint32(buf, p.Length)
		buf = binary.LittleEndian.AppendUint32(buf, p.TypesOff)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(p.LocalTypes)))
		buf = append(buf, p.ParamCount, byte(p.ReturnType))
	}

	// Imported-function table
	for _, f := range m.Functions {
		buf = binary.LittleEndian.AppendUint32(buf, f.NameOffset)
		buf = binary.LittleEndian.AppendUint16(buf, f.Table)
		buf = binary.LittleEndian.AppendUint16(buf, f.Index)
		buf = append(buf, f.ArgCount, byte(f.ReturnType))
		buf = binary.LittleEndian.AppendUint16(buf, 0)
	}

	// Static and global slots
	for _, v := range m.Variables {
		buf = append(buf, byte(v.Scope), byte(v.Type))
		buf = binary.LittleEndian.AppendUint16(buf, v.Slot)
		buf = binary.LittleEndian.AppendUint32(buf, v.Value)
	}

	// String pool
	buf = append(buf, m.Strings.Bytes()...)

	// Instructions
	for _, in := range m.Code {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(in.Op))
		buf = binary.LittleEndian.AppendUint16(buf, in.Aux)
		buf = binary.LittleEndian.AppendUint32(buf, in.Operand)
	}

	return buf, nil
}

// WriteTo writes the encoded module to w.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	data, err := m.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
