package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the module.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; FlowScript binary v%d\n", m.Version))
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X\n", m.Flags))
	sb.WriteString(fmt.Sprintf("; Instructions: %d, globals: %d, statics: %d\n",
		len(m.Code), m.GlobalCount, m.StaticCount))
	if m.Entry != NoEntry && int(m.Entry) < len(m.Procedures) {
		sb.WriteString(fmt.Sprintf("; Entry: %s\n", m.Procedures[m.Entry].Name))
	}
	sb.WriteString("\n")

	// Imported functions
	if len(m.Functions) > 0 {
		sb.WriteString("; Functions:\n")
		for i, f := range m.Functions {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s %s (table %d, index 0x%04X, argc %d)\n",
				i, f.ReturnType, f.Name, f.Table, f.Index, f.ArgCount))
		}
		sb.WriteString("\n")
	}

	// Storage
	if len(m.Variables) > 0 {
		sb.WriteString("; Variables:\n")
		for _, v := range m.Variables {
			sb.WriteString(fmt.Sprintf(";   %s %s [%d] = %s\n",
				v.Scope, v.Type, v.Slot, m.formatValue(v.Type, v.Value)))
		}
		sb.WriteString("\n")
	}

	// Code, grouped by procedure
	targets := m.jumpTargets()
	for i := range m.Procedures {
		p := &m.Procedures[i]
		sb.WriteString(fmt.Sprintf("; === %s (%d params, %d locals, returns %s) ===\n",
			p.Name, p.ParamCount, len(p.LocalTypes), p.ReturnType))
		for addr := p.Entry; addr < p.End() && int(addr) < len(m.Code); addr++ {
			if targets[addr] {
				sb.WriteString(fmt.Sprintf("L%04d:\n", addr))
			}
			sb.WriteString(fmt.Sprintf("  %04d  %s\n", addr, m.disassembleInstruction(m.Code[addr])))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// jumpTargets returns the set of addresses referenced by jumps.
func (m *Module) jumpTargets() map[uint32]bool {
	targets := make(map[uint32]bool)
	for _, in := range m.Code {
		if in.Op.IsJump() {
			targets[in.Operand] = true
		}
	}
	return targets
}

// disassembleInstruction renders one instruction with resolved operands.
func (m *Module) disassembleInstruction(in Instruction) string {
	name := fmt.Sprintf("%-14s", in.Op.String())
	switch in.Op.Operand() {
	case OperandString:
		s := m.Strings.Get(in.Operand)
		// Truncate long strings for readability
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return fmt.Sprintf("%s %q", name, s)
	case OperandAddress:
		return fmt.Sprintf("%s L%04d", name, in.Operand)
	case OperandProcedure:
		if int(in.Operand) < len(m.Procedures) {
			return fmt.Sprintf("%s %s/%d", name, m.Procedures[in.Operand].Name, in.Aux)
		}
	case OperandFunction:
		if int(in.Operand) < len(m.Functions) {
			return fmt.Sprintf("%s %s/%d", name, m.Functions[in.Operand].Name, in.Aux)
		}
	}
	return in.String()
}

func (m *Module) formatValue(t Type, raw uint32) string {
	switch t {
	case TypeInt:
		return fmt.Sprintf("%d", int32(raw))
	case TypeFloat:
		return fmt.Sprintf("%g", Instruction{Operand: raw}.Float())
	case TypeBool:
		return fmt.Sprintf("%t", raw != 0)
	case TypeString:
		return fmt.Sprintf("%q", m.Strings.Get(raw))
	default:
		return fmt.Sprintf("0x%08X", raw)
	}
}
