package bytecode

import (
	"fmt"
	"math"
)

// Type is a FlowScript value type as recorded in the binary.
type Type uint8

const (
	TypeVoid Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeString
)

// String returns the source keyword for the type.
func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// ParseType returns the type named by a source keyword.
func ParseType(s string) (Type, bool) {
	for t := TypeVoid; t <= TypeString; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return TypeVoid, false
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t <= TypeString
}

// IsNumeric reports whether t is int or float.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// typeCodes are the per-slot characters of a local-types string.
var typeCodes = map[Type]byte{
	TypeInt:    'i',
	TypeFloat:  'f',
	TypeBool:   'b',
	TypeString: 's',
}

// TypeCode returns the local-types character for t, or 0 for void.
func TypeCode(t Type) byte {
	return typeCodes[t]
}

// TypeFromCode is the inverse of TypeCode.
func TypeFromCode(c byte) (Type, bool) {
	for t, code := range typeCodes {
		if code == c {
			return t, true
		}
	}
	return TypeVoid, false
}

// Scope is the storage class of a variable slot.
type Scope uint8

const (
	ScopeLocal Scope = iota
	ScopeStatic
	ScopeGlobal
)

// String returns a human-readable name for Scope.
func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeStatic:
		return "static"
	case ScopeGlobal:
		return "global"
	default:
		return fmt.Sprintf("Scope(%d)", s)
	}
}

// LoadOp returns the load opcode for the scope.
func (s Scope) LoadOp() Opcode {
	switch s {
	case ScopeStatic:
		return OpLoadStatic
	case ScopeGlobal:
		return OpLoadGlobal
	default:
		return OpLoadLocal
	}
}

// StoreOp returns the store opcode for the scope.
func (s Scope) StoreOp() Opcode {
	switch s {
	case ScopeStatic:
		return OpStoreStatic
	case ScopeGlobal:
		return OpStoreGlobal
	default:
		return OpStoreLocal
	}
}

// ScopeOf returns the storage scope addressed by a load or store opcode.
func ScopeOf(op Opcode) Scope {
	switch op {
	case OpLoadStatic, OpStoreStatic:
		return ScopeStatic
	case OpLoadGlobal, OpStoreGlobal:
		return ScopeGlobal
	default:
		return ScopeLocal
	}
}

// InstructionSize is the encoded width of every instruction.
const InstructionSize = 8

// Instruction is one fixed-width stack-machine instruction.
type Instruction struct {
	Op      Opcode
	Aux     uint16 // argument count for calls, value flag for return
	Operand uint32
}

// Int returns the operand as a signed immediate.
func (in Instruction) Int() int32 {
	return int32(in.Operand)
}

// Float returns the operand as a float immediate.
func (in Instruction) Float() float32 {
	return math.Float32frombits(in.Operand)
}

// Bool returns the operand as a bool immediate.
func (in Instruction) Bool() bool {
	return in.Operand != 0
}

// NewInstruction builds an instruction with no aux value.
func NewInstruction(op Opcode, operand uint32) Instruction {
	return Instruction{Op: op, Operand: operand}
}

// PushInt builds a push-int instruction.
func PushInt(v int32) Instruction {
	return Instruction{Op: OpPushInt, Operand: uint32(v)}
}

// PushFloat builds a push-float instruction.
func PushFloat(v float32) Instruction {
	return Instruction{Op: OpPushFloat, Operand: math.Float32bits(v)}
}

// PushBool builds a push-bool instruction.
func PushBool(v bool) Instruction {
	if v {
		return Instruction{Op: OpPushBool, Operand: 1}
	}
	return Instruction{Op: OpPushBool}
}

func (in Instruction) String() string {
	switch in.Op.Operand() {
	case OperandNone:
		if in.Op == OpReturn && in.Aux != 0 {
			return fmt.Sprintf("%s value", in.Op)
		}
		return in.Op.String()
	case OperandInt:
		return fmt.Sprintf("%s %d", in.Op, in.Int())
	case OperandFloat:
		return fmt.Sprintf("%s %g", in.Op, in.Float())
	case OperandBool:
		return fmt.Sprintf("%s %t", in.Op, in.Bool())
	case OperandString:
		return fmt.Sprintf("%s @%d", in.Op, in.Operand)
	case OperandAddress:
		return fmt.Sprintf("%s %04d", in.Op, in.Operand)
	case OperandProcedure, OperandFunction:
		return fmt.Sprintf("%s #%d argc=%d", in.Op, in.Operand, in.Aux)
	default:
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	}
}
