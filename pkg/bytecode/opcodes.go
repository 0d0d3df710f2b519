package bytecode

import "fmt"

// Opcode identifies a stack-machine instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode uint16

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpPop Opcode = 0x01 // Pop top of stack
	OpDup Opcode = 0x02 // Duplicate top of stack

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpPushInt    Opcode = 0x10 // Push int32 operand
	OpPushFloat  Opcode = 0x11 // Push float32 operand (IEEE bits)
	OpPushBool   Opcode = 0x12 // Push operand != 0
	OpPushString Opcode = 0x13 // Push string at pool offset

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpLoadLocal   Opcode = 0x20 // Push local slot
	OpStoreLocal  Opcode = 0x21 // Pop into local slot
	OpLoadStatic  Opcode = 0x22 // Push static slot
	OpStoreStatic Opcode = 0x23 // Pop into static slot
	OpLoadGlobal  Opcode = 0x24 // Push global slot
	OpStoreGlobal Opcode = 0x25 // Pop into global slot

	// ========================================================================
	// Arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd Opcode = 0x30 // Pop two, push sum
	OpSub Opcode = 0x31 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x32 // Pop two, push product
	OpDiv Opcode = 0x33 // Pop two, push quotient
	OpMod Opcode = 0x34 // Pop two, push remainder
	OpNeg Opcode = 0x35 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x40-0x4F)
	// ========================================================================

	OpEq  Opcode = 0x40
	OpNe  Opcode = 0x41
	OpLt  Opcode = 0x42
	OpLe  Opcode = 0x43
	OpGt  Opcode = 0x44
	OpGe  Opcode = 0x45
	OpNot Opcode = 0x46 // Logical NOT of a bool or int

	// ========================================================================
	// Conversions (0x50-0x5F)
	// ========================================================================

	OpToInt   Opcode = 0x50
	OpToFloat Opcode = 0x51
	OpToBool  Opcode = 0x52

	// ========================================================================
	// Control flow (0x60-0x6F)
	// ========================================================================

	OpJump        Opcode = 0x60 // Jump to absolute instruction index
	OpJumpIfFalse Opcode = 0x61 // Pop, jump if falsy
	OpJumpIfTrue  Opcode = 0x62 // Pop, jump if truthy

	// ========================================================================
	// Calls and return (0x70-0x7F)
	// ========================================================================

	OpCallProc Opcode = 0x70 // aux = argc, operand = procedure index
	OpCallFunc Opcode = 0x71 // aux = argc, operand = function index
	OpReturn   Opcode = 0x72 // aux = 1 when a value is returned
)

// OperandKind describes how an instruction's operand is interpreted.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandInt
	OperandFloat
	OperandBool
	OperandString
	OperandSlot
	OperandAddress
	OperandProcedure
	OperandFunction
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	StackPop  int         // How many values popped from stack (-1 = variable)
	StackPush int         // How many values pushed to stack
	Operand   OperandKind // Operand interpretation
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0, 0, OperandNone},
	OpPop: {"POP", 1, 0, OperandNone},
	OpDup: {"DUP", 1, 2, OperandNone},

	OpPushInt:    {"PUSH_INT", 0, 1, OperandInt},
	OpPushFloat:  {"PUSH_FLOAT", 0, 1, OperandFloat},
	OpPushBool:   {"PUSH_BOOL", 0, 1, OperandBool},
	OpPushString: {"PUSH_STRING", 0, 1, OperandString},

	OpLoadLocal:   {"LOAD_LOCAL", 0, 1, OperandSlot},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, OperandSlot},
	OpLoadStatic:  {"LOAD_STATIC", 0, 1, OperandSlot},
	OpStoreStatic: {"STORE_STATIC", 1, 0, OperandSlot},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, OperandSlot},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, OperandSlot},

	OpAdd: {"ADD", 2, 1, OperandNone},
	OpSub: {"SUB", 2, 1, OperandNone},
	OpMul: {"MUL", 2, 1, OperandNone},
	OpDiv: {"DIV", 2, 1, OperandNone},
	OpMod: {"MOD", 2, 1, OperandNone},
	OpNeg: {"NEG", 1, 1, OperandNone},

	OpEq:  {"EQ", 2, 1, OperandNone},
	OpNe:  {"NE", 2, 1, OperandNone},
	OpLt:  {"LT", 2, 1, OperandNone},
	OpLe:  {"LE", 2, 1, OperandNone},
	OpGt:  {"GT", 2, 1, OperandNone},
	OpGe:  {"GE", 2, 1, OperandNone},
	OpNot: {"NOT", 1, 1, OperandNone},

	OpToInt:   {"TO_INT", 1, 1, OperandNone},
	OpToFloat: {"TO_FLOAT", 1, 1, OperandNone},
	OpToBool:  {"TO_BOOL", 1, 1, OperandNone},

	OpJump:        {"JUMP", 0, 0, OperandAddress},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, 0, OperandAddress},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, 0, OperandAddress},

	OpCallProc: {"CALL_PROC", -1, 1, OperandProcedure}, // Pops aux args
	OpCallFunc: {"CALL_FUNC", -1, 1, OperandFunction},  // Pops aux args
	OpReturn:   {"RETURN", -1, 0, OperandNone},         // Pops aux values
}

// GetOpcodeInfo returns metadata for an opcode.
// The second result is false if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%04X)", uint16(op))}, false
	}
	return info, true
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Operand returns the operand interpretation for this opcode.
func (op Opcode) Operand() OperandKind {
	info, _ := GetOpcodeInfo(op)
	return info.Operand
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpIfTrue
}

// IsConditionalJump returns true for jumps that pop a condition.
func (op Opcode) IsConditionalJump() bool {
	return op == OpJumpIfFalse || op == OpJumpIfTrue
}

// IsCall returns true for procedure and function calls.
func (op Opcode) IsCall() bool {
	return op == OpCallProc || op == OpCallFunc
}

// IsLoad returns true for variable loads.
func (op Opcode) IsLoad() bool {
	return op == OpLoadLocal || op == OpLoadStatic || op == OpLoadGlobal
}

// IsStore returns true for variable stores.
func (op Opcode) IsStore() bool {
	return op == OpStoreLocal || op == OpStoreStatic || op == OpStoreGlobal
}

// IsBinary returns true for operators that pop two values and push one.
func (op Opcode) IsBinary() bool {
	return (op >= OpAdd && op <= OpMod) || (op >= OpEq && op <= OpGe)
}

// IsConversion returns true for the to-int / to-float / to-bool family.
func (op Opcode) IsConversion() bool {
	return op >= OpToInt && op <= OpToBool
}

// EndsBlock returns true if control does not simply continue to the next
// instruction after op.
func (op Opcode) EndsBlock() bool {
	return op.IsJump() || op == OpReturn
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
