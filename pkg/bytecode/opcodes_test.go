package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, ok := GetOpcodeInfo(op)
		if !ok || info.Name == "" {
			t.Errorf("Opcode 0x%02X has no metadata", uint16(op))
		}
	}
	if OpcodeCount() != 35 {
		t.Errorf("OpcodeCount() = %d, want 35", OpcodeCount())
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpDup, "DUP"},
		{OpPushString, "PUSH_STRING"},
		{OpStoreGlobal, "STORE_GLOBAL"},
		{OpJumpIfFalse, "JUMP_IF_FALSE"},
		{OpCallFunc, "CALL_FUNC"},
		{OpReturn, "RETURN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", uint16(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xEE)
	if op.Valid() {
		t.Error("0xEE should not be valid")
	}
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeCategories(t *testing.T) {
	for _, op := range AllOpcodes() {
		if op.IsJump() != (op.Operand() == OperandAddress) {
			t.Errorf("%s: IsJump disagrees with operand kind", op)
		}
		if op.IsLoad() || op.IsStore() {
			if op.Operand() != OperandSlot {
				t.Errorf("%s: load/store without slot operand", op)
			}
			if op.IsLoad() && ScopeOf(op).LoadOp() != op {
				t.Errorf("%s: ScopeOf(%s).LoadOp() mismatch", op, op)
			}
			if op.IsStore() && ScopeOf(op).StoreOp() != op {
				t.Errorf("%s: ScopeOf(%s).StoreOp() mismatch", op, op)
			}
		}
		info, _ := GetOpcodeInfo(op)
		if op.IsBinary() && (info.StackPop != 2 || info.StackPush != 1) {
			t.Errorf("%s: binary op with stack effect %d/%d", op, info.StackPop, info.StackPush)
		}
	}
	if !OpReturn.EndsBlock() || !OpJump.EndsBlock() || OpCallProc.EndsBlock() {
		t.Error("EndsBlock classification wrong")
	}
}

func TestLocalTypes(t *testing.T) {
	types := []Type{TypeInt, TypeFloat, TypeBool, TypeString}
	s := EncodeLocalTypes(types)
	if s != "ifbs" {
		t.Fatalf("EncodeLocalTypes = %q, want %q", s, "ifbs")
	}
	got, err := DecodeLocalTypes(s)
	if err != nil {
		t.Fatalf("DecodeLocalTypes: %v", err)
	}
	for i := range types {
		if got[i] != types[i] {
			t.Errorf("type %d = %s, want %s", i, got[i], types[i])
		}
	}
	if _, err := DecodeLocalTypes("ix"); err == nil {
		t.Error("expected error for unknown type code")
	}
}

func TestParseType(t *testing.T) {
	for _, want := range []Type{TypeVoid, TypeInt, TypeFloat, TypeBool, TypeString} {
		got, ok := ParseType(want.String())
		if !ok || got != want {
			t.Errorf("ParseType(%q) = %s, %v", want.String(), got, ok)
		}
	}
	if _, ok := ParseType("double"); ok {
		t.Error("ParseType accepted double")
	}
}

func TestInstructionImmediates(t *testing.T) {
	if got := PushInt(-5).Int(); got != -5 {
		t.Errorf("PushInt(-5).Int() = %d", got)
	}
	if got := PushFloat(1.5).Float(); got != 1.5 {
		t.Errorf("PushFloat(1.5).Float() = %g", got)
	}
	if !PushBool(true).Bool() || PushBool(false).Bool() {
		t.Error("PushBool immediates wrong")
	}
}
