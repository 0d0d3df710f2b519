package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a runtime value of the reference interpreter.
type Value struct {
	Type Type
	I    int32
	F    float32
	B    bool
	S    string
}

// Void is the value produced by calls that return nothing.
var Void = Value{Type: TypeVoid}

// IntValue wraps an int.
func IntValue(i int32) Value { return Value{Type: TypeInt, I: i} }

// FloatValue wraps a float.
func FloatValue(f float32) Value { return Value{Type: TypeFloat, F: f} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Type: TypeBool, B: b} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Type: TypeString, S: s} }

// ZeroValue returns the default value of t.
func ZeroValue(t Type) Value {
	return Value{Type: t}
}

// Truthy reports whether v counts as true for conditional jumps.
func (v Value) Truthy() bool {
	switch v.Type {
	case TypeInt:
		return v.I != 0
	case TypeFloat:
		return v.F != 0
	case TypeBool:
		return v.B
	case TypeString:
		return v.S != ""
	default:
		return false
	}
}

// AsFloat converts a numeric value to float.
func (v Value) AsFloat() float32 {
	switch v.Type {
	case TypeInt:
		return float32(v.I)
	case TypeFloat:
		return v.F
	case TypeBool:
		if v.B {
			return 1
		}
	}
	return 0
}

// AsInt converts a numeric value to int, truncating floats.
func (v Value) AsInt() int32 {
	switch v.Type {
	case TypeInt:
		return v.I
	case TypeFloat:
		if math.IsNaN(float64(v.F)) {
			return 0
		}
		return int32(v.F)
	case TypeBool:
		if v.B {
			return 1
		}
	}
	return 0
}

// Equal compares two values the way OpEq does.
func (v Value) Equal(o Value) bool {
	if v.Type.IsNumeric() && o.Type.IsNumeric() {
		if v.Type == TypeInt && o.Type == TypeInt {
			return v.I == o.I
		}
		return v.AsFloat() == o.AsFloat()
	}
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeBool:
		return v.B == o.B
	case TypeString:
		return v.S == o.S
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		return strconv.Itoa(int(v.I))
	case TypeFloat:
		return strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	case TypeBool:
		return strconv.FormatBool(v.B)
	case TypeString:
		return strconv.Quote(v.S)
	case TypeVoid:
		return "void"
	default:
		return fmt.Sprintf("Value(%d)", v.Type)
	}
}

// DecodeValue turns an encoded operand or initial value into a Value.
func DecodeValue(t Type, raw uint32, pool *StringPool) Value {
	switch t {
	case TypeInt:
		return IntValue(int32(raw))
	case TypeFloat:
		return FloatValue(math.Float32frombits(raw))
	case TypeBool:
		return BoolValue(raw != 0)
	case TypeString:
		return StringValue(pool.Get(raw))
	default:
		return Void
	}
}
