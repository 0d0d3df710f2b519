package bytecode

import (
	"errors"
	"fmt"
)

// Runtime errors reported by the reference interpreter.
var (
	ErrStepLimit        = errors.New("step limit exceeded")
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrUnknownProc      = errors.New("unknown procedure")
	ErrCallDepth        = errors.New("call depth exceeded")
	ErrBadInstruction   = errors.New("bad instruction")
	ErrNoEntryProcedure = errors.New("module has no entry procedure")
)

// HostFunc implements an imported function.
type HostFunc func(args []Value) (Value, error)

// HostCall records one imported-function call made by a script.
type HostCall struct {
	Function string
	Table    uint16
	Index    uint16
	Args     []Value
}

func (c HostCall) String() string {
	s := c.Function + "("
	for i, a := range c.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

// frame is an active procedure invocation.
type frame struct {
	proc   *Procedure
	ret    uint32 // caller resume address
	base   int    // operand stack height at entry
	locals []Value
}

// VM executes a module. Static and global storage is allocated once when
// the VM is created and lives until the VM is discarded; every procedure
// invocation gets freshly initialised locals.
type VM struct {
	module  *Module
	globals []Value
	statics []Value
	host    map[string]HostFunc

	stack  []Value
	frames []frame
	ip     uint32
	steps  int

	// MaxSteps bounds execution; zero means unlimited.
	MaxSteps int

	// MaxDepth bounds procedure nesting.
	MaxDepth int

	// OnHostCall is invoked for every imported-function call.
	OnHostCall func(HostCall)

	// Trace, if set, receives every executed instruction.
	Trace func(addr uint32, in Instruction, stackDepth int)
}

// NewVM creates an interpreter for m and initialises static and global
// storage from the module's variable table.
func NewVM(m *Module) *VM {
	vm := &VM{
		module:   m,
		globals:  make([]Value, m.GlobalCount),
		statics:  make([]Value, m.StaticCount),
		host:     make(map[string]HostFunc),
		stack:    make([]Value, 0, 64),
		MaxDepth: 256,
	}
	for i := range vm.globals {
		vm.globals[i] = IntValue(0)
	}
	for i := range vm.statics {
		vm.statics[i] = IntValue(0)
	}
	for _, v := range m.Variables {
		val := DecodeValue(v.Type, v.Value, m.Strings)
		if v.Scope == ScopeStatic {
			vm.statics[v.Slot] = val
		} else {
			vm.globals[v.Slot] = val
		}
	}
	return vm
}

// Register installs a host implementation for an imported function.
func (vm *VM) Register(name string, fn HostFunc) {
	vm.host[name] = fn
}

// Global returns the value of a global slot.
func (vm *VM) Global(slot int) Value {
	return vm.globals[slot]
}

// Static returns the value of a static slot.
func (vm *VM) Static(slot int) Value {
	return vm.statics[slot]
}

// Steps returns the number of instructions executed so far.
func (vm *VM) Steps() int {
	return vm.steps
}

// RunEntry calls the module's entry procedure with no arguments.
func (vm *VM) RunEntry() (Value, error) {
	if vm.module.Entry == NoEntry {
		return Void, ErrNoEntryProcedure
	}
	return vm.invoke(int(vm.module.Entry), nil)
}

// Call invokes the named procedure.
func (vm *VM) Call(name string, args ...Value) (Value, error) {
	idx := vm.module.ProcedureIndex(name)
	if idx < 0 {
		return Void, fmt.Errorf("%w: %s", ErrUnknownProc, name)
	}
	return vm.invoke(idx, args)
}

func (vm *VM) invoke(idx int, args []Value) (Value, error) {
	p := &vm.module.Procedures[idx]
	if len(args) != int(p.ParamCount) {
		return Void, fmt.Errorf("%s takes %d arguments, got %d", p.Name, p.ParamCount, len(args))
	}
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.stack = append(vm.stack, args...)
	vm.enter(p, NoEntry)
	return vm.run()
}

// enter pushes a frame for p, moving its arguments off the operand stack.
func (vm *VM) enter(p *Procedure, ret uint32) {
	locals := make([]Value, len(p.LocalTypes))
	for i, t := range p.LocalTypes {
		locals[i] = ZeroValue(t)
	}
	argc := int(p.ParamCount)
	base := len(vm.stack) - argc
	copy(locals, vm.stack[base:])
	vm.stack = vm.stack[:base]
	vm.frames = append(vm.frames, frame{proc: p, ret: ret, base: base, locals: locals})
	vm.ip = p.Entry
}

// run is the main execution loop.
func (vm *VM) run() (Value, error) {
	code := vm.module.Code
	for {
		if vm.MaxSteps > 0 && vm.steps >= vm.MaxSteps {
			return Void, ErrStepLimit
		}
		fr := &vm.frames[len(vm.frames)-1]
		if !fr.proc.Contains(vm.ip) {
			return Void, fmt.Errorf("%w: ip %d left %s", ErrBadInstruction, vm.ip, fr.proc.Name)
		}
		in := code[vm.ip]
		if vm.Trace != nil {
			vm.Trace(vm.ip, in, len(vm.stack))
		}
		vm.ip++
		vm.steps++

		switch in.Op {
		// ============ Stack Operations ============
		case OpNop:

		case OpPop:
			if _, err := vm.pop(); err != nil {
				return Void, err
			}

		case OpDup:
			v, err := vm.peek()
			if err != nil {
				return Void, err
			}
			vm.push(v)

		// ============ Constants ============
		case OpPushInt:
			vm.push(IntValue(in.Int()))
		case OpPushFloat:
			vm.push(FloatValue(in.Float()))
		case OpPushBool:
			vm.push(BoolValue(in.Bool()))
		case OpPushString:
			vm.push(StringValue(vm.module.Strings.Get(in.Operand)))

		// ============ Variables ============
		case OpLoadLocal:
			vm.push(fr.locals[in.Operand])
		case OpLoadStatic:
			vm.push(vm.statics[in.Operand])
		case OpLoadGlobal:
			vm.push(vm.globals[in.Operand])

		case OpStoreLocal, OpStoreStatic, OpStoreGlobal:
			v, err := vm.pop()
			if err != nil {
				return Void, err
			}
			switch in.Op {
			case OpStoreLocal:
				fr.locals[in.Operand] = v
			case OpStoreStatic:
				vm.statics[in.Operand] = v
			default:
				vm.globals[in.Operand] = v
			}

		// ============ Operators ============
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			b, err := vm.pop()
			if err != nil {
				return Void, err
			}
			a, err := vm.pop()
			if err != nil {
				return Void, err
			}
			r, err := binaryOp(in.Op, a, b)
			if err != nil {
				return Void, fmt.Errorf("at %d: %w", vm.ip-1, err)
			}
			vm.push(r)

		case OpNeg, OpNot, OpToInt, OpToFloat, OpToBool:
			a, err := vm.pop()
			if err != nil {
				return Void, err
			}
			vm.push(unaryOp(in.Op, a))

		// ============ Control Flow ============
		case OpJump:
			vm.ip = in.Operand

		case OpJumpIfFalse, OpJumpIfTrue:
			c, err := vm.pop()
			if err != nil {
				return Void, err
			}
			if c.Truthy() == (in.Op == OpJumpIfTrue) {
				vm.ip = in.Operand
			}

		// ============ Calls ============
		case OpCallProc:
			if len(vm.frames) >= vm.MaxDepth {
				return Void, ErrCallDepth
			}
			if len(vm.stack)-fr.base < int(in.Aux) {
				return Void, ErrStackUnderflow
			}
			vm.enter(&vm.module.Procedures[in.Operand], vm.ip)

		case OpCallFunc:
			if len(vm.stack)-fr.base < int(in.Aux) {
				return Void, ErrStackUnderflow
			}
			args := append([]Value(nil), vm.stack[len(vm.stack)-int(in.Aux):]...)
			vm.stack = vm.stack[:len(vm.stack)-int(in.Aux)]
			r, err := vm.callHost(&vm.module.Functions[in.Operand], args)
			if err != nil {
				return Void, err
			}
			vm.push(r)

		case OpReturn:
			result := Void
			if in.Aux != 0 {
				v, err := vm.pop()
				if err != nil {
					return Void, err
				}
				result = v
			}
			vm.stack = vm.stack[:fr.base]
			ret := fr.ret
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return result, nil
			}
			vm.push(result)
			vm.ip = ret

		default:
			return Void, fmt.Errorf("%w: %s at %d", ErrBadInstruction, in.Op, vm.ip-1)
		}
	}
}

func (vm *VM) callHost(f *Function, args []Value) (Value, error) {
	if vm.OnHostCall != nil {
		vm.OnHostCall(HostCall{Function: f.Name, Table: f.Table, Index: f.Index, Args: args})
	}
	if fn, ok := vm.host[f.Name]; ok {
		r, err := fn(args)
		if err != nil {
			return Void, fmt.Errorf("%s: %w", f.Name, err)
		}
		return r, nil
	}
	if f.ReturnType == TypeVoid {
		return Void, nil
	}
	return ZeroValue(f.ReturnType), nil
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (Value, error) {
	fr := &vm.frames[len(vm.frames)-1]
	if len(vm.stack) <= fr.base {
		return Void, ErrStackUnderflow
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek() (Value, error) {
	fr := &vm.frames[len(vm.frames)-1]
	if len(vm.stack) <= fr.base {
		return Void, ErrStackUnderflow
	}
	return vm.stack[len(vm.stack)-1], nil
}

func binaryOp(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return BoolValue(a.Equal(b)), nil
	case OpNe:
		return BoolValue(!a.Equal(b)), nil
	}

	if a.Type == TypeInt && b.Type == TypeInt {
		x, y := a.I, b.I
		switch op {
		case OpAdd:
			return IntValue(x + y), nil
		case OpSub:
			return IntValue(x - y), nil
		case OpMul:
			return IntValue(x * y), nil
		case OpDiv:
			if y == 0 {
				return Void, ErrDivisionByZero
			}
			return IntValue(x / y), nil
		case OpMod:
			if y == 0 {
				return Void, ErrDivisionByZero
			}
			return IntValue(x % y), nil
		case OpLt:
			return BoolValue(x < y), nil
		case OpLe:
			return BoolValue(x <= y), nil
		case OpGt:
			return BoolValue(x > y), nil
		case OpGe:
			return BoolValue(x >= y), nil
		}
	}

	if a.Type == TypeString && b.Type == TypeString && op == OpAdd {
		return StringValue(a.S + b.S), nil
	}

	x, y := a.AsFloat(), b.AsFloat()
	switch op {
	case OpAdd:
		return FloatValue(x + y), nil
	case OpSub:
		return FloatValue(x - y), nil
	case OpMul:
		return FloatValue(x * y), nil
	case OpDiv:
		if y == 0 {
			return Void, ErrDivisionByZero
		}
		return FloatValue(x / y), nil
	case OpMod:
		if y == 0 {
			return Void, ErrDivisionByZero
		}
		return FloatValue(x - y*float32(int32(x/y))), nil
	case OpLt:
		return BoolValue(x < y), nil
	case OpLe:
		return BoolValue(x <= y), nil
	case OpGt:
		return BoolValue(x > y), nil
	case OpGe:
		return BoolValue(x >= y), nil
	}
	return Void, fmt.Errorf("%w: %s", ErrBadInstruction, op)
}

func unaryOp(op Opcode, a Value) Value {
	switch op {
	case OpNeg:
		if a.Type == TypeFloat {
			return FloatValue(-a.F)
		}
		return IntValue(-a.AsInt())
	case OpNot:
		return BoolValue(!a.Truthy())
	case OpToInt:
		return IntValue(a.AsInt())
	case OpToFloat:
		return FloatValue(a.AsFloat())
	default:
		return BoolValue(a.Truthy())
	}
}
