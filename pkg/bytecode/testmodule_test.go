package bytecode

// sampleModule builds a two-procedure module by hand:
//
//	int g = 10;
//	static string greeting = "hi";
//	int add(int a, int b) { return a + b; }
//	int main() { int x = add(3, 4); PRINT_INT(g = x + g); return g; }
func sampleModule() *Module {
	m := NewModule()
	m.GlobalCount = 1
	m.StaticCount = 1
	m.Variables = []Variable{
		{Scope: ScopeGlobal, Type: TypeInt, Slot: 0, Value: 10},
		{Scope: ScopeStatic, Type: TypeString, Slot: 0, Value: m.Strings.Add("hi")},
	}
	m.AddFunction(Function{Name: "PRINT_INT", Table: 0, Index: 1, ArgCount: 1, ReturnType: TypeVoid})

	m.Code = []Instruction{
		// add
		{Op: OpLoadLocal, Operand: 0},
		{Op: OpLoadLocal, Operand: 1},
		{Op: OpAdd},
		{Op: OpReturn, Aux: 1},
		// main
		PushInt(3),
		PushInt(4),
		{Op: OpCallProc, Aux: 2, Operand: 0},
		{Op: OpStoreLocal, Operand: 0},
		{Op: OpLoadLocal, Operand: 0},
		{Op: OpLoadGlobal, Operand: 0},
		{Op: OpAdd},
		{Op: OpDup},
		{Op: OpStoreGlobal, Operand: 0},
		{Op: OpCallFunc, Aux: 1, Operand: 0},
		{Op: OpPop},
		{Op: OpLoadGlobal, Operand: 0},
		{Op: OpReturn, Aux: 1},
	}
	m.AddProcedure(Procedure{Name: "add", Entry: 0, Length: 4,
		LocalTypes: []Type{TypeInt, TypeInt}, ParamCount: 2, ReturnType: TypeInt})
	m.AddProcedure(Procedure{Name: "main", Entry: 4, Length: 13,
		LocalTypes: []Type{TypeInt}, ReturnType: TypeInt})
	m.Entry = 1
	return m
}

// sumModule builds int sum(int n) { int acc = 0; for (int i = 1; i <= n; i++) acc += i; return acc; }
func sumModule() *Module {
	m := NewModule()
	m.Code = []Instruction{
		PushInt(0),
		{Op: OpStoreLocal, Operand: 2},
		PushInt(1),
		{Op: OpStoreLocal, Operand: 1},
		// 4: condition
		{Op: OpLoadLocal, Operand: 1},
		{Op: OpLoadLocal, Operand: 0},
		{Op: OpLe},
		{Op: OpJumpIfFalse, Operand: 17},
		{Op: OpLoadLocal, Operand: 2},
		{Op: OpLoadLocal, Operand: 1},
		{Op: OpAdd},
		{Op: OpStoreLocal, Operand: 2},
		{Op: OpLoadLocal, Operand: 1},
		PushInt(1),
		{Op: OpAdd},
		{Op: OpStoreLocal, Operand: 1},
		{Op: OpJump, Operand: 4},
		// 17: exit
		{Op: OpLoadLocal, Operand: 2},
		{Op: OpReturn, Aux: 1},
	}
	m.AddProcedure(Procedure{Name: "sum", Entry: 0, Length: uint32(len(m.Code)),
		LocalTypes: []Type{TypeInt, TypeInt, TypeInt}, ParamCount: 1, ReturnType: TypeInt})
	m.Entry = 0
	return m
}
