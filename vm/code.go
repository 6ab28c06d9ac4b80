package vm

// ---------------------------------------------------------------------------
// Code: one compiled routine
// ---------------------------------------------------------------------------

// Code represents one compiled routine. It is immutable after
// construction and shared by pointer wherever several functions or
// stack slots need the same routine.
//
// Instructions reference the constant and nested-code tables by index.
// Well-formed code keeps those indices in range, but the machine never
// assumes that: every index is bounds-checked at execution time, and a
// bad one is an ordinary execution error.
type Code struct {
	// Routine signature
	Params   int // declared positional parameters
	Upvalues int // declared captured upvalues

	// Compiled code
	Constants []Value // constant table
	Instrs    []byte  // instruction byte sequence
	Codes     []*Code // nested routines, reachable via OpLoadCode
}

// ---------------------------------------------------------------------------
// Function: routine plus captured upvalues
// ---------------------------------------------------------------------------

// Function pairs a routine with the upvalues captured at creation time.
// Both are fixed at construction; upvalues are never re-resolved from
// an enclosing scope at call time.
type Function struct {
	code     *Code
	upvalues []Value
}

// NewFunction creates a function from a routine and its captured upvalues.
// The upvalue slice is copied.
func NewFunction(code *Code, upvalues []Value) *Function {
	return &Function{
		code:     code,
		upvalues: append([]Value(nil), upvalues...),
	}
}

// Code returns the function's routine.
func (f *Function) Code() *Code {
	return f.code
}

// UpvalueCount returns the number of captured upvalues.
func (f *Function) UpvalueCount() int {
	return len(f.upvalues)
}

// Upvalue returns the captured upvalue at the given index.
// Panics if index is out of range.
func (f *Function) Upvalue(index int) Value {
	if index < 0 || index >= len(f.upvalues) {
		panic("Function.Upvalue: index out of range")
	}
	return f.upvalues[index]
}

// ---------------------------------------------------------------------------
// CodeBuilder: helper for constructing routines
// ---------------------------------------------------------------------------

// CodeBuilder helps construct Code objects, mainly for the compiler and
// for tests. The zero CodeBuilder is ready to use.
type CodeBuilder struct {
	params    int
	upvalues  int
	constants []Value
	instrs    []byte
	codes     []*Code
}

// NewCodeBuilder creates a builder for a routine with the given
// parameter and upvalue counts.
func NewCodeBuilder(params, upvalues int) *CodeBuilder {
	return &CodeBuilder{params: params, upvalues: upvalues}
}

// AddConstant appends a value to the constant table and returns its
// index.
func (b *CodeBuilder) AddConstant(v Value) int {
	b.constants = append(b.constants, v)
	return len(b.constants) - 1
}

// AddCode appends a nested routine and returns its index.
func (b *CodeBuilder) AddCode(c *Code) int {
	b.codes = append(b.codes, c)
	return len(b.codes) - 1
}

// Emit appends an opcode with no operands.
func (b *CodeBuilder) Emit(op Opcode) {
	b.instrs = append(b.instrs, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *CodeBuilder) EmitByte(op Opcode, operand byte) {
	b.instrs = append(b.instrs, byte(op), operand)
}

// EmitRaw appends a raw byte to the instruction stream.
func (b *CodeBuilder) EmitRaw(data byte) {
	b.instrs = append(b.instrs, data)
}

// Len returns the current instruction stream length.
func (b *CodeBuilder) Len() int {
	return len(b.instrs)
}

// Build returns the finished routine. The builder must not be reused
// afterwards.
func (b *CodeBuilder) Build() *Code {
	return &Code{
		Params:    b.params,
		Upvalues:  b.upvalues,
		Constants: b.constants,
		Instrs:    b.instrs,
		Codes:     b.codes,
	}
}
