package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VirtualMachine: process-scoped state and the interpreter loop
// ---------------------------------------------------------------------------

// DefaultMaxStackDepth bounds the operand stack of every thread unless
// overridden. The bound exists to turn runaway recursion into
// ErrStackFull instead of unbounded memory growth.
const DefaultMaxStackDepth = 16384

// Unbounded is the budget value for running a thread until completion
// or error.
const Unbounded = -1

// AttrResolver is the external attribute/object model invoked by
// OpGetAttr and OpSetAttr. The core defines no member semantics of its
// own; a host that wants attribute access registers a resolver on the
// machine. Resolver errors are propagated to the caller of Execute
// unchanged.
type AttrResolver interface {
	GetAttr(object, name Value) (Value, error)
	SetAttr(object, name, value Value) error
}

// VirtualMachine holds the global namespace and executes threads. The
// namespace is empty at construction and never reset implicitly.
//
// The machine assumes a single mutator: one goroutine drives Execute
// and touches the globals. Code and Function values are immutable after
// construction and may be shared freely.
type VirtualMachine struct {
	globals  map[string]Value
	attrs    AttrResolver
	maxStack int

	log commonlog.Logger
}

// New creates a virtual machine with an empty global namespace.
func New() *VirtualMachine {
	return &VirtualMachine{
		globals:  make(map[string]Value),
		maxStack: DefaultMaxStackDepth,
		log:      commonlog.GetLogger("quill.vm"),
	}
}

// Load wraps a compiled routine in a fresh thread positioned at its
// first instruction, with an empty operand stack.
func (m *VirtualMachine) Load(code *Code) *Thread {
	m.log.Debugf("loading thread: %d instruction bytes, %d constants, %d nested codes",
		len(code.Instrs), len(code.Constants), len(code.Codes))
	return &Thread{code: code}
}

// SetAttrResolver registers the external attribute model. Passing nil
// removes it, making OpGetAttr/OpSetAttr invalid again.
func (m *VirtualMachine) SetAttrResolver(r AttrResolver) {
	m.attrs = r
}

// SetMaxStackDepth overrides the operand-stack bound for threads
// executed by this machine. Values below one are ignored.
func (m *VirtualMachine) SetMaxStackDepth(n int) {
	if n > 0 {
		m.maxStack = n
	}
}

// LookupGlobal returns a global binding by name.
func (m *VirtualMachine) LookupGlobal(name string) (Value, bool) {
	v, ok := m.globals[name]
	return v, ok
}

// SetGlobal binds a value under a global name, replacing any prior
// binding.
func (m *VirtualMachine) SetGlobal(name string, value Value) {
	m.globals[name] = value
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Execute steps the thread through at most budget instructions, or
// without bound if budget is negative. It returns true when the thread
// ran to completion and false when the budget was exhausted with work
// remaining.
//
// Execution errors are fatal to the thread: the machine does not retry
// or recover, and a thread that returned an error must not be executed
// again. The machine itself and its globals stay usable for other
// threads.
func (m *VirtualMachine) Execute(t *Thread, budget int) (bool, error) {
	for budget != 0 {
		// Fetch. Falling off the end of the routine is an implicit
		// return.
		var op Opcode
		if t.ip >= len(t.code.Instrs) {
			op = OpReturn
		} else {
			b := t.code.Instrs[t.ip]
			t.ip++
			decoded, ok := DecodeOpcode(b)
			if !ok {
				return false, m.fail(t, fmt.Errorf("opcode byte 0x%02X at offset %d: %w", b, t.ip-1, ErrInvalidInstruction))
			}
			op = decoded
		}

		done, err := m.step(t, op)
		if err != nil {
			return false, m.fail(t, err)
		}
		if done {
			return true, nil
		}

		if budget > 0 {
			budget--
		}
	}
	return false, nil
}

// fail logs an execution error before handing it to the caller.
func (m *VirtualMachine) fail(t *Thread, err error) error {
	m.log.Errorf("thread failed at offset %d: %s", t.ip, err.Error())
	return err
}

// step executes a single decoded opcode. It returns done=true when the
// thread signaled overall completion.
func (m *VirtualMachine) step(t *Thread, op Opcode) (bool, error) {
	switch op {
	case OpReturn:
		return m.stepReturn(t)

	case OpCall:
		argc, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		return false, m.stepCall(t, int(argc))

	case OpLoadConstant:
		idx, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		c, err := m.constant(t, int(idx))
		if err != nil {
			return false, err
		}
		return false, m.push(t, c)

	case OpLoadCode:
		idx, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		if int(idx) >= len(t.code.Codes) {
			return false, fmt.Errorf("%s: code index %d out of range (len=%d): %w",
				op, idx, len(t.code.Codes), ErrInvalidInstruction)
		}
		return false, m.push(t, FromCode(t.code.Codes[idx]))

	case OpMakeFunction:
		n, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		return false, m.stepMakeFunction(t, int(n))

	case OpLoadGlobal:
		idx, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		name, err := m.constantName(t, op, int(idx))
		if err != nil {
			return false, err
		}
		v, ok := m.globals[name]
		if !ok {
			v = Nil
		}
		return false, m.push(t, v)

	case OpSetGlobal:
		idx, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		name, err := m.constantName(t, op, int(idx))
		if err != nil {
			return false, err
		}
		v, err := m.pop(t, op)
		if err != nil {
			return false, err
		}
		m.globals[name] = v
		return false, nil

	case OpGetAttr:
		if t.Depth() < 2 {
			return false, fmt.Errorf("%s: need object and name: %w", op, ErrStackEmpty)
		}
		name, _ := m.pop(t, op)
		object, _ := m.pop(t, op)
		if m.attrs == nil {
			return false, fmt.Errorf("%s: no attribute resolver registered: %w", op, ErrInvalidInstruction)
		}
		v, err := m.attrs.GetAttr(object, name)
		if err != nil {
			return false, err
		}
		return false, m.push(t, v)

	case OpSetAttr:
		if t.Depth() < 3 {
			return false, fmt.Errorf("%s: need object, name and value: %w", op, ErrStackEmpty)
		}
		value, _ := m.pop(t, op)
		name, _ := m.pop(t, op)
		object, _ := m.pop(t, op)
		if m.attrs == nil {
			return false, fmt.Errorf("%s: no attribute resolver registered: %w", op, ErrInvalidInstruction)
		}
		return false, m.attrs.SetAttr(object, name, value)

	case OpPop:
		n, err := m.operand(t, op)
		if err != nil {
			return false, err
		}
		if t.Depth() < int(n) {
			return false, fmt.Errorf("%s: count %d exceeds depth %d: %w", op, n, t.Depth(), ErrStackEmpty)
		}
		t.stack = t.stack[:len(t.stack)-int(n)]
		return false, nil

	default:
		// DecodeOpcode admits only table members; reaching this is a
		// dispatch table bug.
		panic(fmt.Sprintf("vm: opcode %s decoded but not dispatched", op))
	}
}

// stepCall transfers control into a function value at depth argc, after
// adjusting the supplied arguments to its declared parameter count.
func (m *VirtualMachine) stepCall(t *Thread, argc int) error {
	if t.Depth() < argc+1 {
		return fmt.Errorf("%s: %d arguments plus callee exceed depth %d: %w",
			OpCall, argc, t.Depth(), ErrStackEmpty)
	}

	// Arguments in push order, then the callee beneath them.
	args := append([]Value(nil), t.stack[len(t.stack)-argc:]...)
	t.stack = t.stack[:len(t.stack)-argc]
	callee, _ := m.pop(t, OpCall)
	if callee.Kind() != KindFunction {
		return fmt.Errorf("%s: callee is %s, want Function: %w", OpCall, callee.Kind(), ErrInvalidInstruction)
	}

	fn := callee.Function()
	code := fn.Code()

	// There is no opcode to read upvalues inside a call yet, so
	// entering a routine that declares them would silently miscompute.
	if code.Upvalues != 0 {
		return fmt.Errorf("%s: callee declares %d upvalues, closure calls are unsupported: %w",
			OpCall, code.Upvalues, ErrInvalidInstruction)
	}

	// Pad missing positional parameters with nil, discard extras.
	if len(args) > code.Params {
		args = args[:code.Params]
	}
	for len(args) < code.Params {
		args = append(args, Nil)
	}

	// Frame marker: return instruction pointer, then the caller's code
	// object, beneath the callee's parameters.
	if err := m.push(t, FromInt(int32(t.ip))); err != nil {
		return err
	}
	if err := m.push(t, FromCode(t.code)); err != nil {
		return err
	}
	for _, a := range args {
		if err := m.push(t, a); err != nil {
			return err
		}
	}

	t.code = code
	t.ip = 0
	return nil
}

// stepReturn pops the frame marker and resumes the caller, or signals
// overall completion when the thread has no frame to return to.
func (m *VirtualMachine) stepReturn(t *Thread) (bool, error) {
	if t.Depth() == 0 {
		// Top-level return: the thread is finished.
		return true, nil
	}

	// Markers are popped in reverse of Call's push order: the caller's
	// code object first, then the return instruction pointer.
	codeVal, _ := m.pop(t, OpReturn)
	if codeVal.Kind() != KindCode {
		return false, fmt.Errorf("%s: frame marker slot is %s, want Code: %w",
			OpReturn, codeVal.Kind(), ErrInvalidInstruction)
	}
	ipVal, err := m.pop(t, OpReturn)
	if err != nil {
		return false, err
	}
	if ipVal.Kind() != KindInteger {
		return false, fmt.Errorf("%s: frame marker slot is %s, want Integer: %w",
			OpReturn, ipVal.Kind(), ErrInvalidInstruction)
	}
	// A forged marker can carry any integer. Negative would index
	// before the instruction bytes; past-the-end is the ordinary
	// implicit-return position and needs no check.
	ip := int(ipVal.Int())
	if ip < 0 {
		return false, fmt.Errorf("%s: frame marker ip %d is negative: %w",
			OpReturn, ip, ErrInvalidInstruction)
	}

	t.code = codeVal.Code()
	t.ip = ip
	return false, nil
}

// stepMakeFunction pops n upvalues and a code value and pushes the
// resulting function.
func (m *VirtualMachine) stepMakeFunction(t *Thread, n int) error {
	if t.Depth() < n+1 {
		return fmt.Errorf("%s: %d upvalues plus code exceed depth %d: %w",
			OpMakeFunction, n, t.Depth(), ErrStackEmpty)
	}

	// Upvalues in push order, the code value beneath them.
	upvalues := append([]Value(nil), t.stack[len(t.stack)-n:]...)
	t.stack = t.stack[:len(t.stack)-n]
	codeVal, _ := m.pop(t, OpMakeFunction)
	if codeVal.Kind() != KindCode {
		return fmt.Errorf("%s: target is %s, want Code: %w", OpMakeFunction, codeVal.Kind(), ErrInvalidInstruction)
	}

	return m.push(t, FromFunction(NewFunction(codeVal.Code(), upvalues)))
}

// ---------------------------------------------------------------------------
// Operand and stack helpers
// ---------------------------------------------------------------------------

// operand reads the next instruction byte as an operand. Running out of
// instruction bytes mid-instruction is malformed bytecode.
func (m *VirtualMachine) operand(t *Thread, op Opcode) (byte, error) {
	if t.ip >= len(t.code.Instrs) {
		return 0, fmt.Errorf("%s: truncated operand at offset %d: %w", op, t.ip, ErrInvalidInstruction)
	}
	b := t.code.Instrs[t.ip]
	t.ip++
	return b, nil
}

// constant returns the current routine's constant at index, bounds
// checked.
func (m *VirtualMachine) constant(t *Thread, index int) (Value, error) {
	if index >= len(t.code.Constants) {
		return Nil, fmt.Errorf("%s: constant index %d out of range (len=%d): %w",
			OpLoadConstant, index, len(t.code.Constants), ErrInvalidInstruction)
	}
	return t.code.Constants[index], nil
}

// constantName resolves a constant table entry as a global name.
func (m *VirtualMachine) constantName(t *Thread, op Opcode, index int) (string, error) {
	if index >= len(t.code.Constants) {
		return "", fmt.Errorf("%s: name constant index %d out of range (len=%d): %w",
			op, index, len(t.code.Constants), ErrInvalidInstruction)
	}
	c := t.code.Constants[index]
	if c.Kind() != KindString {
		return "", fmt.Errorf("%s: name constant is %s, want String: %w", op, c.Kind(), ErrInvalidInstruction)
	}
	return c.Str(), nil
}

func (m *VirtualMachine) push(t *Thread, v Value) error {
	if len(t.stack) >= m.maxStack {
		return fmt.Errorf("operand stack exceeds %d slots: %w", m.maxStack, ErrStackFull)
	}
	t.stack = append(t.stack, v)
	return nil
}

func (m *VirtualMachine) pop(t *Thread, op Opcode) (Value, error) {
	if len(t.stack) == 0 {
		return Nil, fmt.Errorf("%s: %w", op, ErrStackEmpty)
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v, nil
}
