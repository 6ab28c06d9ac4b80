package vm

// ---------------------------------------------------------------------------
// Thread: one execution context
// ---------------------------------------------------------------------------

// Thread is one suspended or running execution context: the routine
// being executed, the instruction pointer into its bytecode, and the
// operand stack. Call frames are not a separate structure; across a
// call, the return instruction pointer and the caller's code object are
// pushed onto the operand stack beneath the callee's values and popped
// again on return.
//
// Threads are created by VirtualMachine.Load and mutated only by
// Execute. Independent threads may coexist against one machine and can
// be interleaved cooperatively by executing each with a small budget.
type Thread struct {
	code  *Code
	ip    int
	stack []Value
}

// Code returns the routine the thread is currently executing.
func (t *Thread) Code() *Code {
	return t.code
}

// IP returns the current instruction pointer.
func (t *Thread) IP() int {
	return t.ip
}

// Depth returns the current operand-stack depth, frame markers
// included.
func (t *Thread) Depth() int {
	return len(t.stack)
}

// Peek returns the value at the given depth from the top of the stack
// (0 = last pushed).
// Panics if depth is out of range.
func (t *Thread) Peek(depth int) Value {
	if depth < 0 || depth >= len(t.stack) {
		panic("Thread.Peek: depth out of range")
	}
	return t.stack[len(t.stack)-1-depth]
}
