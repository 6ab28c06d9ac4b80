package vm

import (
	"errors"
)

// ---------------------------------------------------------------------------
// Execution errors
// ---------------------------------------------------------------------------

// Execution errors surfaced by Execute. All of them are fatal to the
// thread that raised them: the machine does not retry or recover, the
// caller decides whether to abandon the thread, log, or exit. Match
// with errors.Is; errors returned from Execute wrap one of these with
// context.
var (
	// ErrInvalidInstruction covers a bad opcode byte, an operand index
	// past its table, a value of the wrong shape where a specific
	// variant was required, and the unsupported nonzero-upvalue call.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrStackEmpty means an operation needed more operand-stack values
	// than were present.
	ErrStackEmpty = errors.New("stack empty")

	// ErrStackFull means a push would have exceeded the operand-stack
	// bound, usually runaway recursion.
	ErrStackFull = errors.New("stack full")
)
