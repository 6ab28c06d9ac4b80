package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. Each instruction is
// one opcode byte followed by the fixed number of one-byte operands
// listed in the opcode table. Operand widths are part of the wire
// format; a byte that decodes to no opcode is a first-class execution
// error, not a programming assumption.
type Opcode byte

const (
	OpReturn       Opcode = 0x00 // pop frame marker, resume caller (implicit at end of code)
	OpCall         Opcode = 0x01 // call function with N arguments
	OpLoadConstant Opcode = 0x02 // push constant table entry
	OpLoadCode     Opcode = 0x03 // push nested code table entry
	OpMakeFunction Opcode = 0x04 // pop N upvalues + code, push function
	OpLoadGlobal   Opcode = 0x05 // push global bound under constant name, or nil
	OpSetGlobal    Opcode = 0x06 // pop value, bind under constant name
	OpGetAttr      Opcode = 0x07 // pop name + object, push attribute (host resolver)
	OpSetAttr      Opcode = 0x08 // pop value + name + object, store attribute (host resolver)
	OpPop          Opcode = 0x09 // discard N values
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of one-byte operands
}

// opcodeTable maps opcodes to their metadata. Membership in this table
// is what makes a byte a valid opcode.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpReturn:       {"RETURN", 0},
	OpCall:         {"CALL", 1},
	OpLoadConstant: {"LOAD_CONSTANT", 1},
	OpLoadCode:     {"LOAD_CODE", 1},
	OpMakeFunction: {"MAKE_FUNCTION", 1},
	OpLoadGlobal:   {"LOAD_GLOBAL", 1},
	OpSetGlobal:    {"SET_GLOBAL", 1},
	OpGetAttr:      {"GET_ATTR", 0},
	OpSetAttr:      {"SET_ATTR", 0},
	OpPop:          {"POP", 1},
}

// DecodeOpcode decodes an instruction byte. The second result is false
// for bytes with no assigned opcode.
func DecodeOpcode(b byte) (Opcode, bool) {
	op := Opcode(b)
	_, ok := opcodeTable[op]
	return op, ok
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
