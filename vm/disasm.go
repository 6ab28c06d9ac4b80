package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction formats the instruction at offset pos in
// instrs and returns the next offset. Unknown opcode bytes, truncated
// operands and out-of-range offsets are shown rather than rejected;
// the disassembler is a diagnostic, not a validator.
func DisassembleInstruction(instrs []byte, pos int) (string, int) {
	if pos < 0 || pos >= len(instrs) {
		return fmt.Sprintf("%04d  <end of code>", pos), len(instrs)
	}
	op, ok := DecodeOpcode(instrs[pos])
	if !ok {
		return fmt.Sprintf("%04d  %s", pos, op.Name()), pos + 1
	}

	next := pos + 1
	switch op.OperandBytes() {
	case 0:
		return fmt.Sprintf("%04d  %s", pos, op.Name()), next
	default:
		if next >= len(instrs) {
			return fmt.Sprintf("%04d  %s <truncated>", pos, op.Name()), len(instrs)
		}
		return fmt.Sprintf("%04d  %s %d", pos, op.Name(), instrs[next]), next + 1
	}
}

// Disassemble returns a full disassembly of a routine, nested routines
// included.
func Disassemble(code *Code) string {
	var sb strings.Builder
	disassembleInto(&sb, code, "routine", "")
	return sb.String()
}

func disassembleInto(sb *strings.Builder, code *Code, label, indent string) {
	fmt.Fprintf(sb, "%s%s: params=%d upvalues=%d constants=%d\n",
		indent, label, code.Params, code.Upvalues, len(code.Constants))
	for i, c := range code.Constants {
		fmt.Fprintf(sb, "%s  const %d = %s\n", indent, i, c)
	}
	for pos := 0; pos < len(code.Instrs); {
		line, next := DisassembleInstruction(code.Instrs, pos)
		fmt.Fprintf(sb, "%s  %s\n", indent, line)
		pos = next
	}
	for i, nested := range code.Codes {
		disassembleInto(sb, nested, fmt.Sprintf("code %d", i), indent+"  ")
	}
}
