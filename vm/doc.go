// Package vm implements the Quill virtual machine.
//
// This package contains:
//   - Tagged value representation
//   - Compiled routine (Code) and closure (Function) objects
//   - Opcode definitions and bytecode helpers
//   - The stack-based interpreter with call-frame markers interleaved
//     on the operand stack
//   - CBOR code-image serialization
package vm
