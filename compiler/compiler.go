// Package compiler turns Quill source text into compiled routines.
//
// The front end is a stub: Compile reads and discards the source and
// emits one fixed program, a routine that wraps its single nested
// routine into a function and binds it under the global name "main".
// The virtual machine makes no assumptions about how a Code was
// produced, so the stub is a drop-in stand-in for the real compiler.
package compiler

import (
	"io"

	"github.com/quill-lang/quill/vm"
)

// CompileError describes a failure to compile source text. It is a
// taxonomy disjoint from the machine's execution errors and is
// surfaced to the caller unchanged.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string {
	return e.Msg
}

// Compile consumes Quill source and produces its compiled routine.
func Compile(src io.Reader) (*vm.Code, error) {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return nil, &CompileError{Msg: "unreadable source: " + err.Error()}
	}

	// main: calls the global "Child" with one argument, asks the
	// result for its "greet" attribute, calls that, and drops the
	// value it still holds.
	child := vm.NewCodeBuilder(0, 0)
	argConst := child.AddConstant(vm.FromInt(4))
	childName := child.AddConstant(vm.FromString("Child"))
	greetName := child.AddConstant(vm.FromString("greet"))
	child.EmitByte(vm.OpLoadGlobal, byte(childName))
	child.EmitByte(vm.OpLoadConstant, byte(argConst))
	// Stack: <Child> 4
	child.EmitByte(vm.OpCall, 1)
	// Stack: c
	child.EmitByte(vm.OpLoadConstant, byte(greetName))
	child.Emit(vm.OpGetAttr)
	// Stack: <c.greet>
	child.EmitByte(vm.OpCall, 0)
	// Stack: result
	child.EmitByte(vm.OpPop, 1)

	top := vm.NewCodeBuilder(0, 0)
	mainName := top.AddConstant(vm.FromString("main"))
	mainCode := top.AddCode(child.Build())
	top.EmitByte(vm.OpLoadCode, byte(mainCode))
	// Stack: <code>
	top.EmitByte(vm.OpMakeFunction, 0)
	// Stack: <func main>
	top.EmitByte(vm.OpSetGlobal, byte(mainName))
	return top.Build(), nil
}
