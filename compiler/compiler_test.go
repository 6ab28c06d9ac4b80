package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/quill-lang/quill/vm"
)

func TestCompileProducesRunnableCode(t *testing.T) {
	code, err := Compile(strings.NewReader("anything, the front end is a stub"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	m := vm.New()
	th := m.Load(code)
	done, execErr := m.Execute(th, vm.Unbounded)
	if !done || execErr != nil {
		t.Fatalf("Execute = %v, %v, want true, nil", done, execErr)
	}

	v, ok := m.LookupGlobal("main")
	if !ok {
		t.Fatal("executing the compiled program did not bind main")
	}
	if v.Kind() != vm.KindFunction {
		t.Fatalf("global main = %v, want a function", v)
	}
	fn := v.Function()
	if fn.Code().Params != 0 || fn.UpvalueCount() != 0 {
		t.Errorf("main = %d params, %d upvalues, want 0 and 0",
			fn.Code().Params, fn.UpvalueCount())
	}
}

func TestCompiledProgramShape(t *testing.T) {
	code, err := Compile(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(code.Codes) != 1 {
		t.Fatalf("nested codes = %d, want 1", len(code.Codes))
	}

	out := vm.Disassemble(code)
	for _, want := range []string{"LOAD_CODE 0", "MAKE_FUNCTION 0", "SET_GLOBAL 0", "LOAD_GLOBAL 1", "GET_ATTR", `const 0 = "main"`} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestCompileSurfacesReadErrors(t *testing.T) {
	_, err := Compile(failingReader{})
	if err == nil {
		t.Fatal("Compile accepted an unreadable source")
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Errorf("Compile error = %T, want *CompileError", err)
	}
}
