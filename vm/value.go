package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Value: tagged union over the runtime types
// ---------------------------------------------------------------------------

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInteger
	KindString
	KindCode
	KindFunction
	KindUserdata
)

// String implements the Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindInteger:
		return "Integer"
	case KindString:
		return "String"
	case KindCode:
		return "Code"
	case KindFunction:
		return "Function"
	case KindUserdata:
		return "Userdata"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a Quill runtime value. Values are cheap to copy: strings are
// immutable and share their backing storage, Code and Function are held
// by pointer and shared by every holder.
//
// The zero Value is Nil.
type Value struct {
	kind Kind
	num  int64 // integer payload or userdata handle bits
	str  string
	code *Code
	fn   *Function
}

// Nil is the nil value.
var Nil = Value{}

// FromInt creates an integer value.
func FromInt(n int32) Value {
	return Value{kind: KindInteger, num: int64(n)}
}

// FromString creates a string value. The string must not be mutated
// after construction.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromCode creates a value wrapping a compiled routine.
func FromCode(c *Code) Value {
	return Value{kind: KindCode, code: c}
}

// FromFunction creates a value wrapping a function.
func FromFunction(f *Function) Value {
	return Value{kind: KindFunction, fn: f}
}

// FromUserdata creates an opaque host-handle value. The integer's
// interpretation belongs entirely to the host.
func FromUserdata(handle uint64) Value {
	return Value{kind: KindUserdata, num: int64(handle)}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// Int returns the integer payload.
// Panics if v is not an integer.
func (v Value) Int() int32 {
	if v.kind != KindInteger {
		panic("Value.Int: not an integer")
	}
	return int32(v.num)
}

// Str returns the string payload.
// Panics if v is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		panic("Value.Str: not a string")
	}
	return v.str
}

// Code returns the compiled routine payload.
// Panics if v is not a code value.
func (v Value) Code() *Code {
	if v.kind != KindCode {
		panic("Value.Code: not a code object")
	}
	return v.code
}

// Function returns the function payload.
// Panics if v is not a function value.
func (v Value) Function() *Function {
	if v.kind != KindFunction {
		panic("Value.Function: not a function")
	}
	return v.fn
}

// Userdata returns the opaque host handle.
// Panics if v is not userdata.
func (v Value) Userdata() uint64 {
	if v.kind != KindUserdata {
		panic("Value.Userdata: not userdata")
	}
	return uint64(v.num)
}

// String implements the Stringer interface, for diagnostics only.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindInteger:
		return fmt.Sprintf("%d", int32(v.num))
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindCode:
		return fmt.Sprintf("<code %p>", v.code)
	case KindFunction:
		return fmt.Sprintf("<function %p>", v.fn)
	case KindUserdata:
		return fmt.Sprintf("<userdata %d>", uint64(v.num))
	default:
		return fmt.Sprintf("<bad value kind %d>", v.kind)
	}
}
