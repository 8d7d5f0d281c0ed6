package invoke

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// ArgKind is the marshaling rule of an argument.
type ArgKind int

const (
	KindI32 ArgKind = iota
	KindI64
	KindF32
	KindF64
	KindText
	KindInput
	KindOutput
	KindBytes
)

var argKindNames = [...]string{"i32", "i64", "f32", "f64", "text", "input", "output", "bytes"}

func (k ArgKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return fmt.Sprintf("ArgKind(%d)", int(k))
}

// valueType is the engine parameter type the kind marshals to.
func (k ArgKind) valueType() api.ValueType {
	switch k {
	case KindI64:
		return api.ValueTypeI64
	case KindF32:
		return api.ValueTypeF32
	case KindF64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

// byReference reports whether the argument is passed as a pointer into engine memory.
func (k ArgKind) byReference() bool {
	return k >= KindText
}

// Arg is one operation argument.
type Arg struct {
	data []byte
	text string
	bits uint64
	kind ArgKind
}

func I32(v int32) Arg   { return Arg{kind: KindI32, bits: api.EncodeI32(v)} }
func I64(v int64) Arg   { return Arg{kind: KindI64, bits: api.EncodeI64(v)} }
func F32(v float32) Arg { return Arg{kind: KindF32, bits: api.EncodeF32(v)} }
func F64(v float64) Arg { return Arg{kind: KindF64, bits: api.EncodeF64(v)} }

// Text passes s as a NUL-terminated string.
func Text(s string) Arg { return Arg{kind: KindText, text: s} }

// Input passes a virtual path that must hold a buffer before the call.
func Input(path string) Arg { return Arg{kind: KindInput, text: path} }

// Output passes a virtual path the engine is expected to write.
func Output(path string) Arg { return Arg{kind: KindOutput, text: path} }

// Bytes writes data to path in the bridge before the call and passes the path.
func Bytes(path string, data []byte) Arg { return Arg{kind: KindBytes, text: path, data: data} }

// Kind returns the argument's marshaling rule.
func (a Arg) Kind() ArgKind { return a.kind }

// Path returns the virtual path of Input, Output and Bytes arguments.
func (a Arg) Path() string {
	switch a.kind {
	case KindInput, KindOutput, KindBytes:
		return a.text
	}
	return ""
}

func (a Arg) String() string {
	switch a.kind {
	case KindI32:
		return fmt.Sprintf("i32:%d", api.DecodeI32(a.bits))
	case KindI64:
		return fmt.Sprintf("i64:%d", int64(a.bits))
	case KindF32:
		return fmt.Sprintf("f32:%g", api.DecodeF32(a.bits))
	case KindF64:
		return fmt.Sprintf("f64:%g", api.DecodeF64(a.bits))
	case KindBytes:
		return fmt.Sprintf("bytes:%s(%d)", a.text, len(a.data))
	default:
		return a.kind.String() + ":" + a.text
	}
}

// ResultKind says how to read an operation's result.
type ResultKind int

const (
	Void ResultKind = iota
	Status
	String
	Int32
	Int64
	Float32
	Float64
)

var resultKindNames = [...]string{"void", "status", "string", "i32", "i64", "f32", "f64"}

func (k ResultKind) String() string {
	if int(k) < len(resultKindNames) {
		return resultKindNames[k]
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

func (k ResultKind) valueType() api.ValueType {
	switch k {
	case Int64:
		return api.ValueTypeI64
	case Float32:
		return api.ValueTypeF32
	case Float64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

// Request is one operation invocation.
type Request struct {
	Name   string
	Args   []Arg
	Result ResultKind
}

// NewRequest builds a Request.
func NewRequest(name string, result ResultKind, args ...Arg) Request {
	return Request{Name: name, Args: args, Result: result}
}

// Outcome is the successful result of an invocation.
type Outcome struct {
	Op      string
	text    string
	Outputs []string // Output paths that hold a buffer after the call
	bits    uint64
	Kind    ResultKind
}

func (o Outcome) I32() int32 { return api.DecodeI32(o.bits) }
func (o Outcome) I64() int64 { return int64(o.bits) }

func (o Outcome) F32() float32 { return api.DecodeF32(o.bits) }
func (o Outcome) F64() float64 { return api.DecodeF64(o.bits) }

// Text returns the result of a String operation.
func (o Outcome) Text() string { return o.text }

// Status returns the non-negative status code of a Status operation.
func (o Outcome) Status() int32 { return api.DecodeI32(o.bits) }

// Value returns the result as a Go value, nil for Void.
func (o Outcome) Value() any {
	switch o.Kind {
	case Status, Int32:
		return o.I32()
	case Int64:
		return o.I64()
	case Float32:
		return o.F32()
	case Float64:
		return o.F64()
	case String:
		return o.text
	default:
		return nil
	}
}

func valueTypeName(t api.ValueType) string {
	return api.ValueTypeName(t)
}
