package invoke

import (
	"strconv"
	"strings"

	"github.com/wippyai/engine-bridge/errors"
)

// ArgSpec is the serialized form of an argument, used by the CLI and the
// HTTP service. Value holds the number, text or virtual path; Data holds the
// payload of a bytes argument.
type ArgSpec struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
	Data  []byte `json:"data,omitempty" yaml:"data,omitempty"`
}

// Arg converts s to an Arg.
func (s ArgSpec) Arg() (Arg, error) {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
			Value(s.Value).
			Detail(format, args...).
			Build()
	}

	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "i32":
		v, err := strconv.ParseInt(s.Value, 0, 32)
		if err != nil {
			return Arg{}, invalid("i32 argument %q: %v", s.Value, err)
		}
		return I32(int32(v)), nil
	case "i64":
		v, err := strconv.ParseInt(s.Value, 0, 64)
		if err != nil {
			return Arg{}, invalid("i64 argument %q: %v", s.Value, err)
		}
		return I64(v), nil
	case "f32":
		v, err := strconv.ParseFloat(s.Value, 32)
		if err != nil {
			return Arg{}, invalid("f32 argument %q: %v", s.Value, err)
		}
		return F32(float32(v)), nil
	case "f64":
		v, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return Arg{}, invalid("f64 argument %q: %v", s.Value, err)
		}
		return F64(v), nil
	case "text":
		return Text(s.Value), nil
	case "input":
		return Input(s.Value), nil
	case "output":
		return Output(s.Value), nil
	case "bytes":
		return Bytes(s.Value, s.Data), nil
	default:
		return Arg{}, invalid("unknown argument kind %q", s.Kind)
	}
}

// ParseArg parses the "kind:value" form, e.g. "i32:3" or "input:/in.pdf".
func ParseArg(s string) (Arg, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return Arg{}, errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
			Value(s).
			Detail("argument %q is not of the form kind:value", s).
			Build()
	}
	return ArgSpec{Kind: kind, Value: value}.Arg()
}

// ParseResultKind parses a ResultKind name as printed by ResultKind.String.
func ParseResultKind(s string) (ResultKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Void, nil
	}
	for i, n := range resultKindNames {
		if n == name {
			return ResultKind(i), nil
		}
	}
	return Void, errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
		Value(s).
		Detail("unknown result kind %q", s).
		Build()
}
