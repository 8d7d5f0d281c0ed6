package invoke

import (
	"encoding/json"
	"testing"

	bridgeerrors "github.com/wippyai/engine-bridge/errors"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		kind ArgKind
		str  string
	}{
		{"i32:3", KindI32, "i32:3"},
		{"i32:-0x10", KindI32, "i32:-16"},
		{"i64:1099511627776", KindI64, "i64:1099511627776"},
		{"f32:1.5", KindF32, "f32:1.5"},
		{"f64:-2.25", KindF64, "f64:-2.25"},
		{"text:hello: world", KindText, "text:hello: world"},
		{"input:/in.pdf", KindInput, "input:/in.pdf"},
		{"OUTPUT:/out.pdf", KindOutput, "output:/out.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := ParseArg(tt.in)
			if err != nil {
				t.Fatalf("ParseArg: %v", err)
			}
			if a.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", a.Kind(), tt.kind)
			}
			if a.String() != tt.str {
				t.Errorf("String = %q, want %q", a.String(), tt.str)
			}
		})
	}
}

func TestParseArg_Invalid(t *testing.T) {
	for _, in := range []string{"3", "i32:abc", "i32:4294967296", "f32:x", "blob:/x", ""} {
		_, err := ParseArg(in)
		e, ok := bridgeerrors.As(err)
		if !ok || e.Kind != bridgeerrors.KindInvalidInput {
			t.Errorf("ParseArg(%q) = %v, want invalid input", in, err)
		}
	}
}

func TestArgSpec_JSON(t *testing.T) {
	var specs []ArgSpec
	doc := `[{"kind":"i32","value":"3"},{"kind":"bytes","value":"/in.bin","data":"JVBERg=="},{"kind":"output","value":"/out"}]`
	if err := json.Unmarshal([]byte(doc), &specs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	args := make([]Arg, len(specs))
	for i, s := range specs {
		a, err := s.Arg()
		if err != nil {
			t.Fatalf("spec %d: %v", i, err)
		}
		args[i] = a
	}
	if args[0].Kind() != KindI32 || args[1].Kind() != KindBytes || args[2].Kind() != KindOutput {
		t.Errorf("kinds = %v %v %v", args[0].Kind(), args[1].Kind(), args[2].Kind())
	}
	if string(args[1].data) != "%PDF" || args[1].Path() != "/in.bin" {
		t.Errorf("bytes arg = %s", args[1])
	}
}

func TestParseResultKind(t *testing.T) {
	for k := Void; k <= Float64; k++ {
		got, err := ParseResultKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseResultKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseResultKind(""); err != nil || got != Void {
		t.Errorf("empty = %v, %v; want void", got, err)
	}
	if _, err := ParseResultKind("pointer"); err == nil {
		t.Error("unknown result kind should fail")
	}
}

func TestKindStrings(t *testing.T) {
	if KindBytes.String() != "bytes" || ArgKind(42).String() != "ArgKind(42)" {
		t.Errorf("ArgKind strings: %s %s", KindBytes, ArgKind(42))
	}
	if Status.String() != "status" || ResultKind(42).String() != "ResultKind(42)" {
		t.Errorf("ResultKind strings: %s %s", Status, ResultKind(42))
	}
}
