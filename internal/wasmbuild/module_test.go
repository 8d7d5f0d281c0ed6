package wasmbuild

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestModule_EmptyEncodesHeader(t *testing.T) {
	got := New().Encode()
	if !bytes.Equal(got, header) {
		t.Errorf("empty module = %x, want %x", got, header)
	}
}

func TestModule_TypesDeduplicated(t *testing.T) {
	m := New()
	sig := Sig{Params: []ValType{I32}, Results: []ValType{I32}}
	m.Func("a", sig, nil, func(c *Code) { c.LocalGet(0) })
	m.Func("b", sig, nil, func(c *Code) { c.LocalGet(0) })
	if len(m.types) != 1 {
		t.Errorf("types = %d, want 1", len(m.types))
	}
}

func TestModule_ImportAfterFuncPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	m := New()
	m.Func("f", Sig{}, nil, nil)
	m.Import("env", "late", Sig{})
}

func TestModule_RunsInWazero(t *testing.T) {
	ctx := context.Background()

	m := New()
	double := m.Import("env", "double", Sig{Params: []ValType{I32}, Results: []ValType{I32}})
	counter := m.Global(true, 40)
	m.Memory(1, "memory")
	m.Data(8, []byte("hi\x00"))

	m.Func("add", Sig{Params: []ValType{I32, I32}, Results: []ValType{I32}}, nil, func(c *Code) {
		c.LocalGet(0).LocalGet(1).I32Add()
	})
	m.Func("doubled", Sig{Params: []ValType{I32}, Results: []ValType{I32}}, nil, func(c *Code) {
		c.LocalGet(0).Call(double)
	})
	m.Func("bump", Sig{Results: []ValType{I32}}, nil, func(c *Code) {
		c.GlobalGet(counter).I32Const(2).I32Add().GlobalSet(counter).GlobalGet(counter)
	})
	m.Func("strlen", Sig{Params: []ValType{I32}, Results: []ValType{I32}}, []ValType{I32}, func(c *Code) {
		c.Block().Loop().
			LocalGet(0).LocalGet(1).I32Add().I32Load8U(0).I32Eqz().BrIf(1).
			LocalGet(1).I32Const(1).I32Add().LocalSet(1).
			Br(0).
			End().End().
			LocalGet(1)
	})
	m.Func("widen", Sig{Params: []ValType{I64}, Results: []ValType{I64}}, nil, func(c *Code) {
		c.LocalGet(0).I64Const(-3).I64Add()
	})
	m.Func("scale", Sig{Params: []ValType{F64}, Results: []ValType{F64}}, nil, func(c *Code) {
		c.LocalGet(0).F64Const(2.5).F64Mul()
	})

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(x int32) int32 { return x * 2 }).
		Export("double").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}

	mod, err := r.Instantiate(ctx, m.Encode())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	call := func(name string, params ...uint64) uint64 {
		t.Helper()
		res, err := mod.ExportedFunction(name).Call(ctx, params...)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return res[0]
	}

	if got := api.DecodeI32(call("add", api.EncodeI32(2), api.EncodeI32(-5))); got != -3 {
		t.Errorf("add = %d, want -3", got)
	}
	if got := api.DecodeI32(call("doubled", api.EncodeI32(21))); got != 42 {
		t.Errorf("doubled = %d, want 42", got)
	}
	call("bump")
	if got := api.DecodeI32(call("bump")); got != 44 {
		t.Errorf("bump = %d, want 44", got)
	}
	if got := api.DecodeI32(call("strlen", api.EncodeI32(8))); got != 2 {
		t.Errorf("strlen = %d, want 2", got)
	}
	if got := int64(call("widen", api.EncodeI64(10))); got != 7 {
		t.Errorf("widen = %d, want 7", got)
	}
	if got := api.DecodeF64(call("scale", api.EncodeF64(4))); got != 10 {
		t.Errorf("scale = %v, want 10", got)
	}
}
