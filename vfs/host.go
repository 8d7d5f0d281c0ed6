package vfs

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/internal/guest"
)

// HostModuleName is the import module engines use to reach the namespace.
const HostModuleName = "bridge"

// MaxPathLen bounds the scan for a NUL-terminated path in engine memory.
const MaxPathLen = 4096

// Status codes returned to the engine.
const (
	statusOK    int32 = 0
	statusError int32 = -1
)

// HostFunctions lists the functions exported by the bridge host module.
var HostFunctions = []string{"fs_size", "fs_read", "fs_write", "fs_unlink"}

// Instantiate registers the bridge host module for fsys in r. The engine
// image must be instantiated in the same runtime afterwards.
//
//	fs_size(path) -> i32              size in bytes, -1 if absent
//	fs_read(path, dst, cap) -> i32    bytes copied into dst, -1 if absent
//	fs_write(path, src, len) -> i32   0, or -1 on a bad path or range
//	fs_unlink(path) -> i32            0, or -1 if absent
func Instantiate(ctx context.Context, r wazero.Runtime, fsys *FS, log *zap.Logger) (api.Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &host{fsys: fsys, log: log}
	i32 := api.ValueTypeI32

	return r.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.size), []api.ValueType{i32}, []api.ValueType{i32}).
		WithParameterNames("path").
		Export("fs_size").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.read), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("path", "dst", "cap").
		Export("fs_read").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.write), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("path", "src", "len").
		Export("fs_write").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.unlink), []api.ValueType{i32}, []api.ValueType{i32}).
		WithParameterNames("path").
		Export("fs_unlink").
		Instantiate(ctx)
}

type host struct {
	fsys *FS
	log  *zap.Logger
}

func (h *host) path(mod api.Module, ptr uint64) (string, bool) {
	mem := guest.WrapMemory(mod.Memory())
	if mem == nil {
		h.log.Debug("engine has no memory")
		return "", false
	}
	p, err := mem.ReadCString(api.DecodeU32(ptr), MaxPathLen)
	if err != nil {
		h.log.Debug("bad engine path", zap.Error(err))
		return "", false
	}
	return Clean(p), true
}

func (h *host) size(_ context.Context, mod api.Module, stack []uint64) {
	p, ok := h.path(mod, stack[0])
	if !ok {
		stack[0] = api.EncodeI32(statusError)
		return
	}
	e, ok := h.fsys.lookup(p)
	if !ok {
		h.log.Debug("fs_size: not found", zap.String("path", p))
		stack[0] = api.EncodeI32(statusError)
		return
	}
	stack[0] = api.EncodeI32(int32(len(e.data)))
}

func (h *host) read(_ context.Context, mod api.Module, stack []uint64) {
	dst, capacity := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	p, ok := h.path(mod, stack[0])
	if !ok {
		stack[0] = api.EncodeI32(statusError)
		return
	}
	e, ok := h.fsys.lookup(p)
	if !ok {
		h.log.Debug("fs_read: not found", zap.String("path", p))
		stack[0] = api.EncodeI32(statusError)
		return
	}
	n := uint32(len(e.data))
	if n > capacity {
		n = capacity
	}
	if !mod.Memory().Write(dst, e.data[:n]) {
		h.log.Debug("fs_read: destination out of bounds",
			zap.String("path", p), zap.Uint32("dst", dst), zap.Uint32("len", n))
		stack[0] = api.EncodeI32(statusError)
		return
	}
	stack[0] = api.EncodeI32(int32(n))
}

func (h *host) write(_ context.Context, mod api.Module, stack []uint64) {
	src, length := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	p, ok := h.path(mod, stack[0])
	if !ok {
		stack[0] = api.EncodeI32(statusError)
		return
	}
	data, ok := mod.Memory().Read(src, length)
	if !ok {
		h.log.Debug("fs_write: source out of bounds",
			zap.String("path", p), zap.Uint32("src", src), zap.Uint32("len", length))
		stack[0] = api.EncodeI32(statusError)
		return
	}
	// Write copies, so the view into engine memory does not escape.
	if err := h.fsys.Write(p, data); err != nil {
		h.log.Debug("fs_write failed", zap.String("path", p), zap.Error(err))
		stack[0] = api.EncodeI32(statusError)
		return
	}
	stack[0] = api.EncodeI32(statusOK)
}

func (h *host) unlink(_ context.Context, mod api.Module, stack []uint64) {
	p, ok := h.path(mod, stack[0])
	if !ok {
		stack[0] = api.EncodeI32(statusError)
		return
	}
	if err := h.fsys.Remove(p); err != nil {
		stack[0] = api.EncodeI32(statusError)
		return
	}
	stack[0] = api.EncodeI32(statusOK)
}
