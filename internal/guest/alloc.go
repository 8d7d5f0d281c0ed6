package guest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	enginebridge "github.com/wippyai/engine-bridge"
)

// Allocator export names, in lookup order.
const (
	Malloc      = "malloc"
	Free        = "free"
	CabiRealloc = "cabi_realloc"
)

var _ enginebridge.Allocator = (*Allocator)(nil)

// Allocator adapts the engine's exported allocator to enginebridge.Allocator.
// It understands malloc(size)/free(ptr) as emitted by emscripten and
// wasi-libc, and the four-argument cabi_realloc convention.
type Allocator struct {
	Ctx     context.Context
	AllocFn api.Function
	FreeFn  api.Function // nil when the engine has no separate free
	Log     *zap.Logger
}

// Alloc allocates size bytes in engine memory.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	var (
		results []uint64
		err     error
	)
	switch n := len(a.AllocFn.Definition().ParamTypes()); n {
	case 1:
		results, err = a.AllocFn.Call(a.Ctx, uint64(size))
	case 4:
		results, err = a.AllocFn.Call(a.Ctx, 0, 0, uint64(align), uint64(size))
	default:
		return 0, fmt.Errorf("allocator %s takes %d params, want 1 or 4", a.AllocFn.Definition().Name(), n)
	}
	if err != nil {
		return 0, fmt.Errorf("allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocation returned no result")
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 && size > 0 {
		return 0, fmt.Errorf("engine allocator returned null for %d bytes", size)
	}
	return ptr, nil
}

// Free releases memory obtained from Alloc. Failures are logged, not returned.
func (a *Allocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}

	var err error
	switch {
	case a.FreeFn != nil:
		_, err = a.FreeFn.Call(a.Ctx, uint64(ptr))
	case len(a.AllocFn.Definition().ParamTypes()) == 4:
		_, err = a.AllocFn.Call(a.Ctx, uint64(ptr), uint64(size), uint64(align), 0)
	default:
		return
	}

	if err != nil && a.Log != nil {
		a.Log.Warn("free engine memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
