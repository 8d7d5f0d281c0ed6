package engine

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	enginebridge "github.com/wippyai/engine-bridge"
	"github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/internal/guest"
	"github.com/wippyai/engine-bridge/vfs"
)

// Handle is a running engine: its capability table and its private bridge
// namespace. A Handle is created by Open and is not modified afterwards
// except by Close. Callers serialize operations on one Handle.
type Handle struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	module  api.Module
	allocFn api.Function
	freeFn  api.Function
	fs      *vfs.FS
	faults  *faultRecorder
	log     *zap.Logger
	exports map[string]*Export
	names   []string
	closed  atomic.Bool
}

// Open loads, compiles and instantiates the engine image described by cfg.
// Every failure is a bootstrap failure; nothing is left running after one.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	log := Logger().With(zap.String("engine", cfg.name()))

	if cfg.Source == nil {
		return nil, errors.BootstrapFailure("no engine image source configured", nil)
	}

	image, err := cfg.Source.Load(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseBootstrap, errors.KindBootstrapFailure).
			Detail("load engine image from %s", cfg.Source).
			Cause(err).
			Build()
	}
	if !IsWasm(image) {
		return nil, errors.New(errors.PhaseBootstrap, errors.KindBootstrapFailure).
			Detail("engine image from %s is not a WebAssembly module", cfg.Source).
			Build()
	}
	log.Debug("engine image loaded", zap.Stringer("source", cfg.Source), zap.Int("bytes", len(image)))

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	h := &Handle{
		fs:     vfs.New(),
		faults: &faultRecorder{},
		log:    log,
	}
	if cfg.CacheDir != "" {
		h.cache, err = wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.BootstrapFailure("open compilation cache", err)
		}
		runtimeCfg = runtimeCfg.WithCompilationCache(h.cache)
	}
	h.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	ok := false
	defer func() {
		if !ok {
			h.release(ctx)
		}
	}()

	compiled, err := h.runtime.CompileModule(ctx, image)
	if err != nil {
		return nil, errors.BootstrapFailure("compile engine image", err)
	}

	plan := planImports(compiled)
	if len(plan.missing) > 0 {
		return nil, errors.BootstrapFailure("engine imports functions the host does not provide",
			errors.NewMissingImportsError(plan.missing))
	}

	if _, err := vfs.Instantiate(ctx, h.runtime, h.fs, log.Named("vfs")); err != nil {
		return nil, errors.BootstrapFailure("instantiate bridge host module", err)
	}
	if plan.env {
		if _, err := instantiateEnv(ctx, h.runtime, compiled, h.faults, log); err != nil {
			return nil, errors.BootstrapFailure("instantiate env host module", err)
		}
	}
	if plan.wasi {
		if _, err := instantiateWASI(ctx, h.runtime); err != nil {
			return nil, errors.BootstrapFailure("instantiate WASI", err)
		}
	}

	h.module, err = h.runtime.InstantiateModule(ctx, compiled, moduleConfig(cfg, h.fs.SysFS(), log))
	if err != nil {
		return nil, errors.BootstrapFailure("instantiate engine", err)
	}

	h.exports, h.names = capabilityTable(h.module)
	h.allocFn = h.module.ExportedFunction(guest.Malloc)
	if h.allocFn == nil {
		h.allocFn = h.module.ExportedFunction(guest.CabiRealloc)
	}
	h.freeFn = h.module.ExportedFunction(guest.Free)

	ok = true
	log.Info("engine ready",
		zap.Int("operations", len(h.names)),
		zap.Bool("wasi", plan.wasi),
		zap.Bool("emscripten", plan.emscripten),
		zap.Bool("allocator", h.allocFn != nil))
	return h, nil
}

// Capabilities returns the names of all invocable operations, sorted.
func (h *Handle) Capabilities() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Export looks up an operation in the capability table.
func (h *Handle) Export(name string) (*Export, bool) {
	e, ok := h.exports[name]
	return e, ok
}

// FS returns the handle's bridge namespace.
func (h *Handle) FS() *vfs.FS {
	return h.fs
}

// Memory returns the engine's linear memory, or nil if it exports none.
func (h *Handle) Memory() enginebridge.Memory {
	if h.module == nil {
		return nil
	}
	if m := guest.WrapMemory(h.module.Memory()); m != nil {
		return m
	}
	return nil
}

// Allocator returns an allocator over the engine's exported malloc/free,
// bound to ctx for its calls.
func (h *Handle) Allocator(ctx context.Context) (enginebridge.Allocator, error) {
	if h.allocFn == nil {
		return nil, errors.New(errors.PhaseInvocation, errors.KindAllocation).
			Detail("engine exports neither %s nor %s", guest.Malloc, guest.CabiRealloc).
			Build()
	}
	return &guest.Allocator{Ctx: ctx, AllocFn: h.allocFn, FreeFn: h.freeFn, Log: h.log}, nil
}

// TakeFault returns the diagnostics the engine reported since the last call
// and clears them. Empty if the engine reported nothing.
func (h *Handle) TakeFault() string {
	return h.faults.take()
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Close releases the engine runtime. Safe to call more than once.
func (h *Handle) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.log.Info("engine closed")
	return h.release(ctx)
}

func (h *Handle) release(ctx context.Context) error {
	var firstErr error
	if h.runtime != nil {
		firstErr = h.runtime.Close(ctx)
	}
	if h.cache != nil {
		if err := h.cache.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
