package engine

import (
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/engine-bridge/vfs"
)

// Emscripten runtime imports served by wazero's emscripten package. Each
// invoke_* import is a trampoline for a call through the engine's table.
const (
	emscriptenMemoryGrowth = "emscripten_notify_memory_growth"
	emscriptenThrowLongjmp = "_emscripten_throw_longjmp"
	emscriptenInvokePrefix = "invoke_"
)

// IsEmscriptenImport reports whether env.name is provided by the emscripten
// runtime support rather than by EnvFunctions.
func IsEmscriptenImport(name string) bool {
	return name == emscriptenMemoryGrowth ||
		name == emscriptenThrowLongjmp ||
		strings.HasPrefix(name, emscriptenInvokePrefix)
}

// importPlan records which host modules an engine image needs.
type importPlan struct {
	missing    []string // "module#name"
	env        bool
	emscripten bool
	wasi       bool
}

// planImports checks every import of compiled against what the host provides.
// WASI names are resolved by wazero at instantiation.
func planImports(compiled wazero.CompiledModule) importPlan {
	var plan importPlan
	for _, def := range compiled.ImportedFunctions() {
		mod, name, ok := def.Import()
		if !ok {
			continue
		}
		switch {
		case mod == vfs.HostModuleName && slices.Contains(vfs.HostFunctions, name):
		case mod == EnvModuleName && slices.Contains(EnvFunctions, name):
			plan.env = true
		case mod == EnvModuleName && IsEmscriptenImport(name):
			plan.env = true
			plan.emscripten = true
		case mod == WASIModuleName:
			plan.wasi = true
		default:
			plan.missing = append(plan.missing, mod+"#"+name)
		}
	}
	for _, def := range compiled.ImportedMemories() {
		if mod, name, ok := def.Import(); ok {
			plan.missing = append(plan.missing, mod+"#"+name)
		}
	}
	return plan
}
