package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Export is one entry of the capability table.
type Export struct {
	fn      api.Function
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Call runs the export with already-encoded parameters.
func (e *Export) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return e.fn.Call(ctx, params...)
}

// plumbing lists exports that belong to the toolchain runtime, not the engine API.
var plumbing = map[string]bool{
	"malloc":       true,
	"free":         true,
	"calloc":       true,
	"realloc":      true,
	"cabi_realloc": true,
	"_initialize":  true,
	"_start":       true,
	"setThrew":     true,
}

var plumbingPrefixes = []string{"__", "emscripten_", "_emscripten_", "dynCall_", "stack", "asyncify_"}

// IsPlumbing reports whether an export name is excluded from the capability table.
func IsPlumbing(name string) bool {
	if plumbing[name] {
		return true
	}
	for _, p := range plumbingPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// capabilityTable indexes the callable exports of mod.
func capabilityTable(mod api.Module) (map[string]*Export, []string) {
	defs := mod.ExportedFunctionDefinitions()
	table := make(map[string]*Export, len(defs))
	names := make([]string, 0, len(defs))
	for name, def := range defs {
		if IsPlumbing(name) {
			continue
		}
		table[name] = &Export{
			fn:      mod.ExportedFunction(name),
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return table, names
}
